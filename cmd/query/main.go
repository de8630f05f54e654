// Command query answers one question from the indexed budget document.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgallion1/budgetqa/internal/app"
	"github.com/dgallion1/budgetqa/internal/config"
	"github.com/dgallion1/budgetqa/internal/rag"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := config.Load()

	k := flag.Int("k", cfg.TopK, "number of chunks to retrieve (1-10)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: query [-k n] <question>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	question := strings.Join(flag.Args(), " ")

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if n, err := a.Index.Count(ctx); err != nil || n == 0 {
		log.Error("index is empty or unavailable; run cmd/ingest first", "error", err)
		os.Exit(1)
	}

	res, err := a.Engine.Query(ctx, question, *k)
	if errors.Is(err, rag.ErrEmptyQuestion) {
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("query failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Question: %s\n\nAnswer:\n%s\n\nSources:\n", res.Query, res.Answer)
	for i, h := range res.Sources {
		fmt.Printf("  %d. %s", i+1, h.Chunk.PageRange())
		if h.Chunk.Section != "" {
			fmt.Printf(" - %s", h.Chunk.Section)
		}
		fmt.Printf(" (similarity %.1f%%)\n", (1-h.Distance)*100)
	}
}
