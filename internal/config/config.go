package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Mistral platform
	MistralAPIKey  string
	MistralBaseURL string
	OCRModel       string
	EmbeddingModel string
	ChatModel      string

	// OCR
	OCRBackend    string // mistral, tesseract or text
	OCRLanguage   string
	OCRDPI        float64
	ProgressEvery int
	RateLimitWait time.Duration

	// Paths
	DataDir        string
	PDFPath        string
	VectorstoreDir string

	// Vector index
	IndexBackend string // qdrant or memory
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	Collection   string
	VectorSize   int

	// Chunking
	MaxChunkSize int
	ChunkOverlap int
	OverlapLines int

	// Retrieval and generation
	TopK        int
	Temperature float64

	// Embedding and indexing
	EmbedBatchSize     int
	IndexBatchSize     int
	MaxConcurrentEmbed int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	_ = godotenv.Load()

	dataDir := envOr("DATA_DIR", "./data")
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("BUDGETQA_API_KEY"),

		MistralAPIKey:  os.Getenv("MISTRAL_API_KEY"),
		MistralBaseURL: envOr("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),
		OCRModel:       envOr("OCR_MODEL", "mistral-ocr-latest"),
		EmbeddingModel: envOr("EMBEDDING_MODEL", "mistral-embed"),
		ChatModel:      envOr("CHAT_MODEL", "mistral-large-latest"),

		OCRBackend:    envOr("OCR_BACKEND", "mistral"),
		OCRLanguage:   envOr("OCR_LANGUAGE", "chi_sim+eng"),
		OCRDPI:        envFloat("OCR_DPI", 300),
		ProgressEvery: envInt("PROGRESS_EVERY", 10),
		RateLimitWait: envDuration("RATE_LIMIT_WAIT", 30*time.Second),

		DataDir:        dataDir,
		PDFPath:        envOr("PDF_PATH", filepath.Join(dataDir, "Tunnel budget.pdf")),
		VectorstoreDir: envOr("VECTORSTORE_DIR", "./vectorstore"),

		IndexBackend: envOr("INDEX_BACKEND", "qdrant"),
		QdrantHost:   envOr("QDRANT_HOST", "localhost"),
		QdrantPort:   envInt("QDRANT_PORT", 6334),
		QdrantAPIKey: os.Getenv("QDRANT_API_KEY"),
		Collection:   envOr("COLLECTION", "tunnel_budget"),
		VectorSize:   envInt("VECTOR_SIZE", 1024),

		MaxChunkSize: envInt("MAX_CHUNK_SIZE", 1500),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),
		OverlapLines: envInt("OVERLAP_LINES", 5),

		TopK:        envInt("TOP_K_RESULTS", 5),
		Temperature: envFloat("TEMPERATURE", 0.1),

		EmbedBatchSize:     envInt("EMBED_BATCH_SIZE", 10),
		IndexBatchSize:     envInt("INDEX_BATCH_SIZE", 50),
		MaxConcurrentEmbed: envInt("MAX_CONCURRENT_EMBED", 2),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 20),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 209715200), // 200MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = 300
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10
	}
	if cfg.QdrantPort <= 0 {
		cfg.QdrantPort = 6334
	}
	if cfg.VectorSize <= 0 {
		cfg.VectorSize = 1024
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 1500
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.OverlapLines <= 0 {
		cfg.OverlapLines = 5
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = 0.1
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 10
	}
	if cfg.IndexBatchSize <= 0 {
		cfg.IndexBatchSize = 50
	}
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = 2
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 20
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 209715200
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks what every binary needs.
func (c Config) Validate() error {
	if c.MistralAPIKey == "" {
		return fmt.Errorf("MISTRAL_API_KEY is required")
	}
	switch c.OCRBackend {
	case "mistral", "tesseract", "text":
	default:
		return fmt.Errorf("OCR_BACKEND must be mistral, tesseract or text, got %q", c.OCRBackend)
	}
	switch c.IndexBackend {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("INDEX_BACKEND must be qdrant or memory, got %q", c.IndexBackend)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("BUDGETQA_API_KEY is required")
	}
	return nil
}

// MemoryIndexPath is where the in-memory index persists between runs.
func (c Config) MemoryIndexPath() string {
	return filepath.Join(c.VectorstoreDir, "memory_index.json")
}

// CheckpointPath is the bbolt file holding per-page OCR progress.
func (c Config) CheckpointPath() string {
	return filepath.Join(c.VectorstoreDir, "ocr_progress.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
