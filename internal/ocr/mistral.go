package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// defaultInlineLimit is the largest document sent inline as a data URL. Larger
// documents are uploaded once through the files API and referenced by signed URL.
const defaultInlineLimit = 8 << 20

// filePurposeOCR marks uploads meant for the OCR endpoint.
const filePurposeOCR openai.FilePurpose = "ocr"

// MistralClient calls the Mistral OCR API one page at a time. Mistral serves OCR
// and files under the same OpenAI-compatible base URL as chat and embeddings, so
// requests go through openai-go and failures surface as *openai.Error.
type MistralClient struct {
	api   openai.Client
	model string

	inlineLimit int
}

func NewMistralClient(apiKey, baseURL, model string) *MistralClient {
	return &MistralClient{
		api: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(180*time.Second),
		),
		model:       model,
		inlineLimit: defaultInlineLimit,
	}
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
	Pages    []int       `json:"pages"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// RecognizePage OCRs one page and returns its markdown. A response without pages
// yields empty text.
func (c *MistralClient) RecognizePage(ctx context.Context, doc *Document, page int) (string, error) {
	docURL, err := c.documentURL(ctx, doc)
	if err != nil {
		return "", err
	}

	req := ocrRequest{
		Model:    c.model,
		Document: ocrDocument{Type: "document_url", DocumentURL: docURL},
		Pages:    []int{page - 1},
	}
	var resp ocrResponse
	if err := c.api.Post(ctx, "ocr", req, &resp); err != nil {
		return "", fmt.Errorf("ocr page %d: %w", page, err)
	}
	if len(resp.Pages) == 0 {
		return "", nil
	}
	return resp.Pages[0].Markdown, nil
}

func (c *MistralClient) documentURL(ctx context.Context, doc *Document) (string, error) {
	if u := doc.cachedURL(); u != "" {
		return u, nil
	}
	if len(doc.Data) <= c.inlineLimit {
		u := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(doc.Data)
		doc.setURL(u)
		return u, nil
	}

	file, err := c.api.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(doc.Data), doc.Name, "application/pdf"),
		Purpose: filePurposeOCR,
	})
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}

	var signed struct {
		URL string `json:"url"`
	}
	if err := c.api.Get(ctx, "files/"+file.ID+"/url", nil, &signed, option.WithQuery("expiry", "24")); err != nil {
		return "", fmt.Errorf("signed url: %w", err)
	}
	if signed.URL == "" {
		return "", fmt.Errorf("empty signed url for file %s", file.ID)
	}
	doc.setURL(signed.URL)
	return signed.URL, nil
}

func (c *MistralClient) Close() error { return nil }
