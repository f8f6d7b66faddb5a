package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiTimeout = 30 * time.Second

// Gemini implements the Extractor interface using Google Gemini Vision
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// ExtractInvoice sends the image to Gemini and parses the JSON reply.
// The call is bounded by a timeout and retried once on transient failure;
// a reply that parses badly is never retried.
func (g *Gemini) ExtractInvoice(ctx context.Context, imageData []byte, mimeType string) (*InvoiceData, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	// genai.ImageData wants the bare format suffix, not a MIME type
	format := strings.TrimPrefix(mimeType, "image/")
	if format == "jpg" {
		format = "jpeg"
	}
	parts := []genai.Part{
		genai.ImageData(format, imageData),
		genai.Text(invoiceExtractionPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		slog.Warn("Gemini call failed, retrying once", "error", err)
		resp, err = g.model.GenerateContent(ctx, parts...)
		if err != nil {
			return nil, fmt.Errorf("generating content: %w", err)
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty reply from gemini", ErrMalformedReply)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	data, err := parseInvoiceJSON(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing invoice data: %w", err)
	}
	return data, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
