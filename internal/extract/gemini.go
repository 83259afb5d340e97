package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const receiptPrompt = `Analyze this receipt photo and extract the following fields.
Respond with a single JSON object and nothing else:
{
  "vendor": "<merchant name>",
  "amount": <total amount as a number>,
  "date": "<purchase date in YYYY-MM-DD format>",
  "payment_method": "<card, cash, or other method if visible>"
}
Use an empty string for any field you cannot read. Use 0 for an unreadable amount.`

// Gemini implements the Extractor interface using Google Gemini vision.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// ExtractReceipt sends the photo and prompt to the model and parses the
// JSON it returns.
func (g *Gemini) ExtractReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptFields, error) {
	parts := []genai.Part{
		// genai.ImageData wants the bare format suffix, not the MIME type.
		genai.ImageData(formatSuffix(contentType), imageData),
		genai.Text(receiptPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	fields, err := parseReceiptFields(text.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return fields, nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func formatSuffix(contentType string) string {
	if s, ok := strings.CutPrefix(contentType, "image/"); ok && s != "" {
		return s
	}
	return "jpeg"
}
