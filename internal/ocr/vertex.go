package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

// TranscribePrompt asks the model for the statement table as pipe-separated
// rows so the shared text splitter can read the answer.
const TranscribePrompt = `You are given an image of one page of a bank statement.
Transcribe every transaction table on the page.

Rules:
- Output one table row per line, header row first if the page has one.
- Separate cells with " | ".
- Copy dates, descriptions and amounts exactly as printed, including signs, parentheses and CR/DR markers.
- Leave a cell empty when it is blank on the page.
- Output nothing else: no commentary, no markdown fences.`

// DefaultVertexModel is used when no model name is configured.
const DefaultVertexModel = "gemini-1.5-pro"

// generator is the part of *genai.GenerativeModel the engine needs.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Vertex transcribes page images with a Gemini model on Vertex AI.
type Vertex struct {
	model   generator
	client  *genai.Client
	Timeout time.Duration
}

// NewVertex connects to Vertex AI in project and region.
func NewVertex(ctx context.Context, project, region, model string) (*Vertex, error) {
	if project == "" || region == "" {
		return nil, errors.New("vertex OCR: project and region cannot be empty")
	}
	if model == "" {
		model = DefaultVertexModel
	}

	client, err := genai.NewClient(ctx, project, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	m := client.GenerativeModel(model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}
	return &Vertex{model: m, client: client}, nil
}

// Close releases the underlying client.
func (v *Vertex) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// Recognize sends the image with TranscribePrompt and returns the cleaned
// text of the first candidate.
func (v *Vertex) Recognize(ctx context.Context, image []byte, format string) (string, error) {
	ctx, cancel := withTimeout(ctx, v.Timeout)
	defer cancel()

	if format == "" {
		format = "png"
	}
	resp, err := v.model.GenerateContent(ctx, genai.ImageData(format, image), genai.Text(TranscribePrompt))
	if err != nil {
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	return CleanText(text), nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("vertex generate: empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("vertex generate: no text in response")
	}
	return b.String(), nil
}
