package embedding

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "text-embedding-004"

// GeminiProvider embeds text with a Gemini embedding model.
type GeminiProvider struct {
	client     *genai.Client
	model      *genai.EmbeddingModel
	dimensions int
}

// NewGeminiProvider creates a Gemini embedding provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, dims int) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, &Error{Provider: "gemini", Message: "API key is required"}
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, &Error{Provider: "gemini", Message: "failed to create Gemini client", Cause: err}
	}

	em := client.EmbeddingModel(model)
	em.TaskType = genai.TaskTypeSemanticSimilarity

	return &GeminiProvider{
		client:     client,
		model:      em,
		dimensions: dims,
	}, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &Error{Provider: p.Name(), Message: "content cannot be empty"}
	}

	res, err := p.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "failed to embed content", Cause: err}
	}
	if res == nil || res.Embedding == nil {
		return nil, &Error{Provider: p.Name(), Message: "no embedding returned"}
	}

	if err := checkDimensions(p.Name(), res.Embedding.Values, p.dimensions); err != nil {
		return nil, err
	}
	return res.Embedding.Values, nil
}

func (p *GeminiProvider) Dimensions() int { return p.dimensions }

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
