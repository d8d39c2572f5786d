package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOpenAIEndpoint   = "https://api.openai.com/v1/embeddings"
	defaultOpenAIModel      = "text-embedding-3-small"
	defaultOpenAIDimensions = 1536
	defaultTimeout          = 30 * time.Second
)

// OpenAIOptions configures an OpenAIProvider.
type OpenAIOptions struct {
	APIKey string
	Model  string
	// Dimensions is sent to the API only when positive.
	Dimensions int
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIProvider calls the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	apiKey     string
	model      string
	dimensions int
	sendDims   bool
	endpoint   string
	client     *http.Client
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, &Error{Provider: "openai", Message: "API key is required"}
	}
	if opts.Model == "" {
		opts.Model = defaultOpenAIModel
	}
	if opts.Endpoint == "" {
		opts.Endpoint = defaultOpenAIEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	dims := opts.Dimensions
	if dims <= 0 {
		dims = defaultOpenAIDimensions
	}

	return &OpenAIProvider{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		dimensions: dims,
		sendDims:   opts.Dimensions > 0,
		endpoint:   opts.Endpoint,
		client:     client,
	}, nil
}

// Embed returns the embedding of text. Failures are not retried.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &Error{Provider: p.Name(), Message: "content cannot be empty"}
	}

	reqBody := openAIRequest{Model: p.model, Input: []string{text}}
	if p.sendDims {
		reqBody.Dimensions = p.dimensions
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API request failed: %s", http.StatusText(resp.StatusCode))
		var apiErr openAIErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &Error{Provider: p.Name(), Message: msg, StatusCode: resp.StatusCode}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Provider: p.Name(), Message: "failed to decode response", Cause: err}
	}
	if len(parsed.Data) == 0 {
		return nil, &Error{Provider: p.Name(), Message: "no embeddings returned"}
	}

	vec := parsed.Data[0].Embedding
	if err := checkDimensions(p.Name(), vec, p.dimensions); err != nil {
		return nil, err
	}
	return vec, nil
}

func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
