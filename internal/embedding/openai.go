package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	OpenAIProviderVersion  = "openai"
	OpenAIDefaultBaseURL   = "https://api.openai.com/v1"
	OpenAIDefaultModel     = "text-embedding-3-small"
	OpenAIDefaultDimension = 1536
	openAIHTTPTimeout      = 30 * time.Second
)

// OpenAIConfig configures the remote OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	ModelName  string
	Dimensions int
}

func init() {
	RegisterProvider(Metadata{
		Name:        "OpenAI Compatible",
		Version:     OpenAIProviderVersion,
		Dimensions:  OpenAIDefaultDimension,
		Description: "Embeds text via an OpenAI-compatible REST /embeddings endpoint",
	}, func() (Provider, error) {
		return nil, fmt.Errorf("openai provider requires NewOpenAIProvider(cfg); no default config available via registry lookup")
	})
}

// openAIProvider hits a remote OpenAI-compatible embeddings endpoint over
// plain net/http. It has no local model state to initialize beyond
// validating configuration, so Initialize is cheap and always succeeds
// once an API key is present.
type openAIProvider struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	modelName  string
	dimensions int
}

// NewOpenAIProvider builds a Provider from explicit configuration. Use this
// instead of the registry factory, which cannot see a Config value.
func NewOpenAIProvider(cfg OpenAIConfig) Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = OpenAIDefaultBaseURL
	}
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = OpenAIDefaultModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = OpenAIDefaultDimension
	}
	return &openAIProvider{
		client:     &http.Client{Timeout: openAIHTTPTimeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		modelName:  modelName,
		dimensions: dims,
	}
}

func (p *openAIProvider) ModelName() string { return p.modelName }
func (p *openAIProvider) Dimensions() int   { return p.dimensions }
func (p *openAIProvider) Close() error      { return nil }

func (p *openAIProvider) Initialize(ctx context.Context) (Availability, error) {
	if p.apiKey == "" {
		return Unavailable, fmt.Errorf("openai provider: no API key configured")
	}
	return Available, nil
}

func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return make([]float32, p.dimensions), nil
	}
	results, err := p.embedRequest(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("embedding API returned no results for model %s", p.modelName)
	}
	return results[0], nil
}

func (p *openAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results, err := p.embedRequest(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d results for %d inputs (model=%s)",
			len(results), len(texts), p.modelName)
	}
	return results, nil
}

type openAIEmbedRequest struct {
	Input          interface{} `json:"input"`
	Model          string      `json:"model"`
	EncodingFormat string      `json:"encoding_format"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (p *openAIProvider) embedRequest(ctx context.Context, input interface{}) ([][]float32, error) {
	reqBody := openAIEmbedRequest{
		Input:          input,
		Model:          p.modelName,
		EncodingFormat: "float",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send embedding request to %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding API error (model=%s, status=%d): %s",
			p.modelName, resp.StatusCode, strings.TrimSpace(string(bodySnippet)))
	}

	var embedResp openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode embedding response from %s: %w", p.baseURL, err)
	}

	sort.Slice(embedResp.Data, func(i, j int) bool {
		return embedResp.Data[i].Index < embedResp.Data[j].Index
	})

	results := make([][]float32, len(embedResp.Data))
	for i, d := range embedResp.Data {
		results[i] = d.Embedding
	}
	return results, nil
}
