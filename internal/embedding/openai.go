package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

const (
	OpenAIModelVersion     = "openai"
	OpenAIDefaultBaseURL   = "https://api.openai.com/v1"
	OpenAIDefaultModel     = "text-embedding-3-small"
	OpenAIDefaultDimension = 1536
	OpenAIDefaultMaxTokens = 8191
	openAIHTTPTimeout      = 30 * time.Second
)

type openAIModel struct {
	client     *http.Client
	truncator  *tokenTruncator
	baseURL    string
	apiKey     string
	modelName  string
	dimensions int
}

type openAIEmbedRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func init() {
	RegisterModel(ModelMetadata{
		Name:        "OpenAI Compatible",
		Version:     OpenAIModelVersion,
		Dimensions:  OpenAIDefaultDimension,
		Description: "OpenAI-compatible embedding via REST API (supports LiteLLM proxies, including Bedrock backends)",
	}, newOpenAIModel)
}

func newOpenAIModel(cfg ModelConfig) (EmbeddingModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ASKLENS_EMBEDDING_API_KEY is required for openai provider")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = OpenAIDefaultBaseURL
	}
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = OpenAIDefaultModel
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = OpenAIDefaultDimension
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = openAIHTTPTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = OpenAIDefaultMaxTokens
	}

	return &openAIModel{
		client:     &http.Client{Timeout: timeout},
		truncator:  newTokenTruncator(maxTokens),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		modelName:  modelName,
		dimensions: dimensions,
	}, nil
}

func (m *openAIModel) Name() string    { return m.modelName }
func (m *openAIModel) Version() string { return OpenAIModelVersion + ":" + m.modelName }
func (m *openAIModel) Dimensions() int { return m.dimensions }
func (m *openAIModel) Close() error    { return nil }

func (m *openAIModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = m.truncator.Truncate(t)
	}

	results, err := m.embedRequest(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("%w: embedding API returned %d results for %d inputs (model=%s)",
			ErrContractViolation, len(results), len(texts), m.modelName)
	}
	return results, nil
}

func (m *openAIModel) embedRequest(ctx context.Context, input []string) ([][]float32, error) {
	reqBody := openAIEmbedRequest{
		Input:          input,
		Model:          m.modelName,
		EncodingFormat: "float",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send embedding request to %s: %w", m.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding API error (model=%s, status=%d): %s",
			m.modelName, resp.StatusCode, strings.TrimSpace(string(bodySnippet)))
	}

	var embedResp openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decode embedding response from %s: %v", ErrContractViolation, m.baseURL, err)
	}

	// Sort by index to preserve order
	sort.Slice(embedResp.Data, func(i, j int) bool {
		return embedResp.Data[i].Index < embedResp.Data[j].Index
	})

	results := make([][]float32, len(embedResp.Data))
	for i, d := range embedResp.Data {
		if d.Index != i {
			return nil, fmt.Errorf("%w: response index %d at position %d", ErrContractViolation, d.Index, i)
		}
		results[i] = d.Embedding
	}
	return results, nil
}

// tokenTruncator cuts texts to the model's input token limit using cl100k_base.
type tokenTruncator struct {
	codec     tokenizer.Codec
	initErr   error
	maxTokens int
	once      sync.Once
}

func newTokenTruncator(maxTokens int) *tokenTruncator {
	return &tokenTruncator{maxTokens: maxTokens}
}

// Truncate returns text unchanged when it fits, otherwise its longest token prefix that does.
// If the tokenizer cannot be loaded the text is sent as is and the provider decides.
func (t *tokenTruncator) Truncate(text string) string {
	// A token is at least one byte, so short texts always fit.
	if len(text) <= t.maxTokens {
		return text
	}

	t.once.Do(func() {
		t.codec, t.initErr = tokenizer.Get(tokenizer.Cl100kBase)
		if t.initErr != nil {
			log.Warn().Err(t.initErr).Msg("Tokenizer unavailable - embedding inputs will not be truncated")
		}
	})
	if t.initErr != nil {
		return text
	}

	ids, _, err := t.codec.Encode(text)
	if err != nil || len(ids) <= t.maxTokens {
		return text
	}

	truncated, err := t.codec.Decode(ids[:t.maxTokens])
	if err != nil {
		return text
	}
	log.Debug().Int("tokens", len(ids)).Int("max_tokens", t.maxTokens).Msg("Truncated embedding input")
	return truncated
}
