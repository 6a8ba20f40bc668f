package embedding

import (
	"context"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
)

// OpenAIConfig configures the hosted OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	Dimension int
}

// OpenAI is the HTTP embedding provider backed by OpenAI's embeddings
// endpoint (spec §6). Timeouts match the concurrency model's 30s
// total/10s connect budget (spec §5) via the client's own http.Client.
type OpenAI struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// NewOpenAI constructs an OpenAI embedding provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, mnemoerr.Validation("openai embedding provider requires an API key")
	}
	model := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.SmallEmbedding3
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 1536
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	conf.HTTPClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: &http.Transport{DialContext: (&net.Dialer{Timeout: 10 * time.Second}).DialContext},
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(conf),
		model:     model,
		dimension: dim,
	}, nil
}

func (p *OpenAI) Dimension() int { return p.dimension }

func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, mnemoerr.Embedding("openai embeddings request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, mnemoerr.Embedding("openai returned a mismatched number of embeddings", nil)
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}
