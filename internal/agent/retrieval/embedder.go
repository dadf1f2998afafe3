package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	errx "github.com/teamfit/server/internal/core/error"
)

// Gemini embedding task types.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// maxEmbedBatch is the per-request content limit of the embedding endpoint.
const maxEmbedBatch = 100

// GeminiEmbedder implements the Eino embedding component over the genai client.
type GeminiEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
}

func NewGeminiEmbedder(client *genai.Client, model, taskType string) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiEmbedder{client: client, model: model, taskType: taskType}, nil
}

// WithTask returns a copy that embeds with another task type.
func (e *GeminiEmbedder) WithTask(taskType string) *GeminiEmbedder {
	out := *e
	out.taskType = taskType
	return &out
}

func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	model := e.model
	if o := embedding.GetCommonOptions(&embedding.Options{}, opts...); o.Model != nil && *o.Model != "" {
		model = *o.Model
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}
		resp, err := e.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
			TaskType: e.taskType,
		})
		if err != nil {
			return nil, errx.WrapProvider(fmt.Errorf("embed content: %w", err))
		}
		if resp == nil || len(resp.Embeddings) != end-start {
			return nil, errx.WrapProvider(fmt.Errorf("embed content: expected %d embeddings", end-start))
		}
		for _, emb := range resp.Embeddings {
			vec := make([]float64, len(emb.Values))
			for i, v := range emb.Values {
				vec[i] = float64(v)
			}
			out = append(out, vec)
		}
	}
	return out, nil
}

var _ embedding.Embedder = (*GeminiEmbedder)(nil)
