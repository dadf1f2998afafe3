package retrieval

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/cloudwego/eino/components/retriever"

	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
)

// Document metadata keys.
const (
	MetaSource  = "source"
	MetaSection = "section"
)

const (
	unknownSource  = "Unknown"
	unknownSection = "미분류 섹션"
)

// Searcher adapts an Eino retriever to the model.Searcher capability.
// Hits keep the retriever's order and get a 1-based rank.
type Searcher struct {
	r retriever.Retriever
}

func NewSearcher(r retriever.Retriever) *Searcher {
	return &Searcher{r: r}
}

func (s *Searcher) Search(ctx context.Context, query string, k int) ([]model.RetrievedDocument, error) {
	if s == nil || s.r == nil {
		return nil, errx.WrapIndex(nil)
	}
	docs, err := s.r.Retrieve(ctx, query, retriever.WithTopK(k))
	if err != nil {
		if errors.Is(err, errx.ErrIndexUnavailable) {
			return nil, err
		}
		return nil, errx.WrapProvider(err)
	}

	out := make([]model.RetrievedDocument, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		source := metaString(d.MetaData, MetaSource, unknownSource)
		filename := unknownSource
		if source != unknownSource {
			filename = path.Base(strings.ReplaceAll(source, "\\", "/"))
		}
		out = append(out, model.RetrievedDocument{
			Content:    d.Content,
			Section:    metaString(d.MetaData, MetaSection, unknownSection),
			SourcePath: source,
			Filename:   filename,
			Rank:       len(out) + 1,
		})
	}
	return out, nil
}

func metaString(meta map[string]any, key, fallback string) string {
	if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

var _ model.Searcher = (*Searcher)(nil)
