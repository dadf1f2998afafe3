package retrieval

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"

	logx "github.com/teamfit/server/pkg/logger"
)

// Loader produces the documents of one corpus.
type Loader func() ([]*schema.Document, error)

// BuildIndex loads and embeds one corpus. A load or embed failure is logged
// and leaves the index empty, so searches report it as unavailable.
func BuildIndex(ctx context.Context, name string, load Loader, docEmbedder, queryEmbedder embedding.Embedder) *MemoryIndex {
	idx := NewMemoryIndex(name, docEmbedder, queryEmbedder)
	docs, err := load()
	if err != nil {
		logx.Warn().Err(err).Str("index", name).Msg("corpus not loaded; index unavailable")
		return idx
	}
	if err := idx.Add(ctx, docs); err != nil {
		logx.Warn().Err(err).Str("index", name).Msg("corpus not embedded; index unavailable")
		return idx
	}
	logx.Info().Str("index", name).Int("documents", idx.Len()).Msg("index ready")
	return idx
}
