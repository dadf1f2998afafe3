package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	errx "github.com/teamfit/server/internal/core/error"
)

const defaultTopK = 3

type indexedDoc struct {
	doc    *schema.Document
	vector []float64
}

// MemoryIndex is an in-process cosine similarity index implementing the
// Eino retriever component. Documents are embedded with docEmbedder and
// queries with queryEmbedder.
type MemoryIndex struct {
	name          string
	docEmbedder   embedding.Embedder
	queryEmbedder embedding.Embedder

	mu   sync.RWMutex
	docs []indexedDoc
}

func NewMemoryIndex(name string, docEmbedder, queryEmbedder embedding.Embedder) *MemoryIndex {
	if queryEmbedder == nil {
		queryEmbedder = docEmbedder
	}
	return &MemoryIndex{name: name, docEmbedder: docEmbedder, queryEmbedder: queryEmbedder}
}

// Add embeds and stores docs.
func (m *MemoryIndex) Add(ctx context.Context, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := m.docEmbedder.EmbedStrings(ctx, texts)
	if err != nil {
		return fmt.Errorf("index %s: %w", m.name, err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("index %s: got %d vectors for %d documents", m.name, len(vectors), len(docs))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range docs {
		m.docs = append(m.docs, indexedDoc{doc: d, vector: vectors[i]})
	}
	return nil
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Retrieve returns the top-k documents by descending cosine similarity.
// Ties keep insertion order. An empty index fails with errx.ErrIndexUnavailable.
func (m *MemoryIndex) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	k := defaultTopK
	o := retriever.GetCommonOptions(&retriever.Options{TopK: &k}, opts...)
	if o.TopK != nil && *o.TopK > 0 {
		k = *o.TopK
	}

	m.mu.RLock()
	docs := m.docs
	m.mu.RUnlock()
	if len(docs) == 0 {
		return nil, errx.WrapIndex(fmt.Errorf("index %s is empty", m.name))
	}

	vectors, err := m.queryEmbedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", m.name, err)
	}
	if len(vectors) != 1 {
		return nil, errx.WrapProvider(fmt.Errorf("index %s: no query embedding", m.name))
	}
	q := vectors[0]

	type scored struct {
		doc   *schema.Document
		score float64
	}
	hits := make([]scored, len(docs))
	for i, d := range docs {
		hits[i] = scored{doc: d.doc, score: cosine(q, d.vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if k > len(hits) {
		k = len(hits)
	}
	out := make([]*schema.Document, 0, k)
	for _, h := range hits[:k] {
		meta := make(map[string]any, len(h.doc.MetaData))
		for key, v := range h.doc.MetaData {
			meta[key] = v
		}
		doc := &schema.Document{ID: h.doc.ID, Content: h.doc.Content, MetaData: meta}
		out = append(out, doc.WithScore(h.score))
	}
	return out, nil
}

func (m *MemoryIndex) GetType() string {
	return "MemoryIndex"
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ retriever.Retriever = (*MemoryIndex)(nil)
