package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// RetrievedDocument is one ranked hit of a similarity search. Rank is 1-based
// and follows the order returned by the backend.
type RetrievedDocument struct {
	Content    string
	Section    string
	SourcePath string
	Filename   string
	Rank       int
}

// Generator is the LLM generation capability.
// Implementations fail with an error matching errx.ErrProvider.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, messages []*schema.Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	return f(ctx, messages)
}

// Searcher is the vector similarity search capability.
// Implementations fail with errx.ErrIndexUnavailable when the index is missing or empty.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]RetrievedDocument, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string, k int) ([]RetrievedDocument, error)

func (f SearcherFunc) Search(ctx context.Context, query string, k int) ([]RetrievedDocument, error) {
	return f(ctx, query, k)
}

// WebSearcher is the web search capability used by the term explainer.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

// WebSearcherFunc adapts a function to WebSearcher.
type WebSearcherFunc func(ctx context.Context, query string, maxResults int) ([]string, error)

func (f WebSearcherFunc) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	return f(ctx, query, maxResults)
}
