package agents

import (
	"github.com/teamfit/server/internal/agent/graph/prompts"
	"github.com/teamfit/server/internal/agent/model"
)

// DocumentFind answers "what does the document say" from the report corpus.
type DocumentFind struct {
	retrievalAgent
}

func NewDocumentFind(gen model.Generator, reports model.Searcher, k, sourcesLimit int) *DocumentFind {
	return &DocumentFind{retrievalAgent{
		label:        model.AgentDocumentFind,
		gen:          gen,
		index:        reports,
		k:            k,
		sourcesLimit: sourcesLimit,
		render:       prompts.RenderDocumentFind,
	}}
}
