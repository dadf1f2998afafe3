package agents

import (
	"github.com/teamfit/server/internal/agent/graph/prompts"
	"github.com/teamfit/server/internal/agent/model"
)

// ReportGuide advises how a report section should be written, using past
// reports as examples.
type ReportGuide struct {
	retrievalAgent
}

func NewReportGuide(gen model.Generator, reports model.Searcher, k, sourcesLimit int) *ReportGuide {
	return &ReportGuide{retrievalAgent{
		label:        model.AgentReportGuide,
		gen:          gen,
		index:        reports,
		k:            k,
		sourcesLimit: sourcesLimit,
		render:       prompts.RenderReportGuide,
	}}
}
