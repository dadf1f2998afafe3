package api

import (
	"encoding/json"

	"github.com/teamfit/server/internal/agent/model"
)

// ChatRequest is the turn submission body.
type ChatRequest struct {
	InputQuery     string `json:"input_query"`
	ThreadID       string `json:"thread_id"`
	ProjectName    string `json:"project_name"`
	ProjectContext string `json:"project_context"`
}

// MessageDTO is one entry of a conversation on the wire.
type MessageDTO struct {
	Content string         `json:"content"`
	Sources []model.Source `json:"sources,omitempty"`
	Type    string         `json:"type"`
}

type messageWire struct {
	Content string          `json:"content"`
	Sources *[]model.Source `json:"sources,omitempty"`
	Type    string          `json:"type"`
}

// MarshalJSON keeps an empty sources list on structured messages and omits
// it on text messages.
func (m MessageDTO) MarshalJSON() ([]byte, error) {
	w := messageWire{Content: m.Content, Type: m.Type}
	if m.Sources != nil {
		w.Sources = &m.Sources
	}
	return json.Marshal(w)
}

type ChatResponse struct {
	Messages []MessageDTO `json:"messages"`
}

type HistoryItem struct {
	Query    string       `json:"query"`
	Messages []MessageDTO `json:"messages"`
}

type HistoryResponse struct {
	Histories []HistoryItem `json:"histories"`
}

type ReportListResponse struct {
	Sources []model.ReportSource `json:"sources"`
}

// MeetingSummaryRequest is the JSON form of a summary request.
type MeetingSummaryRequest struct {
	Text string `json:"text"`
}

type MeetingSummaryResponse struct {
	Status       string `json:"status"`
	OriginalText string `json:"original_text"`
	Summary      string `json:"summary"`
}

type ErrorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

func toMessageDTOs(msgs []model.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		dto := MessageDTO{Content: m.Content(), Type: m.Type()}
		if m.IsStructured() {
			dto.Sources = m.Sources
			if dto.Sources == nil {
				dto.Sources = []model.Source{}
			}
		}
		out = append(out, dto)
	}
	return out
}
