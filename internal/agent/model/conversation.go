package model

import (
	"context"
	"time"
)

// Side-output keys handlers may set on ConversationState.Fields.
const (
	FieldAgent          = "agent"
	FieldExplanation    = "explanation"
	FieldCodeFeedback   = "code_feedback"
	FieldGeneratedEmail = "generated_email"
	FieldEmailPurpose   = "email_purpose"
	FieldEmailRecipient = "email_recipient"
	FieldEmailTone      = "email_tone"
	FieldMatchingResult = "matching_result"
	FieldSearchContext  = "search_context"
)

// Message types reported on the wire.
const (
	MessageTypeText   = "text"
	MessageTypeAnswer = "answer"
)

// Source is one ranked document attached to a retrieval answer.
type Source struct {
	Content    string `json:"content"`
	Section    string `json:"section"`
	SourcePath string `json:"source"`
	Filename   string `json:"filename"`
	Rank       int    `json:"rank"`
}

// Message is either a plain text entry or a structured answer with sources.
// Kind is stored so an empty answer keeps its shape across serialization.
type Message struct {
	Kind    string   `json:"kind,omitempty"`
	Text    string   `json:"text,omitempty"`
	Answer  string   `json:"answer,omitempty"`
	Sources []Source `json:"sources,omitempty"`
}

// TextMessage builds a plain string entry.
func TextMessage(text string) Message {
	return Message{Kind: MessageTypeText, Text: text}
}

// AnswerMessage builds a structured {answer, sources} entry.
func AnswerMessage(answer string, sources []Source) Message {
	if sources == nil {
		sources = []Source{}
	}
	return Message{Kind: MessageTypeAnswer, Answer: answer, Sources: sources}
}

// IsStructured reports whether the message is an {answer, sources} record.
// Records without a kind are classified by their fields.
func (m Message) IsStructured() bool {
	switch m.Kind {
	case MessageTypeAnswer:
		return true
	case MessageTypeText:
		return false
	}
	return m.Sources != nil || (m.Answer != "" && m.Text == "")
}

// Content returns the human readable body of the message.
func (m Message) Content() string {
	if m.IsStructured() {
		return m.Answer
	}
	return m.Text
}

// Type returns the wire type of the message.
func (m Message) Type() string {
	if m.IsStructured() {
		return MessageTypeAnswer
	}
	return MessageTypeText
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	out := m
	if m.Sources != nil {
		out.Sources = make([]Source, len(m.Sources))
		copy(out.Sources, m.Sources)
	}
	return out
}

// CloneMessages deep-copies a message list. A nil input yields an empty list.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// ConversationState is threaded through the router and exactly one agent per turn.
type ConversationState struct {
	InputQuery     string            `json:"input_query"`
	ThreadID       string            `json:"thread_id"`
	ProjectName    string            `json:"project_name,omitempty"`
	ProjectContext string            `json:"project_context,omitempty"`
	Messages       []Message         `json:"messages"`
	Fields         map[string]string `json:"fields,omitempty"`
}

// Clone returns a deep copy so a handler never observes another turn's edits.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = CloneMessages(s.Messages)
	out.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	return &out
}

// Field returns a side output set by an earlier handler.
func (s *ConversationState) Field(key string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	return s.Fields[key]
}

// HistoryEntry is one turn's archival record. Never mutated once stored.
type HistoryEntry struct {
	ThreadID  string    `json:"thread_id"`
	Query     string    `json:"query"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone deep-copies the entry.
func (e HistoryEntry) Clone() HistoryEntry {
	out := e
	out.Messages = CloneMessages(e.Messages)
	return out
}

// ReportSource is a document previously returned to a thread.
type ReportSource struct {
	Query    string `json:"query"`
	Section  string `json:"section"`
	Source   string `json:"source"`
	Filename string `json:"filename"`
}

// HistoryRepository persists per-thread turn records in append order.
type HistoryRepository interface {
	// Append stores one turn at the tail of the thread's log.
	Append(ctx context.Context, entry HistoryEntry) error

	// Entries returns a defensive copy of the thread's turns, oldest first.
	Entries(ctx context.Context, threadID string) ([]HistoryEntry, error)

	// Clear removes all turns of a thread.
	Clear(ctx context.Context, threadID string) error

	// Count returns the number of stored turns of a thread.
	Count(ctx context.Context, threadID string) (int, error)
}
