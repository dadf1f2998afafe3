package graph

import "github.com/teamfit/server/internal/agent/model"

// Merge applies a handler update onto a copy of state. The update's message
// is appended to the carried forward list, fields present in the update
// overwrite, and every other key is kept.
func Merge(state *model.ConversationState, upd model.Update) *model.ConversationState {
	out := state.Clone()
	if out == nil {
		out = &model.ConversationState{Fields: map[string]string{}}
	}
	out.Messages = append(out.Messages, upd.Message.Clone())
	if upd.ThreadID != "" {
		out.ThreadID = upd.ThreadID
	}
	for k, v := range upd.Fields {
		out.Fields[k] = v
	}
	return out
}
