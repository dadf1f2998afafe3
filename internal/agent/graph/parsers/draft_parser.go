package parsers

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	errx "github.com/teamfit/server/internal/core/error"
	logx "github.com/teamfit/server/pkg/logger"
)

const (
	recDelim   = "##"
	tupDelim   = "<||>"
	endDelim   = "<|COMPLETE|>"
	emailDelim = "<|EMAIL|>"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxRecords    = 50        // maximum number of field records to process
	maxTupleLen   = 2 * 1024  // 2KB per tuple
	maxErrSnippet = 200       // limit error snippet size
)

// Defaults applied when the model omits an email attribute.
const (
	DefaultEmailPurpose   = "요청"
	DefaultEmailRecipient = "상사"
	DefaultEmailTone      = "정중하게"
)

// EmailDraft is the parsed output of the email drafting prompt.
type EmailDraft struct {
	Purpose   string
	Recipient string
	Tone      string
	Body      string
	// ParsingErrors lists records that were skipped.
	ParsingErrors []string
}

type rawTuple struct {
	Type  string
	Parts []string
}

func parseRawTuple(s string) (*rawTuple, error) {
	if s == "" {
		return nil, fmt.Errorf("empty tuple")
	}
	// enforce a sane upper bound per record
	if len(s) > maxTupleLen {
		return nil, fmt.Errorf("tuple too large")
	}

	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("invalid tuple parens")
	}
	// remove the outermost parens only
	inner := s[1 : len(s)-1]
	parts := strings.SplitN(inner, tupDelim, 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid tuple parts")
	}
	return &rawTuple{Type: strings.TrimSpace(parts[0]), Parts: parts}, nil
}

// ParseEmailDraft splits the model output into attribute records and the
// email body. Missing attributes fall back to the defaults; output without
// the body delimiter is treated as the body itself.
func ParseEmailDraft(content string) (draft *EmailDraft, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "email_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("email parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			draft = nil
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "email_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "")
	}
	// honor completion delimiter if present
	if idx := strings.Index(content, endDelim); idx >= 0 {
		content = content[:idx]
	}

	draft = &EmailDraft{}

	head, body, found := strings.Cut(content, emailDelim)
	if !found {
		// no structured header: the whole reply is the email
		head, body = "", content
	}
	draft.Body = strings.TrimSpace(body)

	processed := 0
	for _, rec := range strings.Split(head, recDelim) {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		if processed >= maxRecords {
			draft.ParsingErrors = append(draft.ParsingErrors, "records capped")
			break
		}
		processed++

		rt, rerr := parseRawTuple(rec)
		if rerr != nil || rt.Type != "field" {
			draft.ParsingErrors = append(draft.ParsingErrors, fmt.Sprintf("bad_record: %s", safeSnippet(rec)))
			continue
		}
		name := strings.ToLower(strings.TrimSpace(rt.Parts[1]))
		value := strings.TrimSpace(rt.Parts[2])
		if value == "" {
			continue
		}
		switch name {
		case "purpose":
			draft.Purpose = value
		case "recipient":
			draft.Recipient = value
		case "tone":
			draft.Tone = value
		default:
			draft.ParsingErrors = append(draft.ParsingErrors, "unknown field: "+safeSnippet(name))
		}
	}

	if draft.Purpose == "" {
		draft.Purpose = DefaultEmailPurpose
	}
	if draft.Recipient == "" {
		draft.Recipient = DefaultEmailRecipient
	}
	if draft.Tone == "" {
		draft.Tone = DefaultEmailTone
	}
	return draft, nil
}

// --- helpers ---

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
