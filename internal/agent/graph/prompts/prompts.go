package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/teamfit/server/internal/agent/graph/parsers"
	"github.com/teamfit/server/internal/agent/model"
)

var (
	//go:embed template/router.txt
	routerSystemPrompt string
	//go:embed template/term_explain.txt
	termExplainSystemPrompt string
	//go:embed template/code_check.txt
	codeCheckSystemPrompt string
	//go:embed template/document_find.txt
	documentFindSystemPrompt string
	//go:embed template/report_guide.txt
	reportGuideSystemPrompt string
	//go:embed template/email_draft.txt
	emailDraftSystemPrompt string
	//go:embed template/personnel_match.txt
	personnelMatchSystemPrompt string
	//go:embed template/meeting_summary.txt
	meetingSummarySystemPrompt string
)

// User-side templates. Request text is always passed as a variable so it is
// never parsed as template syntax.
const (
	routerUserPrompt         = "입력:\n{{.InputQuery}}"
	termExplainUserPrompt    = "Term: {{.Term}}\nWeb search results:\n{{.WebResult}}"
	codeCheckUserPrompt      = "[User Code]\n{{.Code}}\n\n[Related Coding Rules]\n{{.Rules}}"
	retrievalUserPrompt      = "질문: {{.Query}}\n\n관련 문서:\n{{.Context}}"
	emailDraftUserPrompt     = "요청 내용:\n{{.Request}}"
	personnelMatchUserPrompt = "Employee information is as follows:\n{{.Employees}}\nUser question: {{.Query}}\n\nProject: {{.ProjectName}}"
	meetingSummaryUserPrompt = "Here is the meeting transcript:\n\"\"\"{{.Transcript}}\"\"\""
)

var labelPurposes = map[model.AgentLabel]string{
	model.AgentTermExplain:    "프로젝트 관련 용어나 개념 설명",
	model.AgentCodeCheck:      "사용자가 작성한 코드에 대해 규칙 검토",
	model.AgentDocumentFind:   "사용자 질의 내용이 문서나 보고서를 찾아달라고 하는 것 같을때",
	model.AgentReportGuide:    "사용자 질의 내용이 문서나 보고서 작성에 대해 도움을 요청하는 것 같을때",
	model.AgentEmailDraft:     "이메일 작성 요청",
	model.AgentPersonnelMatch: "특정 담당자를 묻는 질문",
	model.AgentFallback:       "위 항목들에 해당하지 않음",
}

type labelLine struct {
	Index   int
	Name    string
	Purpose string
}

// render formats a system + user template pair through the Eino prompt
// component so prompt callbacks fire for every agent call.
func render(ctx context.Context, name, system, user string, vars map[string]any) ([]*schema.Message, error) {
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "GoTemplate",
		Component: components.ComponentOfPrompt,
	})
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) != 2 || msgs[0] == nil || msgs[1] == nil {
		return nil, fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs, nil
}

// RenderRouter renders the closed-label classification prompt.
func RenderRouter(ctx context.Context, query string) ([]*schema.Message, error) {
	labels := model.AgentLabels()
	lines := make([]labelLine, 0, len(labels))
	for i, l := range labels {
		lines = append(lines, labelLine{Index: i + 1, Name: l.String(), Purpose: labelPurposes[l]})
	}
	return render(ctx, "router", routerSystemPrompt, routerUserPrompt, map[string]any{
		"Labels":     lines,
		"InputQuery": query,
	})
}

// RenderTermExplain renders the term explanation prompt.
func RenderTermExplain(ctx context.Context, term, webResult, projectName, projectContext string) ([]*schema.Message, error) {
	return render(ctx, "term_explain", termExplainSystemPrompt, termExplainUserPrompt, map[string]any{
		"ProjectName":    projectName,
		"ProjectContext": projectContext,
		"Term":           term,
		"WebResult":      webResult,
	})
}

// RenderCodeCheck renders the coding-convention review prompt.
func RenderCodeCheck(ctx context.Context, code, rules string) ([]*schema.Message, error) {
	return render(ctx, "code_check", codeCheckSystemPrompt, codeCheckUserPrompt, map[string]any{
		"Code":  code,
		"Rules": rules,
	})
}

// RenderDocumentFind renders the grounded document answering prompt.
func RenderDocumentFind(ctx context.Context, query, docContext, projectName string) ([]*schema.Message, error) {
	return render(ctx, "document_find", documentFindSystemPrompt, retrievalUserPrompt, map[string]any{
		"ProjectName": projectName,
		"Query":       query,
		"Context":     docContext,
	})
}

// RenderReportGuide renders the report writing guide prompt.
func RenderReportGuide(ctx context.Context, query, docContext, projectName string) ([]*schema.Message, error) {
	return render(ctx, "report_guide", reportGuideSystemPrompt, retrievalUserPrompt, map[string]any{
		"ProjectName": projectName,
		"Query":       query,
		"Context":     docContext,
	})
}

// RenderEmailDraft renders the email drafting prompt.
func RenderEmailDraft(ctx context.Context, request, projectName string) ([]*schema.Message, error) {
	return render(ctx, "email_draft", emailDraftSystemPrompt, emailDraftUserPrompt, map[string]any{
		"DefaultPurpose":   parsers.DefaultEmailPurpose,
		"DefaultRecipient": parsers.DefaultEmailRecipient,
		"DefaultTone":      parsers.DefaultEmailTone,
		"ProjectName":      projectName,
		"Request":          request,
	})
}

// RenderPersonnelMatch renders the always-match personnel prompt.
func RenderPersonnelMatch(ctx context.Context, query, employees, projectName string) ([]*schema.Message, error) {
	return render(ctx, "personnel_match", personnelMatchSystemPrompt, personnelMatchUserPrompt, map[string]any{
		"ProjectName": projectName,
		"Query":       query,
		"Employees":   employees,
	})
}

// RenderMeetingSummary renders the meeting transcript summary prompt.
func RenderMeetingSummary(ctx context.Context, transcript string) ([]*schema.Message, error) {
	return render(ctx, "meeting_summary", meetingSummarySystemPrompt, meetingSummaryUserPrompt, map[string]any{
		"Transcript": transcript,
	})
}
