package agents

import (
	"context"
	"fmt"

	"github.com/teamfit/server/internal/agent/model"
)

const fallbackPrefix = "❗ 예외 처리 결과:\n"

// SupportedFunctions is the enumerated list shown when no agent applies.
const SupportedFunctions = `1. 용어 설명: 프로젝트 관련 용어나 개념을 쉽게 설명
2. 코드 검수: 작성한 코드의 규칙 위반 및 개선 사항 분석
3. 이메일 작성 가이드: 상황에 맞는 이메일 예시 제공
4. 담당자 매칭: 특정 업무 관련 담당자 안내
5. 문서 검색: 계획서, 회의록 등 사내 문서 검색
6. 보고서 작성 도우미: 보고서의 필드를 어떻게 작성하면 좋을지 가이드 제공`

// Fallback answers queries outside every supported function. It makes no
// capability calls.
type Fallback struct{}

func NewFallback() *Fallback { return &Fallback{} }

func (f *Fallback) Label() model.AgentLabel { return model.AgentFallback }

func (f *Fallback) Invoke(ctx context.Context, state *model.ConversationState, cfg model.RunConfig) (model.Update, error) {
	text := fallbackPrefix + fallbackResponse(state.InputQuery)
	return update(f.Label(), cfg, model.TextMessage(text), nil), nil
}

func fallbackResponse(query string) string {
	return fmt.Sprintf(`죄송합니다. 현재 질문은 아래의 기능 범주 중 어느 하나에도 정확히 해당하지 않아 답변을 생성할 수 없습니다.

현재 지원되는 기능은 다음과 같습니다:
%s

보다 정확한 도움을 드릴 수 있도록, 질문을 다시 구체적으로 작성해주시겠어요?

[입력된 질문: "%s"]`, SupportedFunctions, query)
}
