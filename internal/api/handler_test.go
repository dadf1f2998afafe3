package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	"github.com/teamfit/server/internal/metrics"
)

type fakeSupervisor struct {
	got model.TurnRequest
	out *model.ConversationState
	err error
}

func (f *fakeSupervisor) Submit(_ context.Context, req model.TurnRequest) (*model.ConversationState, error) {
	f.got = req
	return f.out, f.err
}

type fakeHistory struct {
	thread  string
	entries []model.HistoryEntry
	sources []model.ReportSource
	err     error
}

func (f *fakeHistory) Entries(_ context.Context, threadID string) ([]model.HistoryEntry, error) {
	f.thread = threadID
	return f.entries, f.err
}

func (f *fakeHistory) ReportSources(_ context.Context, threadID string) ([]model.ReportSource, error) {
	f.thread = threadID
	return f.sources, f.err
}

type fakeSummarizer struct {
	got string
	out string
	err error
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	f.got = text
	return f.out, f.err
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.Supervisor == nil {
		cfg.Supervisor = &fakeSupervisor{}
	}
	if cfg.History == nil {
		cfg.History = &fakeHistory{}
	}
	srv := httptest.NewServer(NewHandler(cfg).Router())
	t.Cleanup(srv.Close)
	return srv
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestChatReturnsMessages(t *testing.T) {
	sup := &fakeSupervisor{out: &model.ConversationState{
		Messages: []model.Message{
			model.TextMessage("이전 답변"),
			model.AnswerMessage("검색 결과", []model.Source{{Filename: "a.pdf", SourcePath: "docs/a.pdf", Rank: 1}}),
		},
	}}
	srv := newTestServer(t, Config{Supervisor: sup})

	body := `{"input_query":"추진 체계 문서 찾아줘","thread_id":"t1"}`
	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))

	out := decode[ChatResponse](t, resp)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, model.MessageTypeText, out.Messages[0].Type)
	assert.Nil(t, out.Messages[0].Sources)
	assert.Equal(t, model.MessageTypeAnswer, out.Messages[1].Type)
	assert.Equal(t, "검색 결과", out.Messages[1].Content)
	require.Len(t, out.Messages[1].Sources, 1)
	assert.Equal(t, "a.pdf", out.Messages[1].Sources[0].Filename)

	assert.Equal(t, "추진 체계 문서 찾아줘", sup.got.InputQuery)
	assert.Equal(t, "t1", sup.got.ThreadID)
}

func TestChatRejectsEmptyQuery(t *testing.T) {
	sup := &fakeSupervisor{}
	srv := newTestServer(t, Config{Supervisor: sup})

	for _, body := range []string{`{"input_query":"   "}`, `not json`} {
		resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		out := decode[ErrorResponse](t, resp)
		assert.NotEmpty(t, out.Detail)
		assert.NotEmpty(t, out.RequestID)
	}
	assert.Empty(t, sup.got.InputQuery)
}

func TestChatMapsTurnErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"precondition", errx.New(errx.ErrEmptyInput, http.StatusBadRequest, "project name is required"), http.StatusBadRequest},
		{"provider", errx.WrapProvider(errors.New("quota")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, Config{Supervisor: &fakeSupervisor{err: tc.err}})
			resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"input_query":"q"}`))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestMeetingSummarize(t *testing.T) {
	const transcript = "김팀장: 센서 시험은 금요일까지 끝냅시다."

	t.Run("form", func(t *testing.T) {
		sum := &fakeSummarizer{out: "센서 시험 마감을 금요일로 정했다."}
		srv := newTestServer(t, Config{Summarizer: sum})

		resp, err := http.PostForm(srv.URL+"/meeting/summarize", url.Values{"text": {transcript}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		out := decode[MeetingSummaryResponse](t, resp)
		assert.Equal(t, "success", out.Status)
		assert.Equal(t, transcript, out.OriginalText)
		assert.Equal(t, "센서 시험 마감을 금요일로 정했다.", out.Summary)
		assert.Equal(t, transcript, sum.got)
	})

	t.Run("json", func(t *testing.T) {
		sum := &fakeSummarizer{out: "요약"}
		srv := newTestServer(t, Config{Summarizer: sum})

		body, err := json.Marshal(MeetingSummaryRequest{Text: transcript})
		require.NoError(t, err)
		resp, err := http.Post(srv.URL+"/meeting/summarize", "application/json", strings.NewReader(string(body)))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
		assert.Equal(t, transcript, sum.got)
	})
}

func TestMeetingSummarizeErrors(t *testing.T) {
	t.Run("blank text", func(t *testing.T) {
		sum := &fakeSummarizer{}
		srv := newTestServer(t, Config{Summarizer: sum})

		resp, err := http.PostForm(srv.URL+"/meeting/summarize", url.Values{"text": {"  "}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		out := decode[ErrorResponse](t, resp)
		assert.Equal(t, "text is required", out.Detail)
		assert.Empty(t, sum.got)
	})

	t.Run("provider failure", func(t *testing.T) {
		sum := &fakeSummarizer{err: errx.WrapProvider(errors.New("quota"))}
		srv := newTestServer(t, Config{Summarizer: sum})

		resp, err := http.PostForm(srv.URL+"/meeting/summarize", url.Values{"text": {"회의록"}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, Config{})

		resp, err := http.PostForm(srv.URL+"/meeting/summarize", url.Values{"text": {"회의록"}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHistoryUsesDefaultThread(t *testing.T) {
	hist := &fakeHistory{entries: []model.HistoryEntry{
		{Query: "q1", Messages: []model.Message{model.TextMessage("a1")}},
		{Query: "q2", Messages: []model.Message{model.TextMessage("a1"), model.AnswerMessage("a2", nil)}},
	}}
	srv := newTestServer(t, Config{History: hist, DefaultThreadID: "default"})

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "default", hist.thread)

	out := decode[HistoryResponse](t, resp)
	require.Len(t, out.Histories, 2)
	assert.Equal(t, "q2", out.Histories[1].Query)
	require.Len(t, out.Histories[1].Messages, 2)
	assert.NotNil(t, out.Histories[1].Messages[1].Sources)
}

func TestHistoryEmptyThread(t *testing.T) {
	hist := &fakeHistory{}
	srv := newTestServer(t, Config{History: hist})

	resp, err := http.Get(srv.URL + "/history?thread_id=new")
	require.NoError(t, err)
	assert.Equal(t, "new", hist.thread)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.JSONEq(t, `{"histories":[]}`, string(raw))
}

func TestReports(t *testing.T) {
	hist := &fakeHistory{sources: []model.ReportSource{
		{Query: "q", Section: "개요", Source: "docs/a.pdf", Filename: "a.pdf"},
	}}
	srv := newTestServer(t, Config{History: hist})

	resp, err := http.Get(srv.URL + "/reports?thread_id=t9")
	require.NoError(t, err)
	assert.Equal(t, "t9", hist.thread)
	out := decode[ReportListResponse](t, resp)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "docs/a.pdf", out.Sources[0].Source)
}

func TestReportsStoreFailure(t *testing.T) {
	hist := &fakeHistory{err: errx.WrapRedis(errors.New("connection refused"))}
	srv := newTestServer(t, Config{History: hist})

	resp, err := http.Get(srv.URL + "/reports")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

func setupDownloadRoot(t *testing.T) (root, outside string) {
	t.Helper()
	base := t.TempDir()
	root = filepath.Join(base, "root")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.pdf"), []byte("%PDF-1.4 report"), 0o644))

	outside = filepath.Join(base, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	return root, outside
}

func TestDownload(t *testing.T) {
	root, outside := setupDownloadRoot(t)
	symlinked := true
	if err := os.Symlink(outside, filepath.Join(root, "docs", "link.txt")); err != nil {
		symlinked = false
	}

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	srv := newTestServer(t, Config{DownloadRoot: root, Metrics: m})

	cases := []struct {
		name   string
		token  string
		status int
		skip   bool
	}{
		{"valid with dot prefix", "./docs/a.pdf", http.StatusOK, false},
		{"valid backslashes", url.QueryEscape(`docs\a.pdf`), http.StatusOK, false},
		{"parent traversal", "../../etc/passwd", http.StatusForbidden, false},
		{"encoded traversal", "%2e%2e%2f%2e%2e%2fsecret.txt", http.StatusForbidden, false},
		{"absolute outside root", url.QueryEscape(outside), http.StatusForbidden, false},
		{"missing file", "docs/missing.pdf", http.StatusNotFound, false},
		{"directory", "docs", http.StatusNotFound, false},
		{"empty", "", http.StatusBadRequest, false},
		{"symlink escaping root", "docs/link.txt", http.StatusForbidden, !symlinked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.skip {
				t.Skip("symlinks unsupported")
			}
			resp, err := http.Post(srv.URL+"/reports/download?source="+tc.token, "", nil)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)

			if tc.status == http.StatusOK {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, "%PDF-1.4 report", string(body))
				assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename=a.pdf`)
				assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	root, _ := setupDownloadRoot(t)
	srv := newTestServer(t, Config{DownloadRoot: root, Metrics: m, Gatherer: reg})

	resp, err := http.Post(srv.URL+"/reports/download?source=../x", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, string(raw), `teamfit_report_downloads_total{status="403"} 1`)
}

func TestRootAndRequestID(t *testing.T) {
	srv := newTestServer(t, Config{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set(headerRequestID, "req-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-1", resp.Header.Get(headerRequestID))
	resp.Body.Close()
}

func TestResolveDownloadPathStripsRepeatedDotPrefix(t *testing.T) {
	root, _ := setupDownloadRoot(t)
	p, err := ResolveDownloadPath(root, "././docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", filepath.Base(p))

	_, err = ResolveDownloadPath(root, "%zz")
	assert.Equal(t, http.StatusBadRequest, errx.StatusOf(err))
}
