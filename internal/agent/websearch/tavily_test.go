package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
)

func TestTavilySearch(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[{"content":"스마트팜은 ICT 융합 농장"},{"content":"  "},{"content":"온실 자동화"}]}`))
	}))
	defer srv.Close()

	tv := NewTavily(model.WebSearchConfig{APIKey: "key-1", Endpoint: srv.URL})
	snippets, err := tv.Search(context.Background(), "스마트팜", 2)
	require.NoError(t, err)

	assert.Equal(t, searchRequest{Query: "스마트팜", MaxResults: 2}, got)
	assert.Equal(t, []string{"스마트팜은 ICT 융합 농장", "온실 자동화"}, snippets)
}

func TestTavilyMissingKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	_, err := NewTavily(model.WebSearchConfig{Endpoint: srv.URL}).Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, errx.ErrProvider)
	assert.ErrorIs(t, err, errx.ErrMissingCredential)
	assert.False(t, called)
}

func TestTavilyFailures(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"unauthorized": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"invalid key"}`, http.StatusUnauthorized)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":`))
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			_, err := NewTavily(model.WebSearchConfig{APIKey: "k", Endpoint: srv.URL}).Search(context.Background(), "q", 3)
			assert.ErrorIs(t, err, errx.ErrProvider)
		})
	}
}
