// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLanguageToolCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Their going to the store.", r.PostForm.Get("text"))
		assert.Equal(t, "en-US", r.PostForm.Get("language"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"matches": [
			{"message": "Possible spelling mistake", "offset": 0, "context": {"text": "Their going"}},
			{"message": "Sentence fragment", "offset": 6, "context": {"text": "going to"}}
		]}`))
	}))
	defer srv.Close()

	orig := languageToolBase
	languageToolBase = srv.URL
	defer func() { languageToolBase = orig }()

	lt := NewLanguageTool(srv.Client(), zap.NewNop())
	issues, err := lt.Check(context.Background(), "Their going to the store.")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "Possible spelling mistake", issues[0].Message)
	assert.Equal(t, "Their going", issues[0].Context)
	assert.Equal(t, 6, issues[1].Offset)
}

func TestLanguageToolCheckNoIssues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"matches": []}`))
	}))
	defer srv.Close()

	orig := languageToolBase
	languageToolBase = srv.URL
	defer func() { languageToolBase = orig }()

	lt := NewLanguageTool(srv.Client(), zap.NewNop())
	issues, err := lt.Check(context.Background(), "A clean sentence.")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestLanguageToolCheckServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	orig := languageToolBase
	languageToolBase = srv.URL
	defer func() { languageToolBase = orig }()

	lt := NewLanguageTool(srv.Client(), zap.NewNop())
	_, err := lt.Check(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}
