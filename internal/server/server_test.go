// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprout-labs/farmassist/internal/completion"
	"github.com/sprout-labs/farmassist/internal/config"
	"github.com/sprout-labs/farmassist/internal/conversation"
	"github.com/sprout-labs/farmassist/internal/model"
	"github.com/sprout-labs/farmassist/internal/session"
)

// fakeCompleter answers from a function.
type fakeCompleter func(ctx context.Context, system, content string) (*completion.Response, error)

func (f fakeCompleter) Complete(ctx context.Context, system, content string) (*completion.Response, error) {
	return f(ctx, system, content)
}

func replyWith(text string) fakeCompleter {
	return func(ctx context.Context, system, content string) (*completion.Response, error) {
		return &completion.Response{Choices: []completion.Choice{{
			Message: completion.ChatMessage{Role: "assistant", Content: text},
		}}}, nil
	}
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestServer(t *testing.T, completer conversation.Completer, opts Options) (*httptest.Server, *session.Manager) {
	t.Helper()
	holder := config.NewHolder(config.Default(), "")
	factory := session.NewClientFactory(holder, completer, nil, conversation.WithSleeper(noSleep))
	mgr := session.NewManager(session.DefaultConfig(), factory, nil)
	t.Cleanup(mgr.Close)

	srv := New(mgr, opts, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mgr
}

func do(t *testing.T, method, url, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func createSession(t *testing.T, base, variant string) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, base+"/v1/sessions", `{"variant":"`+variant+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(body, &created))
	return created.ID
}

func getStatus(t *testing.T, base, id, query string) session.Status {
	t.Helper()
	resp, body := do(t, http.MethodGet, base+"/v1/sessions/"+id+query, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var st session.Status
	require.NoError(t, json.Unmarshal(body, &st))
	return st
}

// ============================================================================
// ENDPOINTS
// ============================================================================

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("ok."), Options{})

	resp, body := do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	var health HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, Version, health.Version)
}

func TestVariants(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("ok."), Options{})

	_, body := do(t, http.MethodGet, ts.URL+"/v1/variants", "")
	assert.Contains(t, string(body), `"name":"diary"`)
	assert.Contains(t, string(body), `"name":"helper"`)
	assert.NotContains(t, string(body), conversation.HelperPrompt)
}

func TestSessionLifecycle(t *testing.T) {
	ts, mgr := newTestServer(t, replyWith("물을 자주 주세요."), Options{})

	id := createSession(t, ts.URL, "helper")
	assert.Equal(t, 1, mgr.Len())

	resp, body := do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/messages", `{"text":"상추 키우는 방법"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var submit SubmitResponse
	require.NoError(t, json.Unmarshal(body, &submit))
	assert.True(t, submit.Accepted)

	st := getStatus(t, ts.URL, id, "?wait=5s")
	assert.False(t, st.Busy)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, model.NewUserMessage("상추 키우는 방법"), st.Messages[0])
	assert.Equal(t, "물을 자주 주세요.", st.Messages[1].Text)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/v1/sessions/"+id+"/messages", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, getStatus(t, ts.URL, id, "").Messages)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, ts.URL+"/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTranscript_Markdown(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("물을 자주 주세요."), Options{})

	id := createSession(t, ts.URL, "helper")
	do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/messages", `{"text":"상추 키우는 방법"}`)
	getStatus(t, ts.URL, id, "?wait=5s")

	resp, body := do(t, http.MethodGet, ts.URL+"/v1/sessions/"+id+"/transcript", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	assert.Contains(t, string(body), "상추 키우는 방법")
	assert.Contains(t, string(body), "물을 자주 주세요.")

	resp, _ = do(t, http.MethodGet, ts.URL+"/v1/sessions/missing/transcript", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateSession_DefaultAndUnknownVariant(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("ok."), Options{DefaultVariant: "diary"})

	resp, body := do(t, http.MethodPost, ts.URL+"/v1/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, string(body), `"variant":"diary"`)
	assert.NotEmpty(t, resp.Header.Get("Location"))

	resp, _ = do(t, http.MethodPost, ts.URL+"/v1/sessions", `{"variant":"weather"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/v1/sessions", `{"variant":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmit_BlankAndBusyAreNotErrors(t *testing.T) {
	release := make(chan struct{})
	blocking := fakeCompleter(func(ctx context.Context, system, content string) (*completion.Response, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return replyWith("끝.")(ctx, system, content)
	})
	ts, _ := newTestServer(t, blocking, Options{})
	id := createSession(t, ts.URL, "helper")

	resp, body := do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/messages", `{"text":"   "}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"accepted":false`)

	resp, _ = do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/messages", `{"text":"첫 질문"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body = do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/messages", `{"text":"두 번째"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"accepted":false`)
	assert.Contains(t, string(body), `"busy":true`)

	close(release)
	st := getStatus(t, ts.URL, id, "?wait=5s")
	assert.Len(t, st.Messages, 2)
}

func TestSubmit_ServiceFailureBecomesTranscriptMessage(t *testing.T) {
	failing := fakeCompleter(func(ctx context.Context, system, content string) (*completion.Response, error) {
		return nil, &completion.ServiceError{Status: 401, Message: "Incorrect API key provided"}
	})
	ts, _ := newTestServer(t, failing, Options{})
	id := createSession(t, ts.URL, "diary")

	resp, _ := do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/messages", `{"text":"오늘 일지"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	st := getStatus(t, ts.URL, id, "?wait=5s")
	require.Len(t, st.Messages, 2)
	assert.Equal(t, model.KindError, st.Messages[1].Kind)
	assert.Equal(t, conversation.ErrorNotice("Incorrect API key provided"), st.Messages[1].Text)
}

func TestSubmit_UnknownSessionAndBadBody(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("ok."), Options{})

	resp, body := do(t, http.MethodPost, ts.URL+"/v1/sessions/nope/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"message":"session not found"`)

	id := createSession(t, ts.URL, "helper")
	resp, _ = do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/messages", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/messages", `{"txt":"typo"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSession_InvalidWait(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("ok."), Options{})
	id := createSession(t, ts.URL, "helper")

	resp, _ := do(t, http.MethodGet, ts.URL+"/v1/sessions/"+id+"?wait=soon", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListSessions(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("ok."), Options{})
	createSession(t, ts.URL, "helper")
	createSession(t, ts.URL, "diary")

	_, body := do(t, http.MethodGet, ts.URL+"/v1/sessions", "")
	var list struct {
		Sessions []SessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Sessions, 2)
}

// ============================================================================
// MIDDLEWARE
// ============================================================================

func TestAuth(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("ok."), Options{AuthToken: "s3cret"})

	resp, _ := do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health stays open")

	resp, _ = do(t, http.MethodGet, ts.URL+"/v1/variants", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/v1/variants", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/v1/variants", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("ok."), Options{RateLimit: 0.01, RateBurst: 2})

	for i := 0; i < 2; i++ {
		resp, _ := do(t, http.MethodGet, ts.URL+"/health", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "100", resp.Header.Get("Retry-After"))
}

func TestBodyLimit(t *testing.T) {
	ts, _ := newTestServer(t, replyWith("ok."), Options{MaxBodyBytes: 1024})
	id := createSession(t, ts.URL, "helper")

	big := `{"text":"` + strings.Repeat("가", 2000) + `"}`
	resp, _ := do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/messages", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(testLogger(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoggingMiddleware_DoesNotLogBodies(t *testing.T) {
	var logs bytes.Buffer
	handler := LoggingMiddleware(testLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/x/messages", strings.NewReader(`{"text":"비밀 질문"}`))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, logs.String(), "status=418")
	assert.NotContains(t, logs.String(), "비밀 질문")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "203.0.113.9", GetClientIP(req), "untrusted peers cannot spoof")

	req.RemoteAddr = "127.0.0.1:5000"
	assert.Equal(t, "198.51.100.1", GetClientIP(req))
}

func TestValidateBearerToken(t *testing.T) {
	assert.True(t, ValidateBearerToken("abc", "abc"))
	assert.False(t, ValidateBearerToken("abc", "abd"))
	assert.False(t, ValidateBearerToken("", ""))
}

func TestServe_GracefulShutdown(t *testing.T) {
	holder := config.NewHolder(config.Default(), "")
	mgr := session.NewManager(session.DefaultConfig(), session.NewClientFactory(holder, replyWith("ok."), nil), nil)
	srv := New(mgr, Options{Addr: "127.0.0.1:0"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func testLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}
