package httpadapter_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/novalabs/nova-agent/internal/adapters/http"
	"github.com/novalabs/nova-agent/internal/adapters/llm"
	memstore "github.com/novalabs/nova-agent/internal/adapters/storage/memory"
	"github.com/novalabs/nova-agent/internal/app/dialog"
	"github.com/novalabs/nova-agent/internal/app/ledger"
	memoryapp "github.com/novalabs/nova-agent/internal/app/memory"
	"github.com/novalabs/nova-agent/internal/app/session"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	mockDialog := llm.NewMockDialog()
	mockDialog.Reply = "hello from Nova"
	mockMemory := llm.NewMockMemory()

	sessionSvc := session.NewService(memstore.NewSessionStore(), 2*time.Hour)
	ledgerSvc := ledger.NewService(sessionSvc, memstore.NewMessageStore())
	memorySvc := memoryapp.NewService(
		ledgerSvc,
		mockMemory,
		memstore.NewSummaryStore(),
		memstore.NewThreadStore(),
		memstore.NewTopicStore(),
	)
	sessionSvc.SetAnalyzer(memorySvc)
	dialogSvc := dialog.NewService(ledgerSvc, memorySvc, mockDialog)

	return httpadapter.NewServer(sessionSvc, ledgerSvc, memorySvc, dialogSvc)
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())

	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)

	// A second resolve within the window returns the same session.
	w2 := doJSON(t, srv, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusOK, w2.Code)

	var resp2 struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	assert.Equal(t, resp.SessionID, resp2.SessionID)
}

func TestMessageTurnAndList(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/message", []byte(`{"text":"hi"}`))
	require.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())

	var resp struct {
		UserMessage struct {
			MessageID string `json:"message_id"`
			SessionID string `json:"session_id"`
			Mood      string `json:"mood"`
		} `json:"user_message"`
		AssistantMessage struct {
			Text          string  `json:"text"`
			Mood          string  `json:"mood"`
			QuotedReplyTo *string `json:"quoted_reply_to"`
		} `json:"assistant_message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "user", resp.UserMessage.Mood)
	assert.Equal(t, "assistant", resp.AssistantMessage.Mood)
	assert.Equal(t, "hello from Nova", resp.AssistantMessage.Text)
	require.NotNil(t, resp.AssistantMessage.QuotedReplyTo)
	assert.Equal(t, resp.UserMessage.MessageID, *resp.AssistantMessage.QuotedReplyTo)

	wList := doJSON(t, srv, http.MethodGet, "/messages?session_id="+resp.UserMessage.SessionID, nil)
	require.Equal(t, http.StatusOK, wList.Code)

	var msgs []json.RawMessage
	require.NoError(t, json.Unmarshal(wList.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 2)
}

func TestMessageRequiresText(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/message", []byte(`{"text":"  "}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateSummary(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/message", []byte(`{"text":"tell me about hiking"}`))
	require.Equal(t, http.StatusOK, w.Code)

	var turn struct {
		UserMessage struct {
			SessionID string `json:"session_id"`
		} `json:"user_message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))

	wSum := doJSON(t, srv, http.MethodPost, "/generate-summary?session_id="+turn.UserMessage.SessionID, nil)
	require.Equal(t, http.StatusOK, wSum.Code, "body=%s", wSum.Body.String())

	var sum struct {
		SessionID string   `json:"session_id"`
		Summary   []string `json:"summary"`
		Topics    []string `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(wSum.Body.Bytes(), &sum))
	assert.Equal(t, turn.UserMessage.SessionID, sum.SessionID)
	assert.NotEmpty(t, sum.Summary)

	// And it shows up in the stored list.
	wList := doJSON(t, srv, http.MethodGet, "/summary?session_id="+turn.UserMessage.SessionID, nil)
	require.Equal(t, http.StatusOK, wList.Code)

	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(wList.Body.Bytes(), &list))
	assert.NotEmpty(t, list)
}

func TestGenerateSummaryRequiresSessionID(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/generate-summary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMaterializeThreadsAndFetch(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/message", []byte(`{"text":"let's talk travel"}`))
	require.Equal(t, http.StatusOK, w.Code)

	var turn struct {
		UserMessage struct {
			SessionID string `json:"session_id"`
		} `json:"user_message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))

	wThreads := doJSON(t, srv, http.MethodPost, "/sessions/"+turn.UserMessage.SessionID+"/threads", nil)
	require.Equal(t, http.StatusOK, wThreads.Code, "body=%s", wThreads.Body.String())

	var threads []struct {
		ThreadID string `json:"thread_id"`
		Topic    string `json:"topic"`
	}
	require.NoError(t, json.Unmarshal(wThreads.Body.Bytes(), &threads))
	require.NotEmpty(t, threads)
	assert.True(t, strings.HasPrefix(threads[0].ThreadID, turn.UserMessage.SessionID))

	wAll := doJSON(t, srv, http.MethodGet, "/threads", nil)
	require.Equal(t, http.StatusOK, wAll.Code)
}

func TestTopicNotFound(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/topics/never-discussed", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContextRequiresParams(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/context", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatStreamEmitsSSE(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/chat/stream", []byte(`{"text":"stream me"}`))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "data: hello from Nova")
	assert.Contains(t, body, "data: [DONE]")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/message", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/messages", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
