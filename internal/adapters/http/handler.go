package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/novalabs/nova-agent/internal/app/dialog"
	"github.com/novalabs/nova-agent/internal/app/ledger"
	"github.com/novalabs/nova-agent/internal/app/memory"
	"github.com/novalabs/nova-agent/internal/app/session"
	"github.com/novalabs/nova-agent/internal/domain"
	"github.com/novalabs/nova-agent/internal/observability"
)

type Server struct {
	sessions *session.Service
	ledger   *ledger.Service
	memory   *memory.Service
	dialog   *dialog.Service
}

func NewServer(
	sessions *session.Service,
	ledgerSvc *ledger.Service,
	memorySvc *memory.Service,
	dialogSvc *dialog.Service,
) http.Handler {
	s := &Server{
		sessions: sessions,
		ledger:   ledgerSvc,
		memory:   memorySvc,
		dialog:   dialogSvc,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/session", s.handleSession)
	mux.HandleFunc("/sessions/", s.handleSessionWithID)
	mux.HandleFunc("/message", s.handleMessage)
	mux.HandleFunc("/messages", s.handleMessages)
	mux.HandleFunc("/summary", s.handleSummaries)
	mux.HandleFunc("/generate-summary", s.handleGenerateSummary)
	mux.HandleFunc("/threads", s.handleThreads)
	mux.HandleFunc("/topics", s.handleTopics)
	mux.HandleFunc("/topics/", s.handleTopicWithLabel)
	mux.HandleFunc("/chat/stream", s.handleChatStream)
	mux.HandleFunc("/context", s.handleContext)

	return chainMiddlewares(mux, withCORS, withRequestID, withLogging)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type sessionResponse struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

type messageRequest struct {
	SessionID     string   `json:"session_id,omitempty"`
	Text          string   `json:"text"`
	QuotedReplyTo string   `json:"quoted_reply_to,omitempty"`
	QuotedText    string   `json:"quoted_text,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

type messageResponse struct {
	MessageID     string    `json:"message_id"`
	SessionID     string    `json:"session_id"`
	Text          string    `json:"text"`
	QuotedReplyTo *string   `json:"quoted_reply_to,omitempty"`
	QuotedText    string    `json:"quoted_text,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Tags          []string  `json:"tags"`
	Mood          string    `json:"mood"`
}

type exchangeResponse struct {
	UserMessage      messageResponse `json:"user_message"`
	AssistantMessage messageResponse `json:"assistant_message"`
}

type summaryResponse struct {
	SessionID string    `json:"session_id"`
	Summary   []string  `json:"summary"`
	Topics    []string  `json:"topics"`
	Timestamp time.Time `json:"timestamp"`
}

type threadResponse struct {
	ThreadID  string            `json:"thread_id"`
	Topic     string            `json:"topic"`
	SessionID string            `json:"session_id"`
	Messages  []messageResponse `json:"messages"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type topicEntryResponse struct {
	SessionID  string    `json:"session_id"`
	Summary    []string  `json:"summary"`
	Timestamp  time.Time `json:"timestamp"`
	MessageIDs []string  `json:"message_ids"`
}

type topicResponse struct {
	Topic    string               `json:"topic"`
	Sessions []topicEntryResponse `json:"sessions"`
}

type contextResponse struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
	Context   string `json:"context"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /session: resolve the active session or create a fresh one.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	sess, err := s.sessions.ResolveOrCreate(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// POST /sessions/{id}/threads: cluster a session into threads.
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "threads" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	threads, err := s.memory.MaterializeThreads(r.Context(), domain.SessionID(parts[0]))
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toThreadsResponse(threads))
}

// POST /message: a full chat turn, returns both sides of the exchange.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	req, ok := decodeMessageRequest(w, r)
	if !ok {
		return
	}

	userMsg, assistantMsg, err := s.dialog.HandleTurn(r.Context(), req.toDraft())
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, exchangeResponse{
		UserMessage:      toMessageResponse(userMsg),
		AssistantMessage: toMessageResponse(assistantMsg),
	})
}

// GET /messages?session_id=: list messages, all sessions when omitted.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sessionID := domain.SessionID(r.URL.Query().Get("session_id"))
	msgs, err := s.ledger.List(r.Context(), sessionID)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessagesResponse(msgs))
}

// GET /summary?session_id=: list stored summaries.
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sessionID := domain.SessionID(r.URL.Query().Get("session_id"))
	summaries, err := s.memory.Summaries(r.Context(), sessionID)
	if err != nil {
		internalError(w, err)
		return
	}

	out := make([]summaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, toSummaryResponse(sum))
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /generate-summary?session_id=: summarize a session now.
func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		badRequest(w, "session_id is required")
		return
	}

	summary, err := s.memory.Summarize(r.Context(), domain.SessionID(sessionID))
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// GET /threads?topic=: threads for one topic, or all.
func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	topic := domain.TopicLabel(r.URL.Query().Get("topic"))
	threads, err := s.memory.ThreadsByTopic(r.Context(), topic)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toThreadsResponse(threads))
}

// GET /topics: every merged topic document.
func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	topics, err := s.memory.Topics(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}

	out := make([]topicResponse, 0, len(topics))
	for _, t := range topics {
		out = append(out, toTopicResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /topics/{label}
func (s *Server) handleTopicWithLabel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	label := strings.TrimPrefix(r.URL.Path, "/topics/")
	if label == "" || strings.Contains(label, "/") {
		http.NotFound(w, r)
		return
	}

	topic, err := s.memory.TopicByLabel(r.Context(), domain.TopicLabel(label))
	if err != nil {
		internalError(w, err)
		return
	}
	if topic == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, toTopicResponse(topic))
}

// POST /chat/stream: a chat turn streamed as SSE. The reply is persisted by
// a background task from a fresh generation, so the stored text may differ
// from the streamed one.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	req, ok := decodeMessageRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, nil)
		return
	}

	_, stream, err := s.dialog.HandleTurnStream(r.Context(), req.toDraft())
	if err != nil {
		internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range stream {
		if _, err := w.Write([]byte("data: " + sseEscape(chunk) + "\n\n")); err != nil {
			// Client went away; the background persist keeps running.
			return
		}
		flusher.Flush()
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// GET /context?session_id=&topic=: topic-context lookup.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	topic := r.URL.Query().Get("topic")
	if sessionID == "" || topic == "" {
		badRequest(w, "session_id and topic are required")
		return
	}

	text, err := s.memory.TopicContext(r.Context(), domain.SessionID(sessionID), domain.TopicLabel(topic))
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contextResponse{
		SessionID: sessionID,
		Topic:     topic,
		Context:   text,
	})
}

// ─────────────────────────────────────────────
// Mapping helpers
// ─────────────────────────────────────────────

func decodeMessageRequest(w http.ResponseWriter, r *http.Request) (messageRequest, bool) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return req, false
	}
	return req, true
}

func (req messageRequest) toDraft() domain.MessageDraft {
	draft := domain.MessageDraft{
		SessionID:  domain.SessionID(req.SessionID),
		Text:       req.Text,
		QuotedText: req.QuotedText,
		Tags:       req.Tags,
	}
	if req.QuotedReplyTo != "" {
		id := domain.MessageID(req.QuotedReplyTo)
		draft.QuotedReplyTo = &id
	}
	return draft
}

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		SessionID:    string(s.ID),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	var replyTo *string
	if m.QuotedReplyTo != nil {
		v := string(*m.QuotedReplyTo)
		replyTo = &v
	}

	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}

	return messageResponse{
		MessageID:     string(m.ID),
		SessionID:     string(m.SessionID),
		Text:          m.Text,
		QuotedReplyTo: replyTo,
		QuotedText:    m.QuotedText,
		Timestamp:     m.Timestamp,
		Tags:          tags,
		Mood:          string(m.Mood),
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toSummaryResponse(sum *domain.SessionSummary) summaryResponse {
	topics := make([]string, 0, len(sum.Topics))
	for _, t := range sum.Topics {
		topics = append(topics, string(t))
	}
	return summaryResponse{
		SessionID: string(sum.SessionID),
		Summary:   sum.Summary,
		Topics:    topics,
		Timestamp: sum.Timestamp,
	}
}

func toThreadsResponse(threads []*domain.Thread) []threadResponse {
	out := make([]threadResponse, 0, len(threads))
	for _, t := range threads {
		out = append(out, threadResponse{
			ThreadID:  string(t.ID),
			Topic:     string(t.Topic),
			SessionID: string(t.SessionID),
			Messages:  toMessagesResponse(t.Messages),
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		})
	}
	return out
}

func toTopicResponse(t *domain.Topic) topicResponse {
	entries := make([]topicEntryResponse, 0, len(t.Sessions))
	for _, e := range t.Sessions {
		ids := make([]string, 0, len(e.MessageIDs))
		for _, id := range e.MessageIDs {
			ids = append(ids, string(id))
		}
		entries = append(entries, topicEntryResponse{
			SessionID:  string(e.SessionID),
			Summary:    e.Summary,
			Timestamp:  e.Timestamp,
			MessageIDs: ids,
		})
	}
	return topicResponse{
		Topic:    string(t.Label),
		Sessions: entries,
	}
}

// sseEscape keeps multi-line fragments inside a single SSE data field.
func sseEscape(s string) string {
	return strings.ReplaceAll(s, "\n", "\ndata: ")
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	if err != nil {
		observability.Logger().Error("request failed", "error", err)
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
