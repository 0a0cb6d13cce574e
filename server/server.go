// Package server exposes the engine over HTTP: a streaming turn endpoint
// plus thin read and feedback endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ripplecurve/ripplecurve"
	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/graph"
	"github.com/ripplecurve/ripplecurve/logging"
	"github.com/ripplecurve/ripplecurve/stream"
	"github.com/ripplecurve/ripplecurve/transcript"
)

// Identity is the verified requester supplied by the token verifier before
// the core runs.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenVerifier resolves a bearer token to a verified identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// StaticTokenVerifier accepts a single configured token and maps it to a
// fixed identity. Suitable for development and tests.
type StaticTokenVerifier struct {
	Token    string
	Identity Identity
}

// Verify checks the token against the configured value.
func (v StaticTokenVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if v.Token == "" || token != v.Token {
		return Identity{}, errors.New("invalid token")
	}
	return v.Identity, nil
}

// Server wires the HTTP handlers to an engine.
type Server struct {
	engine   *ripplecurve.Engine
	verifier TokenVerifier
	logger   logging.Logger
}

// New creates a Server.
func New(engine *ripplecurve.Engine, verifier TokenVerifier, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Server{engine: engine, verifier: verifier, logger: logger}
}

// Handler returns the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/stream", s.auth(s.handleStream))
	mux.HandleFunc("GET /chat/history", s.auth(s.handleHistory))
	mux.HandleFunc("GET /chat/transcript", s.auth(s.handleTranscript))
	mux.HandleFunc("GET /chat/messages", s.auth(s.handleMessages))
	mux.HandleFunc("PUT /chat/feedback", s.auth(s.handleFeedback))
	mux.HandleFunc("DELETE /chat/thread", s.auth(s.handleDelete))
	return mux
}

type identityKey struct{}

// auth rejects requests without a valid bearer token and stashes the
// verified identity in the request context.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	}
}

func identityFrom(r *http.Request) Identity {
	id, _ := r.Context().Value(identityKey{}).(Identity)
	return id
}

type turnRequest struct {
	Message     string `json:"message"`
	ThreadID    string `json:"threadId"`
	FileID      string `json:"fileId,omitempty"`
	FileType    string `json:"fileType,omitempty"`
	HumanID     string `json:"humanId"`
	AssistantID string `json:"assistantId"`
}

// handleStream runs one turn and streams the result. The user transcript
// entry is written before the run; the assistant entry only after a
// successful run, so an errored turn leaves no assistant record.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.HumanID == "" || req.AssistantID == "" {
		writeError(w, http.StatusBadRequest, "humanId and assistantId are required")
		return
	}

	ctx := r.Context()
	threadID, title, err := s.engine.EnsureThread(ctx, id.ID, id.Email, id.Name, req.ThreadID, req.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "thread registration failed")
		return
	}

	if err := s.engine.AppendTurn(ctx, threadID, id.ID, transcript.ChatEntry{
		ID:   req.HumanID,
		Type: "user",
		Text: req.Message,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "transcript write failed")
		return
	}

	events, errs := s.engine.RunTurn(ctx, graph.TurnInput{
		ThreadID: threadID,
		Message:  req.Message,
		FileID:   req.FileID,
		FileType: req.FileType,
	})
	res := stream.Serve(w, events, errs, title)
	if res.Err != nil {
		s.logger.Error("turn failed", "thread_id", threadID, "error", res.Err)
		return
	}

	if err := s.engine.AppendTurn(ctx, threadID, id.ID, transcript.ChatEntry{
		ID:          req.AssistantID,
		Type:        "assistant",
		Text:        res.AssistantText,
		IsWebSearch: res.WebSearch,
		URLs:        res.URLs,
	}); err != nil {
		s.logger.Error("assistant transcript write failed", "thread_id", threadID, "error", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	threads, err := s.engine.ListThreads(r.Context(), id.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing threads failed")
		return
	}
	writeJSON(w, threads)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "threadId is required")
		return
	}
	entries, err := s.engine.GetTranscript(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading transcript failed")
		return
	}
	writeJSON(w, entries)
}

// handleMessages reconstructs the user/assistant view from the checkpoint
// window, skipping system and tool messages.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "threadId is required")
		return
	}
	msgs, err := s.engine.Messages(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading messages failed")
		return
	}
	out := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == core.RoleUser || m.Role == core.RoleAssistant {
			out = append(out, m)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	threadID, messageID, feedback := q.Get("threadId"), q.Get("messageId"), q.Get("feedback")
	if threadID == "" || messageID == "" {
		writeError(w, http.StatusBadRequest, "threadId and messageId are required")
		return
	}
	if err := s.engine.AttachFeedback(r.Context(), threadID, messageID, feedback); err != nil {
		writeError(w, http.StatusNotFound, "transcript entry not found")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "threadId is required")
		return
	}
	if err := s.engine.DeleteThread(r.Context(), threadID); err != nil {
		writeError(w, http.StatusInternalServerError, "deleting thread failed")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
