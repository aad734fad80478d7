package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/chatline/internal/conversation"
	"github.com/edgard/chatline/internal/webhook"
)

// createMessageRequest is the body of POST /api/messages. The server assigns
// the external ID, timestamp, and initial status.
type createMessageRequest struct {
	Sender      string `json:"sender"`
	Body        string `json:"body"`
	ContactID   string `json:"contactId"`
	ContactName string `json:"contactName"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListConversations returns every conversation thread, keyed by contact
// ID, with messages ordered by origin timestamp.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.ListAllMessages(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list messages", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversations")
		return
	}

	writeJSON(w, http.StatusOK, conversation.Aggregate(messages))
}

// handleCreateMessage stores an outgoing message. The server assigns
// external ID, timestamp, and the initial sent status, then routes the
// message through the ingestion engine so the idempotency path is shared
// with webhook intake.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Body == "" || req.ContactID == "" {
		writeError(w, http.StatusBadRequest, "body and contactId are required")
		return
	}

	event := webhook.NewMessageEvent{
		ExternalID:  "wamid." + uuid.NewString(),
		Sender:      req.Sender,
		Timestamp:   time.Now().Unix(),
		Body:        req.Body,
		Kind:        "text",
		ContactID:   req.ContactID,
		ContactName: req.ContactName,
	}

	if _, err := s.engine.Ingest(r.Context(), event); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to store outgoing message",
			"contact_id", req.ContactID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	stored, err := s.store.GetMessageByExternalID(r.Context(), event.ExternalID)
	if err != nil || stored == nil {
		s.logger.ErrorContext(r.Context(), "Failed to load stored message",
			"external_id", event.ExternalID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load stored message")
		return
	}

	writeJSON(w, http.StatusCreated, stored)
}

// handleWebhook ingests a single raw webhook payload and reports the
// ingestion outcome. Duplicates and stale status updates are 200s with
// applied=false, not errors.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	result, err := s.engine.ProcessRaw(r.Context(), raw)
	if err != nil {
		if errors.Is(err, webhook.ErrMalformedPayload) || errors.Is(err, webhook.ErrMissingContact) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to ingest webhook payload", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to ingest payload")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
