package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/codelore/codelore/internal/qa"
)

type qaHandler struct {
	svc    QAService
	logger *slog.Logger
}

type qaRequest struct {
	ProjectID string `json:"projectId"`
	Question  string `json:"question"`
	UserID    string `json:"userId,omitempty"`
}

// answer streams a generated answer as plain text. The matched-file list
// rides in the X-File-References header, URL-encoded JSON, sent before the
// first body byte so clients can render citations while the answer streams.
//
// Failures before streaming starts are plain JSON errors. Once the body is
// open, a failure can only terminate the stream; text already sent stands.
func (h *qaHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req qaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body", h.logger)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		WriteError(w, http.StatusBadRequest, "missing_question", "question is required", h.logger)
		return
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_project_id", "invalid project ID", h.logger)
		return
	}

	ex, err := h.svc.Answer(r.Context(), projectID, req.Question)
	if err != nil {
		if errors.Is(err, qa.ErrInvalidRequest) {
			WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
			return
		}
		h.logger.Error("preparing answer", "project_id", projectID, "error", err)
		WriteError(w, http.StatusInternalServerError, "answer_failed", "failed to prepare answer", h.logger)
		return
	}

	refs, err := json.Marshal(ex.References)
	if err != nil {
		h.logger.Error("encoding references", "error", err)
		WriteError(w, http.StatusInternalServerError, "answer_failed", "failed to encode references", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-File-References", url.QueryEscape(string(refs)))
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	var answer strings.Builder
	streamErr := h.svc.Stream(r.Context(), ex, func(chunk string) error {
		if _, werr := w.Write([]byte(chunk)); werr != nil {
			return werr
		}
		answer.WriteString(chunk)
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if streamErr != nil {
		// Headers are sent; all we can do is cut the stream short.
		h.logger.Error("answer stream failed",
			"project_id", projectID, "error", streamErr)
		return
	}

	if req.UserID != "" {
		if _, err := h.svc.Save(r.Context(), ex, req.UserID, answer.String()); err != nil {
			h.logger.Warn("saving answer failed", "project_id", projectID, "error", err)
		}
	}
}
