package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codelore/codelore/internal/store"
)

type projectHandler struct {
	store   Store
	indexer IndexRunner
	poller  CommitPoller
	jobs    JobQueue
	logger  *slog.Logger
}

type createProjectRequest struct {
	Name        string `json:"name"`
	RepoURL     string `json:"repoUrl"`
	GithubToken string `json:"githubToken,omitempty"`
}

type projectResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	RepoURL   string    `json:"repoUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

func toProjectResponse(p *store.Project) projectResponse {
	return projectResponse{ID: p.ID, Name: p.Name, RepoURL: p.RepoURL, CreatedAt: p.CreatedAt}
}

// create registers a project and kicks off indexing and commit polling in
// the background. The response does not wait for either.
func (h *projectHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body", h.logger)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.RepoURL) == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "name and repoUrl are required", h.logger)
		return
	}

	project, err := h.store.CreateProject(r.Context(), req.Name, req.RepoURL, req.GithubToken)
	if err != nil {
		h.logger.Error("creating project", "error", err)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create project", h.logger)
		return
	}

	h.submitIndex(project, false)
	h.submitPoll(project.ID)

	WriteJSON(w, http.StatusCreated, toProjectResponse(project), h.logger)
}

func (h *projectHandler) submitIndex(p *store.Project, reindex bool) {
	id, repoURL, token := p.ID, p.RepoURL, p.AccessToken
	err := h.jobs.Submit("index repository", func(ctx context.Context) {
		var runErr error
		if reindex {
			_, runErr = h.indexer.Reindex(ctx, id, repoURL, token)
		} else {
			_, runErr = h.indexer.Run(ctx, id, repoURL, token)
		}
		if runErr != nil {
			h.logger.Error("indexing run failed", "project_id", id, "error", runErr)
		}
	})
	if err != nil {
		h.logger.Warn("could not queue indexing", "project_id", p.ID, "error", err)
	}
}

func (h *projectHandler) submitPoll(projectID uuid.UUID) {
	err := h.jobs.Submit("poll commits", func(ctx context.Context) {
		if _, pollErr := h.poller.Poll(ctx, projectID); pollErr != nil {
			h.logger.Error("commit poll failed", "project_id", projectID, "error", pollErr)
		}
	})
	if err != nil {
		h.logger.Warn("could not queue commit poll", "project_id", projectID, "error", err)
	}
}

func (h *projectHandler) list(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		h.logger.Error("listing projects", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list projects", h.logger)
		return
	}

	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"projects": out}, h.logger)
}

// projectID parses the {id} path segment, writing a 400 on failure.
func (h *projectHandler) projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid project ID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func (h *projectHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
			return
		}
		h.logger.Error("getting project", "project_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get project", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, toProjectResponse(project), h.logger)
}

func (h *projectHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	if err := h.store.SoftDeleteProject(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
			return
		}
		h.logger.Error("deleting project", "project_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "delete_failed", "failed to delete project", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

// status reports indexing progress as the count of live embedding records.
// Fire-and-forget indexing has no run handle; row counts are the contract.
func (h *projectHandler) status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	if _, err := h.store.GetProject(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
			return
		}
		h.logger.Error("getting project", "project_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get project", h.logger)
		return
	}

	count, err := h.store.CountEmbeddings(r.Context(), id)
	if err != nil {
		h.logger.Error("counting embeddings", "project_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "status_failed", "failed to read status", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"indexedFiles": count}, h.logger)
}

// reindex queues a full re-index: delete all embeddings, then index afresh.
func (h *projectHandler) reindex(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
			return
		}
		h.logger.Error("getting project", "project_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get project", h.logger)
		return
	}

	h.submitIndex(project, true)
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "reindexing"}, h.logger)
}

type commitResponse struct {
	Hash         string    `json:"hash"`
	Message      string    `json:"message"`
	AuthorName   string    `json:"authorName"`
	AuthorAvatar string    `json:"authorAvatar"`
	Date         time.Time `json:"date"`
	Summary      string    `json:"summary"`
}

// commits returns the stored commit log and refreshes it in the background,
// so the next read sees any commits pushed since the last poll.
func (h *projectHandler) commits(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	h.submitPoll(id)

	stored, err := h.store.ListCommits(r.Context(), id)
	if err != nil {
		h.logger.Error("listing commits", "project_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list commits", h.logger)
		return
	}

	out := make([]commitResponse, 0, len(stored))
	for _, c := range stored {
		out = append(out, commitResponse{
			Hash:         c.CommitHash,
			Message:      c.Message,
			AuthorName:   c.AuthorName,
			AuthorAvatar: c.AuthorAvatar,
			Date:         c.CommitDate,
			Summary:      c.Summary,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"commits": out}, h.logger)
}

type questionResponse struct {
	ID             uuid.UUID             `json:"id"`
	Question       string                `json:"question"`
	Answer         string                `json:"answer"`
	FileReferences []store.FileReference `json:"fileReferences"`
	CreatedAt      time.Time             `json:"createdAt"`
}

func (h *projectHandler) questions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	saved, err := h.store.ListQuestions(r.Context(), id)
	if err != nil {
		h.logger.Error("listing questions", "project_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list questions", h.logger)
		return
	}

	out := make([]questionResponse, 0, len(saved))
	for _, q := range saved {
		out = append(out, questionResponse{
			ID:             q.ID,
			Question:       q.Question,
			Answer:         q.Answer,
			FileReferences: q.FileReferences,
			CreatedAt:      q.CreatedAt,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"questions": out}, h.logger)
}
