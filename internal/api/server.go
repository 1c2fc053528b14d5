// Package api is the JSON HTTP surface of the service: project CRUD,
// question answering with a streamed answer body, commit logs and meeting
// processing. Long-running work (indexing, polling, transcription) is
// submitted to the background job queue, never run on a request goroutine.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codelore/codelore/internal/indexer"
	"github.com/codelore/codelore/internal/qa"
	"github.com/codelore/codelore/internal/store"
)

// Store is the slice of persistence the handlers need. *store.Store
// satisfies it.
type Store interface {
	CreateProject(ctx context.Context, name, repoURL, accessToken string) (*store.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*store.Project, error)
	ListProjects(ctx context.Context) ([]*store.Project, error)
	SoftDeleteProject(ctx context.Context, id uuid.UUID) error
	CountEmbeddings(ctx context.Context, projectID uuid.UUID) (int64, error)
	ListCommits(ctx context.Context, projectID uuid.UUID) ([]*store.Commit, error)
	ListQuestions(ctx context.Context, projectID uuid.UUID) ([]*store.Question, error)
	CreateMeeting(ctx context.Context, projectID uuid.UUID, meetingURL string) (*store.Meeting, error)
	GetMeeting(ctx context.Context, id uuid.UUID) (*store.Meeting, error)
	ListMeetingIssues(ctx context.Context, meetingID uuid.UUID) ([]*store.MeetingIssue, error)
}

// QAService answers questions. *qa.Service satisfies it.
type QAService interface {
	Answer(ctx context.Context, projectID uuid.UUID, question string) (*qa.Exchange, error)
	Stream(ctx context.Context, ex *qa.Exchange, emit func(chunk string) error) error
	Save(ctx context.Context, ex *qa.Exchange, userID, answer string) (uuid.UUID, error)
}

// IndexRunner runs indexing passes. *indexer.Indexer satisfies it.
type IndexRunner interface {
	Run(ctx context.Context, projectID uuid.UUID, repoURL, token string) (*indexer.Result, error)
	Reindex(ctx context.Context, projectID uuid.UUID, repoURL, token string) (*indexer.Result, error)
}

// CommitPoller polls commits. *commits.Poller satisfies it.
type CommitPoller interface {
	Poll(ctx context.Context, projectID uuid.UUID) (int, error)
}

// MeetingProcessor processes meetings. *meeting.Processor satisfies it.
type MeetingProcessor interface {
	Process(ctx context.Context, meetingID uuid.UUID) error
}

// JobQueue accepts background work. *jobs.Queue satisfies it.
type JobQueue interface {
	Submit(name string, fn func(context.Context)) error
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Store      Store            // Required
	QA         QAService        // Required
	Indexer    IndexRunner      // Required
	Poller     CommitPoller     // Required
	Meetings   MeetingProcessor // Optional: nil disables meeting processing
	Jobs       JobQueue         // Required
	Pool       *pgxpool.Pool    // Optional: nil disables pool stats in /ready
	APIToken   string           // Optional bearer token for mutating endpoints
	TrustProxy bool             // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst  int              // Rate limiter burst per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.QA == nil {
		return nil, errors.New("qa service is required")
	}
	if cfg.Indexer == nil || cfg.Poller == nil || cfg.Jobs == nil {
		return nil, errors.New("indexer, poller and job queue are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ph := &projectHandler{
		store:   cfg.Store,
		indexer: cfg.Indexer,
		poller:  cfg.Poller,
		jobs:    cfg.Jobs,
		logger:  logger,
	}
	qh := &qaHandler{svc: cfg.QA, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/projects", ph.create)
	mux.HandleFunc("GET /api/v1/projects", ph.list)
	mux.HandleFunc("GET /api/v1/projects/{id}", ph.get)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", ph.remove)
	mux.HandleFunc("GET /api/v1/projects/{id}/status", ph.status)
	mux.HandleFunc("POST /api/v1/projects/{id}/reindex", ph.reindex)
	mux.HandleFunc("GET /api/v1/projects/{id}/commits", ph.commits)
	mux.HandleFunc("GET /api/v1/projects/{id}/questions", ph.questions)

	mux.HandleFunc("POST /api/v1/qa", qh.answer)

	if cfg.Meetings != nil {
		mh := &meetingHandler{
			store:     cfg.Store,
			processor: cfg.Meetings,
			jobs:      cfg.Jobs,
			logger:    logger,
		}
		mux.HandleFunc("POST /api/v1/meetings", mh.create)
		mux.HandleFunc("POST /api/v1/meetings/process", mh.process)
		mux.HandleFunc("GET /api/v1/meetings/{id}", mh.get)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → RateLimit → Auth → Routes
	var handler http.Handler = mux
	handler = authMiddleware(cfg.APIToken, logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the database is reachable.
func readiness(pool *pgxpool.Pool, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
			return
		}
		if err := pool.Ping(r.Context()); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", logger)
			return
		}
		stats := pool.Stat()
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":      "ready",
			"total_conns": stats.TotalConns(),
			"idle_conns":  stats.IdleConns(),
		}, logger)
	}
}
