package store

import (
	"time"

	"github.com/google/uuid"
)

// Project links a Git repository to the knowledge base. Projects are never
// mutated after creation except for soft deletion.
type Project struct {
	ID          uuid.UUID
	Name        string
	RepoURL     string
	AccessToken string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// Embedding is one durable embedding record for a qualifying source file.
// Immutable once written; deleted wholesale on re-index.
type Embedding struct {
	ProjectID  uuid.UUID
	FileName   string
	SourceCode string
	Summary    string
	Vector     []float32
}

// EmbeddingMatch is a similarity-search result row.
type EmbeddingMatch struct {
	FileName   string
	SourceCode string
	Summary    string
	Similarity float64
}

// Commit is an AI-summarized repository commit. (projectID, hash) is unique.
type Commit struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	CommitHash   string
	Message      string
	AuthorName   string
	AuthorAvatar string
	CommitDate   time.Time
	Summary      string
}

// FileReference is a snapshot of a matched file captured at answer time.
type FileReference struct {
	FileName   string  `json:"fileName"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

// Question is a saved Q&A interaction.
type Question struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	UserID         string
	Question       string
	Answer         string
	FileReferences []FileReference
	CreatedAt      time.Time
}

// Meeting processing states.
const (
	MeetingStatusProcessing = "PROCESSING"
	MeetingStatusCompleted  = "COMPLETED"
)

// Meeting is an uploaded meeting recording awaiting or finished processing.
type Meeting struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	Name       string
	MeetingURL string
	Status     string
	CreatedAt  time.Time
}

// MeetingIssue is one topic segment extracted from a processed meeting.
type MeetingIssue struct {
	ID        uuid.UUID
	MeetingID uuid.UUID
	Headline  string
	Gist      string
	Summary   string
	Start     string
	End       string
}
