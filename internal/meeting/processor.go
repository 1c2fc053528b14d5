// Package meeting turns uploaded meeting recordings into topic segments.
// A meeting starts in PROCESSING state; transcription with chapter detection
// produces MeetingIssue rows and transitions the meeting to COMPLETED.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codelore/codelore/internal/store"
)

// processTimeout caps one transcription run. Provider-side transcription of
// long recordings can take minutes; past this bound the run is abandoned and
// the meeting stays in PROCESSING.
const processTimeout = 300 * time.Second

// ErrNoTranscript indicates the provider returned no text for the recording.
var ErrNoTranscript = errors.New("transcription produced no text")

// Chapter is one topic segment of a transcribed recording. Start and End are
// offsets in milliseconds.
type Chapter struct {
	Headline string
	Gist     string
	Summary  string
	StartMS  int64
	EndMS    int64
}

// Transcript is the result of transcribing a recording.
type Transcript struct {
	Text     string
	Chapters []Chapter
}

// Transcriber produces a chaptered transcript from an audio URL.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (*Transcript, error)
}

// Store is the slice of persistence the processor needs.
type Store interface {
	GetMeeting(ctx context.Context, id uuid.UUID) (*store.Meeting, error)
	InsertMeetingIssues(ctx context.Context, meetingID uuid.UUID, issues []store.MeetingIssue) error
	CompleteMeeting(ctx context.Context, id uuid.UUID, name string) error
}

// Processor drives a meeting from PROCESSING to COMPLETED.
type Processor struct {
	transcriber Transcriber
	store       Store
	logger      *slog.Logger
}

// New creates a Processor.
func New(transcriber Transcriber, st Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{transcriber: transcriber, store: st, logger: logger}
}

// Process transcribes a meeting's recording, stores the extracted topic
// segments and completes the meeting, naming it after the first segment's
// headline. On any failure the meeting remains in PROCESSING.
func (p *Processor) Process(ctx context.Context, meetingID uuid.UUID) error {
	m, err := p.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("resolving meeting: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	transcript, err := p.transcriber.Transcribe(ctx, m.MeetingURL)
	if err != nil {
		return fmt.Errorf("transcribing meeting %s: %w", meetingID, err)
	}
	if transcript.Text == "" {
		return fmt.Errorf("meeting %s: %w", meetingID, ErrNoTranscript)
	}

	issues := make([]store.MeetingIssue, 0, len(transcript.Chapters))
	for _, ch := range transcript.Chapters {
		issues = append(issues, store.MeetingIssue{
			MeetingID: meetingID,
			Headline:  ch.Headline,
			Gist:      ch.Gist,
			Summary:   ch.Summary,
			Start:     msToTime(ch.StartMS),
			End:       msToTime(ch.EndMS),
		})
	}

	if err := p.store.InsertMeetingIssues(ctx, meetingID, issues); err != nil {
		return fmt.Errorf("storing meeting issues: %w", err)
	}

	name := "Untitled meeting"
	if len(issues) > 0 {
		name = issues[0].Headline
	}
	if err := p.store.CompleteMeeting(ctx, meetingID, name); err != nil {
		return fmt.Errorf("completing meeting: %w", err)
	}

	p.logger.Info("processed meeting",
		"meeting_id", meetingID, "issues", len(issues), "name", name)
	return nil
}

// msToTime renders a millisecond offset as MM:SS.
func msToTime(ms int64) string {
	seconds := ms / 1000
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
