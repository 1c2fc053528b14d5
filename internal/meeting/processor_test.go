package meeting

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelore/codelore/internal/log"
	"github.com/codelore/codelore/internal/store"
)

type fakeTranscriber struct {
	transcript *Transcript
	err        error
	sawURL     string
	deadline   bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioURL string) (*Transcript, error) {
	f.sawURL = audioURL
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return f.transcript, nil
}

type fakeMeetingStore struct {
	meeting   *store.Meeting
	issues    []store.MeetingIssue
	completed bool
	name      string
}

func (f *fakeMeetingStore) GetMeeting(context.Context, uuid.UUID) (*store.Meeting, error) {
	return f.meeting, nil
}

func (f *fakeMeetingStore) InsertMeetingIssues(_ context.Context, _ uuid.UUID, issues []store.MeetingIssue) error {
	f.issues = issues
	return nil
}

func (f *fakeMeetingStore) CompleteMeeting(_ context.Context, _ uuid.UUID, name string) error {
	f.completed = true
	f.name = name
	return nil
}

func testMeeting() *store.Meeting {
	return &store.Meeting{
		ID:         uuid.New(),
		ProjectID:  uuid.New(),
		MeetingURL: "https://storage.example.com/standup.mp3",
		Status:     store.MeetingStatusProcessing,
	}
}

func TestProcessCompletesMeeting(t *testing.T) {
	tr := &fakeTranscriber{transcript: &Transcript{
		Text: "full transcript text",
		Chapters: []Chapter{
			{Headline: "Sprint planning", Gist: "planning", Summary: "planned the sprint", StartMS: 0, EndMS: 65_000},
			{Headline: "Blockers", Gist: "blockers", Summary: "discussed blockers", StartMS: 65_000, EndMS: 154_000},
		},
	}}
	st := &fakeMeetingStore{meeting: testMeeting()}
	p := New(tr, st, log.NewNop())

	err := p.Process(context.Background(), st.meeting.ID)
	require.NoError(t, err)

	assert.Equal(t, st.meeting.MeetingURL, tr.sawURL)
	assert.True(t, tr.deadline, "transcription must run under a deadline")

	require.Len(t, st.issues, 2)
	assert.Equal(t, "Sprint planning", st.issues[0].Headline)
	assert.Equal(t, "00:00", st.issues[0].Start)
	assert.Equal(t, "01:05", st.issues[0].End)
	assert.Equal(t, "01:05", st.issues[1].Start)
	assert.Equal(t, "02:34", st.issues[1].End)

	assert.True(t, st.completed)
	assert.Equal(t, "Sprint planning", st.name, "meeting is named after the first headline")
}

func TestProcessNoTextFails(t *testing.T) {
	tr := &fakeTranscriber{transcript: &Transcript{Text: ""}}
	st := &fakeMeetingStore{meeting: testMeeting()}
	p := New(tr, st, log.NewNop())

	err := p.Process(context.Background(), st.meeting.ID)
	require.ErrorIs(t, err, ErrNoTranscript)
	assert.False(t, st.completed, "a failed meeting must stay in PROCESSING")
}

func TestProcessTranscriberFailure(t *testing.T) {
	boom := errors.New("provider unavailable")
	st := &fakeMeetingStore{meeting: testMeeting()}
	p := New(&fakeTranscriber{err: boom}, st, log.NewNop())

	err := p.Process(context.Background(), st.meeting.ID)
	require.ErrorIs(t, err, boom)
	assert.False(t, st.completed)
}

func TestProcessNoChapters(t *testing.T) {
	tr := &fakeTranscriber{transcript: &Transcript{Text: "text without chapters"}}
	st := &fakeMeetingStore{meeting: testMeeting()}
	p := New(tr, st, log.NewNop())

	err := p.Process(context.Background(), st.meeting.ID)
	require.NoError(t, err)
	assert.Empty(t, st.issues)
	assert.True(t, st.completed)
	assert.Equal(t, "Untitled meeting", st.name)
}

func TestMsToTime(t *testing.T) {
	assert.Equal(t, "00:00", msToTime(0))
	assert.Equal(t, "00:59", msToTime(59_999))
	assert.Equal(t, "01:00", msToTime(60_000))
	assert.Equal(t, "12:05", msToTime(725_000))
}
