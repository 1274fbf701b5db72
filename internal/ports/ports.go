package ports

import (
	"context"
	"io"
	"time"

	"interviewroom/internal/domain"
)

// MediaConfig describes which camera and microphone to acquire.
type MediaConfig struct {
	SampleRate  int
	Channels    int
	AudioFormat string
	AudioDevice string
	VideoFormat string
	VideoDevice string
}

// MediaDevices acquires the candidate's camera and microphone.
type MediaDevices interface {
	Acquire(ctx context.Context, cfg MediaConfig) (MediaHandle, error)
}

// MediaHandle owns acquired devices and any recorder started from them.
type MediaHandle interface {
	StartRecorder(ctx context.Context) (AudioSession, error)
	CaptureFrame(ctx context.Context) ([]byte, error)
	Release() error
}

// AudioSession is a live PCM capture.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate int
	Channels   int
	Encoding   string
	Language   string
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// InterviewBackend is the REST collaborator that owns questions and results.
type InterviewBackend interface {
	Questions(ctx context.Context) ([]domain.Question, error)
	SubmitAnswer(ctx context.Context, answer domain.Answer) error
	Complete(ctx context.Context, report domain.CompletionReport) error
}

// AccessVerifier is implemented by backends that gate room access.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context) (domain.AccessInfo, error)
}

// FrameSink receives best-effort video frames for review.
type FrameSink interface {
	SubmitFrame(ctx context.Context, frame []byte, capturedAt time.Time) error
}

// RoomSignal notifies observers of interview progress.
type RoomSignal interface {
	Send(ctx context.Context, msg domain.RoomMessage) error
	Close() error
}

// TranscriptNormalizer cleans transcripts before submission.
type TranscriptNormalizer interface {
	Apply(text string) (string, error)
}

// HistoryJournal keeps question history client-side until completion is acknowledged.
type HistoryJournal interface {
	BeginSession(ctx context.Context, record domain.SessionRecord) error
	AppendEntry(ctx context.Context, sessionID string, entry domain.HistoryEntry) error
	MarkCompleted(ctx context.Context, sessionID string, at time.Time) error
}

// JournalReader lists journaled sessions that were never acknowledged.
type JournalReader interface {
	Pending(ctx context.Context) ([]domain.SessionRecord, error)
	Entries(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error)
	MarkCompleted(ctx context.Context, sessionID string, at time.Time) error
}

// EventSink emits session state and events to a surface.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	QuestionPresented(index int, total int, question domain.Question)
	PartialTranscript(text string)
	AnswerRecorded(entry domain.HistoryEntry)
	SessionError(code domain.ErrorCode, detail string)
}
