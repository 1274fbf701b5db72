package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SessionState models the interview lifecycle.
type SessionState string

const (
	SessionStateInitializing SessionState = "initializing"
	SessionStateReady        SessionState = "ready"
	SessionStateRecording    SessionState = "recording"
	SessionStateReviewing    SessionState = "reviewing"
	SessionStateComplete     SessionState = "complete"
	SessionStateError        SessionState = "error"
)

// Terminal reports whether no further transitions are expected without a retry.
func (s SessionState) Terminal() bool {
	return s == SessionStateComplete || s == SessionStateError
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonCreated              SessionStateReason = "created"
	SessionReasonDevicesReady         SessionStateReason = "devices_ready"
	SessionReasonMediaDenied          SessionStateReason = "media_denied"
	SessionReasonQuestionsUnavailable SessionStateReason = "questions_unavailable"
	SessionReasonRecordingStarted     SessionStateReason = "recording_started"
	SessionReasonRecordingFailed      SessionStateReason = "recording_failed"
	SessionReasonSubmittingAnswer     SessionStateReason = "submitting_answer"
	SessionReasonQuestionAdvanced     SessionStateReason = "question_advanced"
	SessionReasonInterviewCompleted   SessionStateReason = "interview_completed"
	SessionReasonDurationElapsed      SessionStateReason = "duration_elapsed"
	SessionReasonCompletionFailed     SessionStateReason = "completion_failed"
	SessionReasonClosed               SessionStateReason = "closed"
)

// ErrorCode identifies non-fatal and fatal session errors.
type ErrorCode string

const (
	ErrorCodeStartup             ErrorCode = "startup"
	ErrorCodeMediaAccess         ErrorCode = "media_access"
	ErrorCodeQuestionFetch       ErrorCode = "question_fetch"
	ErrorCodeAnswerSubmit        ErrorCode = "answer_submit"
	ErrorCodeTranscriptionStream ErrorCode = "transcription_stream"
	ErrorCodeTranscriptionLost   ErrorCode = "transcription_lost"
	ErrorCodeCompletion          ErrorCode = "completion"
	ErrorCodeAudioStop           ErrorCode = "audio_stop"
	ErrorCodeAudioStream         ErrorCode = "audio_stream"
	ErrorCodeJournal             ErrorCode = "journal"
	ErrorCodeInvalidTransition   ErrorCode = "invalid_transition"
)

// Fatal reports whether the error replaces the interview view with a retry
// affordance instead of a dismissible banner.
func (c ErrorCode) Fatal() bool {
	switch c {
	case ErrorCodeStartup, ErrorCodeMediaAccess, ErrorCodeQuestionFetch, ErrorCodeCompletion:
		return true
	default:
		return false
	}
}

// QuestionID is a server-assigned question identifier. Backends send either
// JSON strings or numbers; numbers are stored in canonical decimal form.
type QuestionID string

func (id *QuestionID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = QuestionID(s)
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*id = QuestionID(strconv.FormatInt(n, 10))
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*id = QuestionID(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Question is immutable once fetched.
type Question struct {
	ID   QuestionID `json:"id"`
	Text string     `json:"text"`
	Hint string     `json:"hint,omitempty"`
}

// Answer is produced when recording stops for a question.
type Answer struct {
	QuestionID  QuestionID `json:"questionId"`
	Transcript  string     `json:"transcript"`
	SubmittedAt time.Time  `json:"submittedAt"`
}

// HistoryEntry is one presented question and its final answer.
type HistoryEntry struct {
	Sequence    int      `json:"sequence"`
	Question    Question `json:"question"`
	Answer      Answer   `json:"answer"`
	SubmitError string   `json:"submitError,omitempty"`
	// Partial marks a question cut short by a forced completion.
	Partial bool `json:"partial,omitempty"`
}

// Session describes one candidate pass through the interview.
type Session struct {
	ID            string        `json:"id"`
	InterviewID   string        `json:"interviewId"`
	Status        SessionState  `json:"status"`
	StartTime     time.Time     `json:"startTime,omitempty"`
	DurationLimit time.Duration `json:"durationLimit"`
}

// SessionRecord is the journal view of a session.
type SessionRecord struct {
	ID             string     `json:"id"`
	InterviewID    string     `json:"interviewId"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	TotalQuestions int        `json:"totalQuestions"`
	Entries        int        `json:"entries"`
}

// AccessInfo is returned by the backend when a candidate opens the room.
type AccessInfo struct {
	Type            string `json:"type"`
	Level           string `json:"level"`
	DurationMinutes int    `json:"duration"`
}

// CompletionReport is submitted once the interview ends.
type CompletionReport struct {
	SessionID       string         `json:"sessionId"`
	InterviewID     string         `json:"interviewId"`
	QuestionHistory []HistoryEntry `json:"questionHistory"`
	DurationSeconds int            `json:"duration"`
	CompletedAt     time.Time      `json:"completedAt"`
}

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// RoomMessageType names the room signalling messages.
type RoomMessageType string

const (
	RoomMessageJoin           RoomMessageType = "join"
	RoomMessageInterviewStart RoomMessageType = "interview_start"
	RoomMessageQuestionChange RoomMessageType = "question_change"
	RoomMessageInterviewEnd   RoomMessageType = "interview_end"
)

// RoomMessage is sent to the optional room signalling channel.
type RoomMessage struct {
	Type           RoomMessageType `json:"type"`
	InterviewID    string          `json:"interviewId,omitempty"`
	Role           string          `json:"role,omitempty"`
	QuestionNumber int             `json:"questionNumber,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Status summarizes the current runtime status.
type Status struct {
	SessionID       string             `json:"sessionId"`
	State           SessionState       `json:"state"`
	Reason          SessionStateReason `json:"reason"`
	Active          bool               `json:"active"`
	QuestionIndex   int                `json:"questionIndex"`
	TotalQuestions  int                `json:"totalQuestions"`
	CurrentQuestion *Question          `json:"currentQuestion,omitempty"`
	Transcript      string             `json:"transcript"`
	Elapsed         time.Duration      `json:"elapsed"`
	Answered        int                `json:"answered"`
	Message         string             `json:"message,omitempty"`
}
