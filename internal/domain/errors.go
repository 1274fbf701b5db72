package domain

import "errors"

var (
	ErrMediaAccess         = errors.New("camera or microphone unavailable")
	ErrQuestionFetch       = errors.New("interview questions unavailable")
	ErrAnswerSubmit        = errors.New("answer submission failed")
	ErrTranscriptionStream = errors.New("transcription stream failed")
	ErrCompletion          = errors.New("interview completion failed")
	ErrInvalidTransition   = errors.New("invalid session transition")
)

// SessionError carries an ErrorCode alongside the underlying cause.
type SessionError struct {
	Code ErrorCode
	Err  error
}

// NewError wraps err with a session error code.
func NewError(code ErrorCode, err error) *SessionError {
	return &SessionError{Code: code, Err: err}
}

func (e *SessionError) Error() string {
	kind := sentinelFor(e.Code)
	if e.Err == nil {
		if kind != nil {
			return kind.Error()
		}
		return string(e.Code)
	}
	if kind != nil {
		return kind.Error() + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the code so callers can use errors.Is.
func (e *SessionError) Is(target error) bool {
	kind := sentinelFor(e.Code)
	return kind != nil && target == kind
}

// Fatal reports whether the error blocks the interview.
func (e *SessionError) Fatal() bool {
	return e.Code.Fatal()
}

// CodeOf returns the session error code of err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr.Code, true
	}
	return "", false
}

func sentinelFor(code ErrorCode) error {
	switch code {
	case ErrorCodeMediaAccess:
		return ErrMediaAccess
	case ErrorCodeQuestionFetch:
		return ErrQuestionFetch
	case ErrorCodeAnswerSubmit:
		return ErrAnswerSubmit
	case ErrorCodeTranscriptionStream, ErrorCodeTranscriptionLost:
		return ErrTranscriptionStream
	case ErrorCodeCompletion:
		return ErrCompletion
	case ErrorCodeInvalidTransition:
		return ErrInvalidTransition
	default:
		return nil
	}
}
