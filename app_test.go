package main

import (
	"context"
	"errors"
	"testing"

	"interviewroom/internal/domain"
)

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonCreated:              "Preparing interview room",
		domain.SessionReasonDevicesReady:         "Camera and microphone ready",
		domain.SessionReasonMediaDenied:          "Camera or microphone access denied",
		domain.SessionReasonQuestionsUnavailable: "Interview questions unavailable",
		domain.SessionReasonRecordingStarted:     "Recording your answer",
		domain.SessionReasonRecordingFailed:      "Recording could not start",
		domain.SessionReasonSubmittingAnswer:     "Submitting answer...",
		domain.SessionReasonQuestionAdvanced:     "Next question",
		domain.SessionReasonInterviewCompleted:   "Interview complete",
		domain.SessionReasonDurationElapsed:      "Time is up; interview submitted",
		domain.SessionReasonCompletionFailed:     "Interview submission failed",
		domain.SessionReasonClosed:               "Interview room closed",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:             "Startup failed",
		domain.ErrorCodeMediaAccess:         "Camera or microphone unavailable",
		domain.ErrorCodeQuestionFetch:       "Could not load questions",
		domain.ErrorCodeAnswerSubmit:        "Answer upload failed",
		domain.ErrorCodeTranscriptionStream: "Transcription reconnecting",
		domain.ErrorCodeTranscriptionLost:   "Transcription unavailable",
		domain.ErrorCodeCompletion:          "Interview submission failed",
		domain.ErrorCodeAudioStop:           "Audio stop issue",
		domain.ErrorCodeAudioStream:         "Audio streaming issue",
		domain.ErrorCodeJournal:             "Local journal write failed",
		domain.ErrorCodeInvalidTransition:   "Action not available right now",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
	if _, err := app.NextQuestion(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error from bound method, got %v", err)
	}
	if err := app.PushTranscript("final", "hello"); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error from push, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	status := app.GetStatus()
	if status.State != domain.SessionStateInitializing || status.Active {
		t.Fatalf("unexpected status: %+v", status)
	}
	if history := app.GetHistory(); history != nil {
		t.Fatalf("expected no history, got %+v", history)
	}

	app.bootErr = errors.New("boot")
	status = app.GetStatus()
	if status.State != domain.SessionStateError || status.Active != false || status.Message != "boot" {
		t.Fatalf("unexpected boot status: %+v", status)
	}
	if info := app.GetRuntimeInfo(); info["error"] != "boot" {
		t.Fatalf("unexpected runtime info: %+v", info)
	}
}

func TestEventsWithoutRuntimeAreDropped(t *testing.T) {
	t.Parallel()

	app := &App{}
	app.SessionStateChanged(domain.SessionStateReady, domain.SessionReasonDevicesReady)
	app.QuestionPresented(0, 1, domain.Question{ID: "1"})
	app.PartialTranscript("hi")
	app.AnswerRecorded(domain.HistoryEntry{})
	app.SessionError(domain.ErrorCodeStartup, "x")
	app.shutdown(context.Background())
}
