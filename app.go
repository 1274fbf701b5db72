package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"interviewroom/internal/bootstrap"
	"interviewroom/internal/config"
	"interviewroom/internal/domain"
	"interviewroom/internal/usecase"
)

const (
	eventSession  = "interview:session"
	eventQuestion = "interview:question"
	eventPartial  = "interview:partial"
	eventAnswer   = "interview:answer"
	eventError    = "interview:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := bootstrap.LoadConfig(os.Getenv("INTERVIEWROOM_CONFIG"))
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	logger := bootstrap.NewLogger(os.Stderr, cfg.Log.Level)

	services, err := bootstrap.Build(ctx, cfg, a, logger)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller
	a.SessionStateChanged(domain.SessionStateInitializing, domain.SessionReasonCreated)
}

func (a *App) shutdown(_ context.Context) {
	if err := a.services.Close(); err != nil && a.services.Logger != nil {
		a.services.Logger.Warn("shutdown failed", "error", err)
	}
}

// InitializeInterview acquires devices and loads the question set.
func (a *App) InitializeInterview() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Initialize(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StartInterview presents the first question and begins recording.
func (a *App) StartInterview() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// NextQuestion submits the current answer and moves on.
func (a *App) NextQuestion() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Advance(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// CompleteInterview ends the interview early and submits the report.
func (a *App) CompleteInterview() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Complete(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// PushTranscript feeds recognizer output produced by the frontend, e.g. the
// browser speech API when no streaming provider is configured.
func (a *App) PushTranscript(kind string, text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.AddTranscript(domain.TranscriptEvent{Kind: domain.TranscriptKind(kind), Text: text})
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateInitializing, Active: false}
	}
	return a.controller.Status()
}

// GetHistory returns answered questions in order.
func (a *App) GetHistory() []domain.HistoryEntry {
	if a.controller == nil {
		return nil
	}
	return a.controller.History()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         a.cfg.Transcription.Provider,
		"backend":          a.cfg.Backend.BaseURL,
		"interviewId":      a.cfg.Backend.InterviewID,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"videoInput":       a.cfg.Video.InputDevice,
		"durationLimit":    a.cfg.Session.DurationLimit.String(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// QuestionPresented emits the question now being asked.
func (a *App) QuestionPresented(index int, total int, question domain.Question) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventQuestion, map[string]any{
		"index":    index,
		"total":    total,
		"question": question,
	})
}

// PartialTranscript emits the live transcript for the current question.
func (a *App) PartialTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPartial, map[string]string{"text": text})
}

// AnswerRecorded emits a history entry once its answer is final.
func (a *App) AnswerRecorded(entry domain.HistoryEntry) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAnswer, entry)
}

// SessionError emits errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]any{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
		"fatal":   code.Fatal(),
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonCreated:
		return "Preparing interview room"
	case domain.SessionReasonDevicesReady:
		return "Camera and microphone ready"
	case domain.SessionReasonMediaDenied:
		return "Camera or microphone access denied"
	case domain.SessionReasonQuestionsUnavailable:
		return "Interview questions unavailable"
	case domain.SessionReasonRecordingStarted:
		return "Recording your answer"
	case domain.SessionReasonRecordingFailed:
		return "Recording could not start"
	case domain.SessionReasonSubmittingAnswer:
		return "Submitting answer..."
	case domain.SessionReasonQuestionAdvanced:
		return "Next question"
	case domain.SessionReasonInterviewCompleted:
		return "Interview complete"
	case domain.SessionReasonDurationElapsed:
		return "Time is up; interview submitted"
	case domain.SessionReasonCompletionFailed:
		return "Interview submission failed"
	case domain.SessionReasonClosed:
		return "Interview room closed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeMediaAccess:
		return "Camera or microphone unavailable"
	case domain.ErrorCodeQuestionFetch:
		return "Could not load questions"
	case domain.ErrorCodeAnswerSubmit:
		return "Answer upload failed"
	case domain.ErrorCodeTranscriptionStream:
		return "Transcription reconnecting"
	case domain.ErrorCodeTranscriptionLost:
		return "Transcription unavailable"
	case domain.ErrorCodeCompletion:
		return "Interview submission failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeJournal:
		return "Local journal write failed"
	case domain.ErrorCodeInvalidTransition:
		return "Action not available right now"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
