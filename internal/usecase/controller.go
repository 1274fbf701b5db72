package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

const (
	streamDrainTimeout     = 4 * time.Second
	signalTimeout          = 5 * time.Second
	defaultCompleteTimeout = 30 * time.Second
)

var errNoQuestions = errors.New("backend returned no questions")

// validateQuestions rejects sets that could not be answered one entry per
// question id.
func validateQuestions(questions []domain.Question) error {
	if len(questions) == 0 {
		return errNoQuestions
	}
	seen := make(map[domain.QuestionID]bool, len(questions))
	for i, question := range questions {
		if strings.TrimSpace(string(question.ID)) == "" {
			return fmt.Errorf("question %d has no id", i+1)
		}
		if seen[question.ID] {
			return fmt.Errorf("duplicate question id %q", question.ID)
		}
		seen[question.ID] = true
	}
	return nil
}

// Config controls interview session behavior.
type Config struct {
	SessionID       string
	InterviewID     string
	Media           ports.MediaConfig
	Streaming       ports.StreamingConfig
	ChunkSize       int
	StreamingGrace  time.Duration
	DurationLimit   time.Duration
	Reconnect       ReconnectPolicy
	FrameInterval   time.Duration
	CompleteTimeout time.Duration
}

// Dependencies are the collaborators a SessionController talks to. Media,
// Backend and Events are required; the rest may be nil.
type Dependencies struct {
	Media      ports.MediaDevices
	Backend    ports.InterviewBackend
	Provider   ports.TranscriptionProvider
	Normalizer ports.TranscriptNormalizer
	Journal    ports.HistoryJournal
	Frames     ports.FrameSink
	Room       ports.RoomSignal
	Events     ports.EventSink
	Logger     *log.Logger
	Now        func() time.Time
}

// SessionController runs one candidate's pass through the interview:
// device acquisition, per-question recording, answer submission and
// completion. Lifecycle operations are serialized; Status may be called at
// any time.
type SessionController struct {
	media      ports.MediaDevices
	backend    ports.InterviewBackend
	provider   ports.TranscriptionProvider
	normalizer ports.TranscriptNormalizer
	journal    ports.HistoryJournal
	frames     ports.FrameSink
	room       ports.RoomSignal
	events     ports.EventSink
	logger     *log.Logger
	now        func() time.Time
	cfg        Config

	rootCtx    context.Context
	rootCancel context.CancelFunc

	opMu sync.Mutex

	mu        sync.Mutex
	session   domain.Session
	reason    domain.SessionStateReason
	questions []domain.Question
	index     int
	history   []domain.HistoryEntry
	handle    ports.MediaHandle
	segment   *segment
	timer     *time.Timer
	sampler   *frameSampler
	started   bool
	closed    bool
	endedAt   time.Time

	// Reconnect budget shared by every segment of the session.
	streamFailures    int
	transcriptionLost bool
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.CompleteTimeout <= 0 {
		cfg.CompleteTimeout = defaultCompleteTimeout
	}
	cfg.Reconnect = cfg.Reconnect.normalized()

	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	events := deps.Events
	if events == nil {
		events = noopEventSink{}
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &SessionController{
		media:      deps.Media,
		backend:    deps.Backend,
		provider:   deps.Provider,
		normalizer: deps.Normalizer,
		journal:    deps.Journal,
		frames:     deps.Frames,
		room:       deps.Room,
		events:     events,
		logger:     logger.With("component", "session", "session_id", cfg.SessionID),
		now:        now,
		cfg:        cfg,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		session: domain.Session{
			ID:            cfg.SessionID,
			InterviewID:   cfg.InterviewID,
			Status:        domain.SessionStateInitializing,
			DurationLimit: cfg.DurationLimit,
		},
		reason: domain.SessionReasonCreated,
		index:  -1,
	}
}

// Initialize acquires camera and microphone and fetches the question set.
// It may be retried after a failure.
func (c *SessionController) Initialize(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	state, started, closed := c.session.Status, c.started, c.closed
	c.mu.Unlock()
	if closed || started || (state != domain.SessionStateInitializing && state != domain.SessionStateError) {
		return c.invalid("initialize", state)
	}

	if verifier, ok := c.backend.(ports.AccessVerifier); ok {
		info, err := verifier.VerifyAccess(ctx)
		if err != nil {
			return c.fail(domain.SessionReasonQuestionsUnavailable, domain.NewError(domain.ErrorCodeStartup, fmt.Errorf("verify access: %w", err)))
		}
		if info.DurationMinutes > 0 {
			c.mu.Lock()
			c.session.DurationLimit = time.Duration(info.DurationMinutes) * time.Minute
			c.mu.Unlock()
		}
	}

	handle, err := c.media.Acquire(ctx, c.cfg.Media)
	if err != nil {
		return c.fail(domain.SessionReasonMediaDenied, domain.NewError(domain.ErrorCodeMediaAccess, err))
	}

	questions, err := c.backend.Questions(ctx)
	if err == nil {
		err = validateQuestions(questions)
	}
	if err != nil {
		if releaseErr := handle.Release(); releaseErr != nil {
			c.logger.Warn("failed to release media after question fetch failure", "error", releaseErr)
		}
		return c.fail(domain.SessionReasonQuestionsUnavailable, domain.NewError(domain.ErrorCodeQuestionFetch, err))
	}

	c.mu.Lock()
	c.handle = handle
	c.questions = append([]domain.Question(nil), questions...)
	c.mu.Unlock()

	c.logger.Info("interview ready", "questions", len(questions))
	c.transition(domain.SessionStateReady, domain.SessionReasonDevicesReady)
	return nil
}

// Start begins recording the first question.
func (c *SessionController) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	state, closed := c.session.Status, c.closed
	c.mu.Unlock()
	if closed || state != domain.SessionStateReady {
		return c.invalid("start", state)
	}

	first := c.questions[0]
	seg, err := c.openSegment(first)
	if err != nil {
		c.releaseMedia()
		return c.fail(domain.SessionReasonRecordingFailed, domain.NewError(domain.ErrorCodeMediaAccess, err))
	}

	startedAt := c.now()
	c.mu.Lock()
	c.started = true
	c.session.StartTime = startedAt
	c.index = 0
	c.segment = seg
	if limit := c.session.DurationLimit; limit > 0 {
		c.timer = time.AfterFunc(limit, c.onDurationElapsed)
	}
	c.mu.Unlock()

	c.sampler = c.startSampler()
	if c.journal != nil {
		record := domain.SessionRecord{
			ID:             c.cfg.SessionID,
			InterviewID:    c.cfg.InterviewID,
			StartedAt:      startedAt,
			TotalQuestions: len(c.questions),
		}
		if err := c.journal.BeginSession(ctx, record); err != nil {
			c.journalFailed("begin session", err)
		}
	}

	c.transition(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	c.events.QuestionPresented(0, len(c.questions), first)
	c.signal(domain.RoomMessageInterviewStart, 0)
	c.signal(domain.RoomMessageQuestionChange, 1)
	return nil
}

// Advance stops recording the current question, records its answer and
// moves to the next question, completing the interview after the last one.
// Answer submission failures are reported through the event sink and never
// block progression.
func (c *SessionController) Advance(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	state, seg, index, closed := c.session.Status, c.segment, c.index, c.closed
	c.mu.Unlock()
	if closed || state != domain.SessionStateRecording || seg == nil {
		return c.invalid("advance", state)
	}

	c.transition(domain.SessionStateReviewing, domain.SessionReasonSubmittingAnswer)
	c.stopSegment(ctx, seg, true)

	c.mu.Lock()
	c.segment = nil
	c.mu.Unlock()
	c.recordAnswer(ctx, seg.question, seg.buffer.Reset(), false)

	next := index + 1
	if next >= len(c.questions) {
		return c.completeLocked(ctx, domain.SessionReasonInterviewCompleted)
	}

	question := c.questions[next]
	nextSeg, err := c.openSegment(question)
	if err != nil {
		c.haltCapture()
		c.releaseMedia()
		return c.fail(domain.SessionReasonRecordingFailed, domain.NewError(domain.ErrorCodeMediaAccess, err))
	}

	c.mu.Lock()
	c.index = next
	c.segment = nextSeg
	c.mu.Unlock()

	c.transition(domain.SessionStateRecording, domain.SessionReasonQuestionAdvanced)
	c.events.QuestionPresented(next, len(c.questions), question)
	c.signal(domain.RoomMessageQuestionChange, next+1)
	return nil
}

// Complete ends the interview and submits the question history. It is
// idempotent: once acknowledged, later calls do nothing. After a failed
// submission the history is kept and Complete may be called again.
func (c *SessionController) Complete(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.completeLocked(ctx, domain.SessionReasonInterviewCompleted)
}

func (c *SessionController) completeLocked(ctx context.Context, reason domain.SessionStateReason) error {
	c.mu.Lock()
	state, started, closed := c.session.Status, c.started, c.closed
	c.mu.Unlock()

	switch {
	case state == domain.SessionStateComplete:
		return nil
	case closed, state == domain.SessionStateInitializing:
		return c.invalid("complete", state)
	case state == domain.SessionStateError && !started:
		return c.invalid("complete", state)
	}

	c.haltCapture()

	c.mu.Lock()
	seg := c.segment
	c.segment = nil
	c.mu.Unlock()
	if seg != nil {
		c.stopSegment(ctx, seg, true)
		c.recordAnswer(ctx, seg.question, seg.buffer.Reset(), true)
	}

	c.releaseMedia()

	report := c.buildReport()
	if err := c.backend.Complete(ctx, report); err != nil {
		return c.fail(domain.SessionReasonCompletionFailed, domain.NewError(domain.ErrorCodeCompletion, err))
	}

	if c.journal != nil {
		if err := c.journal.MarkCompleted(ctx, c.cfg.SessionID, report.CompletedAt); err != nil {
			c.journalFailed("mark completed", err)
		}
	}

	c.mu.Lock()
	c.endedAt = report.CompletedAt
	c.mu.Unlock()

	c.logger.Info("interview completed", "entries", len(report.QuestionHistory), "duration_seconds", report.DurationSeconds)
	c.transition(domain.SessionStateComplete, reason)
	c.signal(domain.RoomMessageInterviewEnd, 0)
	return nil
}

// Close tears the session down: timers, reconnect loops and capture are
// cancelled and media is released. It is safe to call in any state.
func (c *SessionController) Close() error {
	c.rootCancel()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	seg := c.segment
	c.segment = nil
	state := c.session.Status
	c.mu.Unlock()

	c.haltCapture()
	if seg != nil {
		c.stopSegment(context.Background(), seg, false)
	}
	err := c.releaseMedia()

	if c.room != nil {
		if closeErr := c.room.Close(); closeErr != nil {
			c.logger.Debug("room signal close failed", "error", closeErr)
		}
	}

	if state != domain.SessionStateComplete {
		c.logger.Info("session closed before completion", "state", state)
	}
	c.mu.Lock()
	c.reason = domain.SessionReasonClosed
	c.mu.Unlock()
	c.events.SessionStateChanged(state, domain.SessionReasonClosed)
	return err
}

// AddTranscript feeds externally recognized speech into the current
// question's transcript buffer.
func (c *SessionController) AddTranscript(event domain.TranscriptEvent) error {
	c.mu.Lock()
	seg, state := c.segment, c.session.Status
	c.mu.Unlock()
	if seg == nil || state != domain.SessionStateRecording {
		return c.invalid("transcript", state)
	}

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return nil
	}
	if event.Kind == domain.TranscriptKindPartial {
		c.events.PartialTranscript(text)
		return nil
	}
	seg.buffer.Add(event)
	return nil
}

// Status returns a snapshot of the session.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.session.Status
	status := domain.Status{
		SessionID:      c.session.ID,
		State:          state,
		Reason:         c.reason,
		Active:         !c.closed && (state == domain.SessionStateRecording || state == domain.SessionStateReviewing),
		QuestionIndex:  c.index,
		TotalQuestions: len(c.questions),
		Answered:       len(c.history),
	}
	if status.Active && c.index >= 0 && c.index < len(c.questions) {
		question := c.questions[c.index]
		status.CurrentQuestion = &question
	}
	if c.segment != nil {
		status.Transcript = c.segment.buffer.Text()
	}
	if !c.session.StartTime.IsZero() {
		end := c.endedAt
		if end.IsZero() {
			end = c.now()
		}
		status.Elapsed = end.Sub(c.session.StartTime)
	}
	return status
}

// History returns a copy of the question history.
func (c *SessionController) History() []domain.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// Session returns the session record.
func (c *SessionController) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *SessionController) openSegment(question domain.Question) (*segment, error) {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()
	if handle == nil {
		return nil, errors.New("media devices are not acquired")
	}

	seg := newSegment(c.rootCtx, question)
	audio, err := handle.StartRecorder(seg.ctx)
	if err != nil {
		seg.cancel()
		return nil, fmt.Errorf("start recorder: %w", err)
	}
	seg.audio = audio

	go pumpAudioChunks(seg, c.cfg.ChunkSize, c.events, c.logger)
	if c.provider != nil && !c.transcriptionUnavailable() {
		go c.superviseTranscription(seg)
	} else {
		close(seg.streamDone)
	}
	return seg, nil
}

// stopSegment ends capture for seg. A graceful stop lets the provider flush
// trailing transcripts before the stream is closed.
func (c *SessionController) stopSegment(ctx context.Context, seg *segment, graceful bool) {
	stream := seg.markStopping()
	if !graceful {
		seg.cancel()
	}

	if err := seg.audio.Stop(); err != nil && graceful {
		c.logger.Warn("failed to stop audio capture", "error", err)
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	<-seg.audioDone

	if stream != nil && graceful && c.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(c.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		case <-seg.ctx.Done():
			timer.Stop()
		}
	}

	if stream != nil {
		_ = stream.CloseSend()
		if graceful {
			if err := waitForStream(stream, streamDrainTimeout); err != nil {
				c.logger.Debug("transcription stream ended with error", "error", err)
			}
		} else {
			_ = stream.Close()
		}
	}

	seg.cancel()
	<-seg.streamDone
}

func (c *SessionController) recordAnswer(ctx context.Context, question domain.Question, raw string, partial bool) domain.HistoryEntry {
	text := strings.TrimSpace(raw)
	if c.normalizer != nil && text != "" {
		cleaned, err := c.normalizer.Apply(text)
		if err != nil {
			c.logger.Warn("transcript cleanup failed; submitting raw text", "error", err)
		} else {
			text = strings.TrimSpace(cleaned)
		}
	}

	answer := domain.Answer{QuestionID: question.ID, Transcript: text, SubmittedAt: c.now()}
	entry := domain.HistoryEntry{Question: question, Answer: answer, Partial: partial}

	if !partial {
		if err := c.backend.SubmitAnswer(ctx, answer); err != nil {
			sessionErr := domain.NewError(domain.ErrorCodeAnswerSubmit, err)
			c.logger.Warn("answer submission failed; continuing", "question", question.ID, "error", err)
			entry.SubmitError = err.Error()
			c.events.SessionError(domain.ErrorCodeAnswerSubmit, sessionErr.Error())
		}
	}

	c.mu.Lock()
	entry.Sequence = len(c.history) + 1
	c.history = append(c.history, entry)
	c.mu.Unlock()

	if c.journal != nil {
		if err := c.journal.AppendEntry(ctx, c.cfg.SessionID, entry); err != nil {
			c.journalFailed("append entry", err)
		}
	}
	c.events.AnswerRecorded(entry)
	return entry
}

func (c *SessionController) buildReport() domain.CompletionReport {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]domain.HistoryEntry, len(c.history))
	copy(history, c.history)
	duration := 0
	if !c.session.StartTime.IsZero() {
		duration = int(now.Sub(c.session.StartTime) / time.Second)
	}
	return domain.CompletionReport{
		SessionID:       c.cfg.SessionID,
		InterviewID:     c.cfg.InterviewID,
		QuestionHistory: history,
		DurationSeconds: duration,
		CompletedAt:     now,
	}
}

func (c *SessionController) onDurationElapsed() {
	ctx, cancel := context.WithTimeout(c.rootCtx, c.cfg.CompleteTimeout)
	defer cancel()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	state, closed := c.session.Status, c.closed
	c.mu.Unlock()
	if closed || state != domain.SessionStateRecording {
		return
	}

	c.logger.Info("interview duration limit reached")
	if err := c.completeLocked(ctx, domain.SessionReasonDurationElapsed); err != nil {
		c.logger.Error("forced completion failed", "error", err)
	}
}

// haltCapture stops the duration timer and frame sampler.
func (c *SessionController) haltCapture() {
	c.mu.Lock()
	timer := c.timer
	c.timer = nil
	c.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}

	if c.sampler != nil {
		c.sampler.stop()
		c.sampler = nil
	}
}

// releaseMedia releases the media handle at most once.
func (c *SessionController) releaseMedia() error {
	c.mu.Lock()
	handle := c.handle
	c.handle = nil
	c.mu.Unlock()
	if handle == nil {
		return nil
	}
	if err := handle.Release(); err != nil {
		c.logger.Warn("failed to release media devices", "error", err)
		return err
	}
	c.logger.Debug("media devices released")
	return nil
}

func (c *SessionController) transition(state domain.SessionState, reason domain.SessionStateReason) {
	c.mu.Lock()
	c.session.Status = state
	c.reason = reason
	c.mu.Unlock()

	c.logger.Info("session state changed", "state", state, "reason", reason)
	c.events.SessionStateChanged(state, reason)
}

func (c *SessionController) fail(reason domain.SessionStateReason, err *domain.SessionError) error {
	c.logger.Error("session error", "reason", reason, "code", err.Code, "error", err.Err)
	c.events.SessionError(err.Code, err.Error())
	c.transition(domain.SessionStateError, reason)
	return err
}

func (c *SessionController) invalid(op string, state domain.SessionState) error {
	c.logger.Debug("rejected transition", "op", op, "state", state)
	return domain.NewError(domain.ErrorCodeInvalidTransition, fmt.Errorf("%s not allowed in state %s", op, state))
}

func (c *SessionController) journalFailed(op string, err error) {
	c.logger.Warn("journal write failed", "op", op, "error", err)
	c.events.SessionError(domain.ErrorCodeJournal, fmt.Sprintf("%s: %v", op, err))
}

func (c *SessionController) signal(kind domain.RoomMessageType, questionNumber int) {
	if c.room == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.rootCtx, signalTimeout)
	defer cancel()

	msg := domain.RoomMessage{
		Type:           kind,
		InterviewID:    c.cfg.InterviewID,
		QuestionNumber: questionNumber,
		Timestamp:      c.now(),
	}
	if err := c.room.Send(ctx, msg); err != nil {
		c.logger.Debug("room signal failed", "type", kind, "error", err)
	}
}

type noopEventSink struct{}

func (noopEventSink) SessionStateChanged(domain.SessionState, domain.SessionStateReason) {}
func (noopEventSink) QuestionPresented(int, int, domain.Question)                      {}
func (noopEventSink) PartialTranscript(string)                                         {}
func (noopEventSink) AnswerRecorded(domain.HistoryEntry)                               {}
func (noopEventSink) SessionError(domain.ErrorCode, string)                            {}
