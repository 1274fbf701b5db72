package usecase

import (
	"context"
	"sync"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

// segment is one recording span for one question.
type segment struct {
	ctx    context.Context
	cancel context.CancelFunc

	question domain.Question
	audio    ports.AudioSession
	buffer   *transcriptBuffer

	streamMu sync.Mutex
	stream   ports.StreamingSession
	stopping bool

	audioDone  chan struct{}
	streamDone chan struct{}
}

func newSegment(parent context.Context, question domain.Question) *segment {
	ctx, cancel := context.WithCancel(parent)
	return &segment{
		ctx:        ctx,
		cancel:     cancel,
		question:   question,
		buffer:     newTranscriptBuffer(),
		audioDone:  make(chan struct{}),
		streamDone: make(chan struct{}),
	}
}

// attach makes stream current unless the segment is already stopping.
func (s *segment) attach(stream ports.StreamingSession) bool {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.stopping || s.ctx.Err() != nil {
		return false
	}
	s.stream = stream
	return true
}

func (s *segment) detach(stream ports.StreamingSession) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.stream == stream {
		s.stream = nil
	}
}

func (s *segment) currentStream() ports.StreamingSession {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	return s.stream
}

// markStopping blocks further reconnects and returns the live stream, if any.
func (s *segment) markStopping() ports.StreamingSession {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	s.stopping = true
	return s.stream
}

func (s *segment) isStopping() bool {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	return s.stopping || s.ctx.Err() != nil
}
