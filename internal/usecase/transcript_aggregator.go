package usecase

import (
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

// transcriptBuffer accumulates final text for the question being answered.
type transcriptBuffer struct {
	mu     sync.Mutex
	finals []string
}

func newTranscriptBuffer() *transcriptBuffer {
	return &transcriptBuffer{}
}

func (b *transcriptBuffer) Add(event domain.TranscriptEvent) bool {
	text := strings.TrimSpace(event.Text)
	if text == "" || event.Kind != domain.TranscriptKindFinal {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.finals = append(b.finals, text)
	return true
}

func (b *transcriptBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.finals, " ")
}

// Reset returns the buffered text and empties the buffer.
func (b *transcriptBuffer) Reset() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.Join(b.finals, " ")
	b.finals = nil
	return text
}

// consumeTranscriptionEvents drains a stream into the buffer and reports
// whether at least one event arrived.
func consumeTranscriptionEvents(
	session ports.StreamingSession,
	buffer *transcriptBuffer,
	events ports.EventSink,
	logger *log.Logger,
) bool {
	received := false
	for event := range session.Events() {
		received = true
		text := strings.TrimSpace(event.Text)
		if text == "" {
			continue
		}
		if event.Kind == domain.TranscriptKindPartial {
			events.PartialTranscript(text)
			continue
		}
		if buffer.Add(event) {
			logger.Debug("final transcript", "chars", len(text))
		}
	}
	return received
}
