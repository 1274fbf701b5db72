package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"interviewroom/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	partialStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// terminalSink prints session events as they happen.
type terminalSink struct {
	mu          sync.Mutex
	out         io.Writer
	lastPartial string
}

func newTerminalSink(out io.Writer) *terminalSink {
	return &terminalSink{out: out}
}

func (s *terminalSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.printf("%s\n", stateStyle.Render(fmt.Sprintf("[%s] %s", state, reason)))
}

func (s *terminalSink) QuestionPresented(index int, total int, question domain.Question) {
	s.mu.Lock()
	s.lastPartial = ""
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("Question %d of %d", index+1, total)))
	b.WriteString("\n")
	b.WriteString(question.Text)
	b.WriteString("\n")
	if question.Hint != "" {
		b.WriteString(hintStyle.Render("Hint: " + question.Hint))
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("Press Enter for the next question, q then Enter to finish."))
	b.WriteString("\n")
	s.printf("%s", b.String())
}

func (s *terminalSink) PartialTranscript(text string) {
	s.mu.Lock()
	if text == s.lastPartial {
		s.mu.Unlock()
		return
	}
	s.lastPartial = text
	s.mu.Unlock()
	s.printf("%s\n", partialStyle.Render("… "+text))
}

func (s *terminalSink) AnswerRecorded(entry domain.HistoryEntry) {
	line := fmt.Sprintf("Answer %d: %s", entry.Sequence, entry.Answer.Transcript)
	if entry.Partial {
		line += " (cut short)"
	}
	if entry.SubmitError != "" {
		line += " (upload failed: " + entry.SubmitError + ")"
	}
	s.printf("%s\n", answerStyle.Render(line))
}

func (s *terminalSink) SessionError(code domain.ErrorCode, detail string) {
	s.printf("%s\n", errorStyle.Render(fmt.Sprintf("error %s: %s", code, detail)))
}

func (s *terminalSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
