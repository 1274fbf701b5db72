package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

// ResubmitResult summarizes one pass over the journal.
type ResubmitResult struct {
	Submitted []string
	Failed    map[string]error
}

// ResubmitPending replays every journaled session the backend never
// acknowledged. Sessions that fail stay pending for a later pass.
func ResubmitPending(
	ctx context.Context,
	journal ports.JournalReader,
	backend ports.InterviewBackend,
	logger *log.Logger,
	now func() time.Time,
) (ResubmitResult, error) {
	if now == nil {
		now = time.Now
	}
	result := ResubmitResult{Failed: map[string]error{}}

	pending, err := journal.Pending(ctx)
	if err != nil {
		return result, fmt.Errorf("list pending sessions: %w", err)
	}

	for _, record := range pending {
		entries, err := journal.Entries(ctx, record.ID)
		if err != nil {
			result.Failed[record.ID] = err
			continue
		}

		completedAt := now()
		duration := 0
		if last := lastSubmitted(entries); !last.IsZero() && last.After(record.StartedAt) {
			duration = int(last.Sub(record.StartedAt) / time.Second)
		}
		report := domain.CompletionReport{
			SessionID:       record.ID,
			InterviewID:     record.InterviewID,
			QuestionHistory: entries,
			DurationSeconds: duration,
			CompletedAt:     completedAt,
		}
		if err := backend.Complete(ctx, report); err != nil {
			logger.Warn("resubmission failed", "session_id", record.ID, "error", err)
			result.Failed[record.ID] = domain.NewError(domain.ErrorCodeCompletion, err)
			continue
		}
		if err := journal.MarkCompleted(ctx, record.ID, completedAt); err != nil {
			result.Failed[record.ID] = domain.NewError(domain.ErrorCodeJournal, err)
			continue
		}
		logger.Info("resubmitted interview", "session_id", record.ID, "entries", len(entries))
		result.Submitted = append(result.Submitted, record.ID)
	}
	return result, nil
}

func lastSubmitted(entries []domain.HistoryEntry) time.Time {
	var last time.Time
	for _, entry := range entries {
		if entry.Answer.SubmittedAt.After(last) {
			last = entry.Answer.SubmittedAt
		}
	}
	return last
}
