package questions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"interviewroom/internal/domain"
)

func TestDefaultBankHasThreeQuestions(t *testing.T) {
	t.Parallel()

	bank := Default()
	if len(bank.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(bank.Questions))
	}
	for i, q := range bank.Questions {
		if q.ID == "" || q.Text == "" || q.Hint == "" {
			t.Fatalf("incomplete question %d: %+v", i, q)
		}
	}
}

func TestLoadFileNumbersMissingIDs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bank.yaml")
	contents := `
title: Backend
questions:
  - text: Design a rate limiter.
    hint: Think about bursts
  - id: sql
    text: Explain an index.
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	bank, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if bank.Title != "Backend" || len(bank.Questions) != 2 {
		t.Fatalf("unexpected bank: %+v", bank)
	}
	if bank.Questions[0].ID != "1" || bank.Questions[0].Hint != "Think about bursts" || bank.Questions[1].ID != "sql" {
		t.Fatalf("unexpected questions: %+v", bank.Questions)
	}
}

func TestParseRejectsInvalidBanks(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":     "questions: []",
		"no text":   "questions:\n  - id: a\n",
		"duplicate": "questions:\n  - id: a\n    text: x\n  - id: a\n    text: y\n",
		"malformed": "questions: [",
	}
	for name, contents := range cases {
		if _, err := Parse([]byte(contents)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestOverrideServesBankAndDelegates(t *testing.T) {
	t.Parallel()

	backend := &recordingBackend{}
	override := NewOverride(backend, Default())

	got, err := override.Questions(context.Background())
	if err != nil || len(got) != 3 {
		t.Fatalf("unexpected questions: %v %v", got, err)
	}
	if backend.questionCalls != 0 {
		t.Fatalf("wrapped backend should not be asked for questions")
	}
	if err := override.SubmitAnswer(context.Background(), domain.Answer{QuestionID: "1"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if backend.answers != 1 {
		t.Fatalf("expected answer delegated")
	}
	if info, err := override.VerifyAccess(context.Background()); err != nil || info.DurationMinutes != 0 {
		t.Fatalf("unexpected access info: %+v %v", info, err)
	}
}

type recordingBackend struct {
	questionCalls int
	answers       int
}

func (r *recordingBackend) Questions(context.Context) ([]domain.Question, error) {
	r.questionCalls++
	return nil, nil
}

func (r *recordingBackend) SubmitAnswer(context.Context, domain.Answer) error {
	r.answers++
	return nil
}

func (r *recordingBackend) Complete(context.Context, domain.CompletionReport) error { return nil }
