package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestQuestionIDAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()

	var questions []Question
	payload := `[{"id":1,"text":"a"},{"id":"q-2","text":"b","hint":"h"},{"id":null,"text":"c"}]`
	if err := json.Unmarshal([]byte(payload), &questions); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if questions[0].ID != "1" {
		t.Fatalf("unexpected numeric id: %q", questions[0].ID)
	}
	if questions[1].ID != "q-2" || questions[1].Hint != "h" {
		t.Fatalf("unexpected string id question: %+v", questions[1])
	}
	if questions[2].ID != "" {
		t.Fatalf("expected empty id for null, got %q", questions[2].ID)
	}

	var bad Question
	if err := json.Unmarshal([]byte(`{"id":{"x":1}}`), &bad); err == nil {
		t.Fatalf("expected error for object id")
	}
}

func TestQuestionIDNormalizesNumbers(t *testing.T) {
	t.Parallel()

	cases := map[string]QuestionID{
		`1`:    "1",
		`1e0`:  "1",
		`1.0`:  "1",
		`-0`:   "0",
		`2.50`: "2.5",
		`007`:  "7",
	}
	for raw, want := range cases {
		var id QuestionID
		if err := id.UnmarshalJSON([]byte(raw)); err != nil {
			t.Fatalf("unmarshal %s failed: %v", raw, err)
		}
		if id != want {
			t.Fatalf("id %s: expected %q, got %q", raw, want, id)
		}
	}
}

func TestSessionErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	cause := errors.New("permission denied")
	err := fmt.Errorf("initialize: %w", NewError(ErrorCodeMediaAccess, cause))

	if !errors.Is(err, ErrMediaAccess) {
		t.Fatalf("expected ErrMediaAccess match")
	}
	if errors.Is(err, ErrQuestionFetch) {
		t.Fatalf("unexpected ErrQuestionFetch match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	code, ok := CodeOf(err)
	if !ok || code != ErrorCodeMediaAccess {
		t.Fatalf("unexpected code: %q %v", code, ok)
	}
	if got := NewError(ErrorCodeCompletion, cause).Error(); got != "interview completion failed: permission denied" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestErrorCodeFatal(t *testing.T) {
	t.Parallel()

	fatal := []ErrorCode{ErrorCodeStartup, ErrorCodeMediaAccess, ErrorCodeQuestionFetch, ErrorCodeCompletion}
	for _, code := range fatal {
		if !code.Fatal() {
			t.Fatalf("expected %s to be fatal", code)
		}
	}
	transient := []ErrorCode{ErrorCodeAnswerSubmit, ErrorCodeTranscriptionStream, ErrorCodeTranscriptionLost, ErrorCodeAudioStream, ErrorCodeJournal}
	for _, code := range transient {
		if code.Fatal() {
			t.Fatalf("expected %s to be transient", code)
		}
	}
}
