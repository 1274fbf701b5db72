package questions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

// Bank is an ordered, offline question set.
type Bank struct {
	Title     string
	Questions []domain.Question
}

type bankFile struct {
	Title     string `yaml:"title"`
	Questions []struct {
		ID   string `yaml:"id"`
		Text string `yaml:"text"`
		Hint string `yaml:"hint"`
	} `yaml:"questions"`
}

// Default is the built-in three-question behavioural set.
func Default() Bank {
	return Bank{
		Title: "General",
		Questions: []domain.Question{
			{ID: "1", Text: "Tell me about yourself and your background.", Hint: "Focus on relevant experience and skills"},
			{ID: "2", Text: "What interests you about this position?", Hint: "Consider both the role and company culture"},
			{ID: "3", Text: "Describe a challenging project you worked on.", Hint: "Include your role, challenges faced, and outcomes"},
		},
	}
}

// LoadFile reads a YAML question bank. Questions without an id are numbered
// by position.
func LoadFile(path string) (Bank, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Bank{}, fmt.Errorf("failed to read question bank %q: %w", path, err)
	}
	return Parse(contents)
}

func Parse(contents []byte) (Bank, error) {
	var file bankFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return Bank{}, fmt.Errorf("failed to parse question bank: %w", err)
	}

	bank := Bank{Title: strings.TrimSpace(file.Title)}
	seen := map[domain.QuestionID]bool{}
	for index, q := range file.Questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			return Bank{}, fmt.Errorf("question %d: text cannot be empty", index+1)
		}
		id := domain.QuestionID(strings.TrimSpace(q.ID))
		if id == "" {
			id = domain.QuestionID(fmt.Sprintf("%d", index+1))
		}
		if seen[id] {
			return Bank{}, fmt.Errorf("question %d: duplicate id %q", index+1, id)
		}
		seen[id] = true
		bank.Questions = append(bank.Questions, domain.Question{ID: id, Text: text, Hint: strings.TrimSpace(q.Hint)})
	}
	if len(bank.Questions) == 0 {
		return Bank{}, errors.New("question bank has no questions")
	}
	return bank, nil
}

// Override serves questions from a bank while delegating answers and
// completion to the wrapped backend.
type Override struct {
	ports.InterviewBackend
	bank Bank
}

func NewOverride(backend ports.InterviewBackend, bank Bank) *Override {
	return &Override{InterviewBackend: backend, bank: bank}
}

func (o *Override) Questions(_ context.Context) ([]domain.Question, error) {
	return append([]domain.Question(nil), o.bank.Questions...), nil
}

// VerifyAccess passes through when the wrapped backend gates access.
func (o *Override) VerifyAccess(ctx context.Context) (domain.AccessInfo, error) {
	if verifier, ok := o.InterviewBackend.(ports.AccessVerifier); ok {
		return verifier.VerifyAccess(ctx)
	}
	return domain.AccessInfo{}, nil
}
