package bootstrap

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"interviewroom/internal/config"
	"interviewroom/internal/devbackend"
	"interviewroom/internal/questions"
)

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Load(config.NewViper())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.InterviewID = "iv-1"
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	return cfg
}

func TestBuildSuccess(t *testing.T) {
	server := httptest.NewServer(devbackend.New(devbackend.Options{Logger: log.New(io.Discard)}))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/api")
	cfg.Backend.RoomURL = "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/interviews/iv-1"

	services, err := Build(context.Background(), cfg, nil, log.New(io.Discard))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if services.Controller == nil || services.Journal == nil {
		t.Fatalf("expected controller and journal: %+v", services)
	}
	if services.Controller.Session().InterviewID != "iv-1" {
		t.Fatalf("unexpected interview id")
	}
}

func TestBuildWithOfflineQuestions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	if err := os.WriteFile(path, []byte("questions:\n  - text: Only one\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg := testConfig(t, "http://127.0.0.1:1/api")
	cfg.Backend.QuestionsFile = path
	cfg.Journal.Disabled = true

	services, err := Build(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if _, ok := services.Backend.(*questions.Override); !ok {
		t.Fatalf("expected question bank override, got %T", services.Backend)
	}
	qs, err := services.Backend.Questions(context.Background())
	if err != nil || len(qs) != 1 {
		t.Fatalf("unexpected questions: %v %v", qs, err)
	}
	if services.Journal != nil {
		t.Fatalf("journal should be disabled")
	}
}

func TestBuildFailsOnInvalidCleanupRules(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/api")
	rules := filepath.Join(t.TempDir(), "cleanup.yaml")
	if err := os.WriteFile(rules, []byte("rules:\n  - match: '('\n    regex: true\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg.Cleanup.RulesPath = rules

	if _, err := Build(context.Background(), cfg, nil, nil); err == nil {
		t.Fatalf("expected build error due to invalid rules")
	}
}

func TestBuildRequiresBackend(t *testing.T) {
	cfg := testConfig(t, "")
	if _, err := Build(context.Background(), cfg, nil, nil); err == nil {
		t.Fatalf("expected missing backend error")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
	if NewLogger(io.Discard, "nonsense").GetLevel() != log.InfoLevel {
		t.Fatalf("expected info fallback")
	}
}

func TestLoadConfigReadsExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "interviewroom.yaml")
	body := "backend:\n  base_url: http://example.test/api/\n  interview_id: iv-9\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://example.test/api" || cfg.Backend.InterviewID != "iv-9" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected config: %+v", cfg.Backend)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit file")
	}
}
