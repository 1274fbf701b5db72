package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"interviewroom/internal/devbackend"
	"interviewroom/internal/domain"
	"interviewroom/internal/questions"
)

func newTestClient(t *testing.T, opts devbackend.Options) (*Client, *devbackend.Server) {
	t.Helper()
	opts.Logger = log.New(io.Discard)
	server := devbackend.New(opts)
	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)

	client, err := NewClient(Config{
		BaseURL:     httpServer.URL + "/api/",
		Token:       opts.Token,
		InterviewID: "iv-1",
	}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func TestNewClientValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{InterviewID: "iv"}, nil); err == nil {
		t.Fatalf("expected missing base url error")
	}
	if _, err := NewClient(Config{BaseURL: "http://localhost/api"}, nil); err == nil {
		t.Fatalf("expected missing interview id error")
	}
}

func TestClientInterviewFlow(t *testing.T) {
	t.Parallel()

	client, server := newTestClient(t, devbackend.Options{
		Questions:       questions.Default().Questions,
		InterviewType:   "behavioral",
		DurationMinutes: 30,
		Token:           "secret",
	})
	ctx := context.Background()

	info, err := client.VerifyAccess(ctx)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if info.Type != "behavioral" || info.DurationMinutes != 30 {
		t.Fatalf("unexpected access info: %+v", info)
	}

	qs, err := client.Questions(ctx)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != 3 || qs[0].ID != "1" {
		t.Fatalf("unexpected questions: %+v", qs)
	}

	if err := client.SubmitAnswer(ctx, domain.Answer{QuestionID: "1", Transcript: "hello", SubmittedAt: time.Now()}); err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	token, err := client.TranscriptionToken(ctx)
	if err != nil || !strings.HasPrefix(token, "dev-") {
		t.Fatalf("unexpected token: %q %v", token, err)
	}
	if err := client.SubmitFrame(ctx, []byte{0xff, 0xd8, 0xff}, time.Now()); err != nil {
		t.Fatalf("submit frame: %v", err)
	}
	report := domain.CompletionReport{
		InterviewID:     "iv-1",
		QuestionHistory: []domain.HistoryEntry{{Sequence: 1, Question: qs[0]}},
		DurationSeconds: 12,
		CompletedAt:     time.Now(),
	}
	if err := client.Complete(ctx, report); err != nil {
		t.Fatalf("complete: %v", err)
	}

	recorded := server.Interview("iv-1")
	if len(recorded.Answers) != 1 || recorded.Answers[0].Transcript != "hello" {
		t.Fatalf("unexpected answers: %+v", recorded.Answers)
	}
	if len(recorded.Reports) != 1 || recorded.Reports[0].DurationSeconds != 12 {
		t.Fatalf("unexpected reports: %+v", recorded.Reports)
	}
	if recorded.Frames != 1 || recorded.TokenIssued != 1 {
		t.Fatalf("unexpected frames/tokens: %+v", recorded)
	}
}

func TestClientCompleteRoutesByReportInterview(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var paths []string
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer httpServer.Close()

	client, err := NewClient(Config{BaseURL: httpServer.URL + "/api", InterviewID: "iv-B"}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()
	if err := client.Complete(ctx, domain.CompletionReport{SessionID: "s-a", InterviewID: "iv-A"}); err != nil {
		t.Fatalf("complete for other interview: %v", err)
	}
	if err := client.Complete(ctx, domain.CompletionReport{SessionID: "s-b"}); err != nil {
		t.Fatalf("complete without interview id: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"/api/public/interviews/iv-A/complete", "/api/public/interviews/iv-B/complete"}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("unexpected request paths: %v", paths)
	}
}

func TestClientSurfacesErrorMessages(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, devbackend.Options{
		Questions:   questions.Default().Questions,
		FailAnswers: map[domain.QuestionID]bool{"2": true},
	})

	err := client.SubmitAnswer(context.Background(), domain.Answer{QuestionID: "2"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable || apiErr.Message != "answer storage unavailable" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientRejectsBadToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(devbackend.New(devbackend.Options{Token: "secret", Logger: log.New(io.Discard)}))
	t.Cleanup(server.Close)
	client, err := NewClient(Config{BaseURL: server.URL + "/api", Token: "wrong", InterviewID: "iv"}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Questions(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestErrorMessageShapes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`{"error":{"message":"nested"}}`: "nested",
		`{"error":"flat"}`:               "flat",
		`{"message":"top"}`:              "top",
		`gateway timeout`:                "gateway timeout",
	}
	for body, want := range cases {
		if got := errorMessage([]byte(body)); got != want {
			t.Fatalf("errorMessage(%s) = %q, want %q", body, got, want)
		}
	}
}

func TestDecodeQuestionsAcceptsBareArray(t *testing.T) {
	t.Parallel()

	qs, err := decodeQuestions([]byte(`[{"id":7,"text":"a"}]`))
	if err != nil || len(qs) != 1 || qs[0].ID != "7" {
		t.Fatalf("unexpected questions: %+v %v", qs, err)
	}
}

func TestRoomSignalDeliversMessages(t *testing.T) {
	t.Parallel()

	server := devbackend.New(devbackend.Options{Logger: log.New(io.Discard)})
	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)

	roomURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws/interviews/iv-1"
	room, err := DialRoom(context.Background(), roomURL, "", "iv-1", log.New(io.Discard))
	if err != nil {
		t.Fatalf("dial room: %v", err)
	}
	if err := room.Send(context.Background(), domain.RoomMessage{Type: domain.RoomMessageQuestionChange, QuestionNumber: 2}); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(server.Interview("iv-1").RoomEvents) < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	events := server.Interview("iv-1").RoomEvents
	if len(events) != 2 || events[0].Type != domain.RoomMessageJoin || events[0].Role != "candidate" {
		t.Fatalf("unexpected room events: %+v", events)
	}
	if events[1].QuestionNumber != 2 || events[1].InterviewID != "iv-1" {
		t.Fatalf("unexpected question change: %+v", events[1])
	}

	if err := room.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := room.Send(context.Background(), domain.RoomMessage{Type: domain.RoomMessageInterviewEnd}); err == nil {
		t.Fatalf("expected send after close to fail")
	}
}
