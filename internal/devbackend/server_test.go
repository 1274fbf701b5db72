package devbackend

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"interviewroom/internal/domain"
)

func newTestServer(opts Options) *Server {
	opts.Logger = log.New(io.Discard)
	return New(opts)
}

func TestQuestionsEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(Options{Questions: []domain.Question{{ID: "1", Text: "Hi"}}})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/public/interviews/iv/questions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body struct {
		Questions []domain.Question `json:"questions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Questions) != 1 || body.Questions[0].Text != "Hi" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestQuestionsEndpointWithoutQuestions(t *testing.T) {
	t.Parallel()

	server := newTestServer(Options{})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/public/interviews/iv/questions", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"message"`) {
		t.Fatalf("expected error message body: %s", rec.Body.String())
	}
}

func TestAnswerEndpointRecordsAndFails(t *testing.T) {
	t.Parallel()

	server := newTestServer(Options{FailAnswers: map[domain.QuestionID]bool{"2": true}})

	ok := httptest.NewRecorder()
	server.ServeHTTP(ok, httptest.NewRequest(http.MethodPost, "/api/public/interviews/iv/answer", strings.NewReader(`{"questionId":1,"transcript":"x"}`)))
	if ok.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", ok.Code)
	}

	failed := httptest.NewRecorder()
	server.ServeHTTP(failed, httptest.NewRequest(http.MethodPost, "/api/public/interviews/iv/answer", strings.NewReader(`{"questionId":"2"}`)))
	if failed.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", failed.Code)
	}

	missing := httptest.NewRecorder()
	server.ServeHTTP(missing, httptest.NewRequest(http.MethodPost, "/api/public/interviews/iv/answer", strings.NewReader(`{}`)))
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", missing.Code)
	}

	answers := server.Interview("iv").Answers
	if len(answers) != 1 || answers[0].QuestionID != "1" {
		t.Fatalf("unexpected answers: %+v", answers)
	}
}

func TestTokenRequired(t *testing.T) {
	t.Parallel()

	server := newTestServer(Options{Token: "secret"})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/public/interviews/iv/verify-access", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/public/interviews/iv/verify-access", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"duration":45`) {
		t.Fatalf("unexpected verify response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestFrameUpload(t *testing.T) {
	t.Parallel()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("capturedAt", time.Now().UTC().Format(time.RFC3339Nano))
	part, _ := writer.CreateFormFile("frame", "frame.jpg")
	_, _ = part.Write([]byte{0xff, 0xd8})
	_ = writer.Close()

	server := newTestServer(Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/public/interviews/iv/frames", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	if server.Interview("iv").Frames != 1 {
		t.Fatalf("expected one frame recorded")
	}
}

func TestTokenEndpointRequiresInterview(t *testing.T) {
	t.Parallel()

	server := newTestServer(Options{})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/public/transcription-token", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
