package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"interviewroom/internal/domain"
)

const defaultTimeout = 60 * time.Second

// Config controls the interview REST client.
type Config struct {
	// BaseURL includes the API prefix, e.g. https://host/api.
	BaseURL     string
	Token       string
	InterviewID string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Client talks to the public interview endpoints.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is not configured")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if strings.TrimSpace(cfg.InterviewID) == "" {
		return nil, errors.New("interview id is not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{cfg: cfg, http: client, logger: logger.With("component", "backend")}, nil
}

func (c *Client) VerifyAccess(ctx context.Context) (domain.AccessInfo, error) {
	var info domain.AccessInfo
	if err := c.do(ctx, http.MethodGet, c.interviewPath("verify-access"), nil, &info); err != nil {
		return domain.AccessInfo{}, fmt.Errorf("verify access: %w", err)
	}
	return info, nil
}

func (c *Client) Questions(ctx context.Context) ([]domain.Question, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.interviewPath("questions"), nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	questions, err := decodeQuestions(raw)
	if err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return questions, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, answer domain.Answer) error {
	if err := c.do(ctx, http.MethodPost, c.interviewPath("answer"), answer, nil); err != nil {
		return fmt.Errorf("submit answer %s: %w", answer.QuestionID, err)
	}
	return nil
}

// Complete submits the question history to the interview named in the
// report, falling back to the configured interview when it is empty.
func (c *Client) Complete(ctx context.Context, report domain.CompletionReport) error {
	interviewID := strings.TrimSpace(report.InterviewID)
	if interviewID == "" {
		interviewID = c.cfg.InterviewID
	}
	if err := c.do(ctx, http.MethodPost, interviewPath(interviewID, "complete"), report, nil); err != nil {
		return fmt.Errorf("complete interview: %w", err)
	}
	return nil
}

// TranscriptionToken mints a short-lived realtime transcription token.
func (c *Client) TranscriptionToken(ctx context.Context) (string, error) {
	body := map[string]string{"interviewId": c.cfg.InterviewID}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/public/transcription-token", body, &out); err != nil {
		return "", fmt.Errorf("transcription token: %w", err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", errors.New("transcription token: empty token in response")
	}
	return out.Token, nil
}

// SubmitFrame uploads one JPEG camera frame.
func (c *Client) SubmitFrame(ctx context.Context, frame []byte, capturedAt time.Time) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("capturedAt", capturedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	part, err := writer.CreateFormFile("frame", "frame.jpg")
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.interviewPath("frames"), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := c.send(req, nil); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}
	return nil
}

func (c *Client) interviewPath(name string) string {
	return interviewPath(c.cfg.InterviewID, name)
}

func interviewPath(interviewID string, name string) string {
	return "/public/interviews/" + url.PathEscape(interviewID) + "/" + name
}

func (c *Client) do(ctx context.Context, method string, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("backend request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(payload)}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {error:{message}}, {error:"..."} or {message}.
func errorMessage(payload []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return strings.TrimSpace(string(payload))
	}
	if len(body.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var text string
		if err := json.Unmarshal(body.Error, &text); err == nil && text != "" {
			return text
		}
	}
	return body.Message
}

func decodeQuestions(raw json.RawMessage) ([]domain.Question, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var questions []domain.Question
		err := json.Unmarshal(trimmed, &questions)
		return questions, err
	}
	var wrapped struct {
		Questions []domain.Question `json:"questions"`
	}
	err := json.Unmarshal(trimmed, &wrapped)
	return wrapped.Questions, err
}
