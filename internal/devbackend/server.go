package devbackend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"interviewroom/internal/domain"
)

// Options configures the in-memory backend.
type Options struct {
	Questions       []domain.Question
	InterviewType   string
	Level           string
	DurationMinutes int
	// Token, when set, is required as a bearer token on every request.
	Token string
	// FailAnswers makes answer submission fail for these question ids.
	FailAnswers map[domain.QuestionID]bool
	Logger      *log.Logger
}

// Interview is everything the backend has recorded for one interview id.
type Interview struct {
	Answers     []domain.Answer
	Reports     []domain.CompletionReport
	Frames      int
	RoomEvents  []domain.RoomMessage
	TokenIssued int
}

// Server is a reference implementation of the public interview API.
type Server struct {
	opts   Options
	router *chi.Mux
	logger *log.Logger

	upgrader websocket.Upgrader

	mu         sync.Mutex
	interviews map[string]*Interview
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.DurationMinutes <= 0 {
		opts.DurationMinutes = 45
	}
	s := &Server{
		opts:       opts,
		logger:     opts.Logger.With("component", "devbackend"),
		interviews: map[string]*Interview{},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Route("/api/public", func(r chi.Router) {
		r.Use(s.authorize)
		r.Post("/transcription-token", s.handleToken)
		r.Route("/interviews/{interviewID}", func(r chi.Router) {
			r.Get("/verify-access", s.handleVerifyAccess)
			r.Get("/questions", s.handleQuestions)
			r.Post("/answer", s.handleAnswer)
			r.Post("/complete", s.handleComplete)
			r.Post("/frames", s.handleFrame)
		})
	})
	r.Get("/ws/interviews/{interviewID}", s.handleRoom)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Interview returns a snapshot of what was recorded for id.
func (s *Server) Interview(id string) Interview {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.interviews[id]
	if !ok {
		return Interview{}
	}
	return Interview{
		Answers:     append([]domain.Answer(nil), iv.Answers...),
		Reports:     append([]domain.CompletionReport(nil), iv.Reports...),
		Frames:      iv.Frames,
		RoomEvents:  append([]domain.RoomMessage(nil), iv.RoomEvents...),
		TokenIssued: iv.TokenIssued,
	}
}

func (s *Server) interview(id string) *Interview {
	iv, ok := s.interviews[id]
	if !ok {
		iv = &Interview{}
		s.interviews[id] = iv
	}
	return iv
}

func (s *Server) handleVerifyAccess(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.AccessInfo{
		Type:            s.opts.InterviewType,
		Level:           s.opts.Level,
		DurationMinutes: s.opts.DurationMinutes,
	})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if len(s.opts.Questions) == 0 {
		writeError(w, http.StatusNotFound, "no questions configured for this interview")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": s.opts.Questions})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var answer domain.Answer
	if err := decodeJSON(r, &answer); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if answer.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}
	if s.opts.FailAnswers[answer.QuestionID] {
		writeError(w, http.StatusServiceUnavailable, "answer storage unavailable")
		return
	}

	s.mu.Lock()
	iv := s.interview(chi.URLParam(r, "interviewID"))
	iv.Answers = append(iv.Answers, answer)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var report domain.CompletionReport
	if err := decodeJSON(r, &report); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	iv := s.interview(chi.URLParam(r, "interviewID"))
	iv.Reports = append(iv.Reports, report)
	s.mu.Unlock()
	s.logger.Info("interview completed", "interview_id", chi.URLParam(r, "interviewID"), "entries", len(report.QuestionHistory))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InterviewID string `json:"interviewId"`
	}
	if err := decodeJSON(r, &body); err != nil || body.InterviewID == "" {
		writeError(w, http.StatusBadRequest, "interviewId is required")
		return
	}

	s.mu.Lock()
	s.interview(body.InterviewID).TokenIssued++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"token": "dev-" + uuid.NewString()})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, _, err := r.FormFile("frame")
	if err != nil {
		writeError(w, http.StatusBadRequest, "frame is required")
		return
	}
	defer file.Close()
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeError(w, http.StatusBadRequest, "unreadable frame")
		return
	}
	if _, err := time.Parse(time.RFC3339Nano, r.FormValue("capturedAt")); err != nil {
		writeError(w, http.StatusBadRequest, "capturedAt must be RFC3339")
		return
	}

	s.mu.Lock()
	s.interview(chi.URLParam(r, "interviewID")).Frames++
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// handleRoom records room messages sent by the candidate client.
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "interviewID")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg domain.RoomMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.mu.Lock()
		iv := s.interview(id)
		iv.RoomEvents = append(iv.RoomEvents, msg)
		s.mu.Unlock()
	}
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, 4<<20))
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": strings.TrimSpace(message)}})
}
