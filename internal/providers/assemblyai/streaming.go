package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

const defaultBaseURL = "wss://api.assemblyai.com/v2/realtime"

// TokenSource hands out short-lived realtime tokens, usually minted by the
// interview backend so the browser or desktop client never sees the API key.
type TokenSource interface {
	TranscriptionToken(ctx context.Context) (string, error)
}

// Config controls AssemblyAI realtime websocket settings.
type Config struct {
	APIKey     string
	APIBaseURL string
	Tokens     TokenSource
	WordBoost  []string
}

// Provider implements ports.TranscriptionProvider for AssemblyAI realtime.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	token := ""
	if p.cfg.Tokens != nil {
		minted, err := p.cfg.Tokens.TranscriptionToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain transcription token: %w", err)
		}
		token = minted
	}
	if token == "" && strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("no AssemblyAI API key or token source is configured")
	}

	wsURL, err := buildRealtimeURL(p.cfg, cfg, token)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if token == "" {
		headers.Set("Authorization", p.cfg.APIKey)
	}

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AssemblyAI websocket: %w", err)
	}

	session := &streamingSession{
		conn:   conn,
		events: make(chan domain.TranscriptEvent, 64),
		audio:    make(chan []byte, 32),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	return session, nil
}

type streamingSession struct {
	conn *websocket.Conn

	events   chan domain.TranscriptEvent
	audio    chan []byte
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

// CloseSend stops audio and asks the service to flush and terminate.
func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"terminate_session":true}`)); err != nil {
					s.setErr(fmt.Errorf("failed to terminate session: %w", err))
				}
				return
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				s.setErr(fmt.Errorf("failed to send audio: %w", err))
				return
			}
		case <-s.readDone:
			return
		}
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var message realtimeMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			continue
		}

		if text := strings.TrimSpace(message.Error); text != "" {
			s.setErr(errors.New(text))
			return
		}

		switch message.kind() {
		case "SessionTerminated":
			return
		case "FinalTranscript":
			s.emit(domain.TranscriptKindFinal, message.Text)
		case "PartialTranscript":
			s.emit(domain.TranscriptKindPartial, message.Text)
		}
	}
}

func (s *streamingSession) emit(kind domain.TranscriptKind, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	event := domain.TranscriptEvent{Kind: kind, Text: text}
	if kind == domain.TranscriptKindFinal {
		// Finals block until consumed. Partials are dropped when the consumer lags.
		select {
		case s.events <- event:
		case <-s.done:
		}
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

type realtimeMessage struct {
	MessageType string `json:"message_type"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Error       string `json:"error"`
}

func (m realtimeMessage) kind() string {
	if m.MessageType != "" {
		return m.MessageType
	}
	return m.Type
}

func buildRealtimeURL(providerCfg Config, streamCfg ports.StreamingConfig, token string) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	realtimeURL, err := url.Parse(base + "/ws")
	if err != nil {
		return "", fmt.Errorf("invalid AssemblyAI base URL: %w", err)
	}
	if realtimeURL.Scheme != "ws" && realtimeURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid AssemblyAI base URL scheme %q", realtimeURL.Scheme)
	}

	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "pcm_s16le"
	}

	query := realtimeURL.Query()
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("encoding", streamCfg.Encoding)
	if token != "" {
		query.Set("token", token)
	}
	if len(providerCfg.WordBoost) > 0 {
		boost, err := json.Marshal(providerCfg.WordBoost)
		if err != nil {
			return "", fmt.Errorf("encode word boost: %w", err)
		}
		query.Set("word_boost", string(boost))
	}
	realtimeURL.RawQuery = query.Encode()
	return realtimeURL.String(), nil
}
