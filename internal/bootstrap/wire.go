package bootstrap

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"interviewroom/internal/backend"
	"interviewroom/internal/cleanup"
	"interviewroom/internal/config"
	"interviewroom/internal/journal"
	"interviewroom/internal/media"
	"interviewroom/internal/ports"
	"interviewroom/internal/providers/assemblyai"
	"interviewroom/internal/questions"
	"interviewroom/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Logger     *log.Logger
	Backend    ports.InterviewBackend
	Journal    *journal.Store
}

// Close tears down the controller and journal.
func (s Services) Close() error {
	var errs []error
	if s.Controller != nil {
		errs = append(errs, s.Controller.Close())
	}
	if s.Journal != nil {
		errs = append(errs, s.Journal.Close())
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger at the configured level.
func NewLogger(w io.Writer, level string) *log.Logger {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "interviewroom",
		Level:           parsed,
	})
}

// LoadConfig reads the config file at path (or the default locations) and
// resolves it with environment overrides.
func LoadConfig(path string) (config.Config, error) {
	v := config.NewViper()
	if err := config.ReadFile(v, path); err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}

// NewBackend builds the REST client, wrapped by the offline question bank
// when one is configured.
func NewBackend(cfg config.Config, logger *log.Logger) (ports.InterviewBackend, *backend.Client, error) {
	client, err := backend.NewClient(backend.Config{
		BaseURL:     cfg.Backend.BaseURL,
		Token:       cfg.Backend.Token,
		InterviewID: cfg.Backend.InterviewID,
		Timeout:     cfg.Backend.Timeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Backend.QuestionsFile == "" {
		return client, client, nil
	}

	bank, err := questions.LoadFile(cfg.Backend.QuestionsFile)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using offline question bank", "path", cfg.Backend.QuestionsFile, "questions", len(bank.Questions))
	return questions.NewOverride(client, bank), client, nil
}

// OpenJournal opens the configured journal, or returns nil when disabled.
func OpenJournal(cfg config.Config) (*journal.Store, error) {
	if cfg.Journal.Disabled {
		return nil, nil
	}
	return journal.Open(cfg.Journal.Path)
}

// Build wires all dependencies for one interview session.
func Build(ctx context.Context, cfg config.Config, events ports.EventSink, logger *log.Logger) (Services, error) {
	if logger == nil {
		logger = NewLogger(io.Discard, cfg.Log.Level)
	}

	interviewBackend, client, err := NewBackend(cfg, logger)
	if err != nil {
		return Services{}, err
	}

	normalizer, err := cleanup.Load(cleanup.Options{
		RulesPath:      cfg.Cleanup.RulesPath,
		StripFillers:   cfg.Cleanup.StripFillers,
		IterationLimit: cfg.Cleanup.IterationLimit,
	})
	if err != nil {
		return Services{}, err
	}

	store, err := OpenJournal(cfg)
	if err != nil {
		return Services{}, err
	}

	deps := usecase.Dependencies{
		Media:      media.NewDevices(cfg.Audio.RecorderCommand, logger),
		Backend:    interviewBackend,
		Normalizer: normalizer,
		Events:     events,
		Logger:     logger,
	}
	if store != nil {
		deps.Journal = store
	}

	if cfg.Transcription.Provider == "assemblyai" {
		providerCfg := assemblyai.Config{
			APIKey:     cfg.Transcription.APIKey,
			APIBaseURL: cfg.Transcription.APIBaseURL,
			WordBoost:  cfg.Transcription.WordBoost,
		}
		if cfg.Transcription.UseBackendToken {
			providerCfg.Tokens = client
		}
		deps.Provider = assemblyai.NewProvider(providerCfg)
	}

	if cfg.Video.FrameInterval > 0 && cfg.Video.InputDevice != "" {
		deps.Frames = client
	}

	if roomURL := strings.TrimSpace(cfg.Backend.RoomURL); roomURL != "" {
		room, err := backend.DialRoom(ctx, roomURL, cfg.Backend.Token, cfg.Backend.InterviewID, logger)
		if err != nil {
			logger.Warn("room signalling unavailable; continuing without it", "error", err)
		} else {
			deps.Room = room
		}
	}

	controller := usecase.NewSessionController(deps, usecase.Config{
		InterviewID: cfg.Backend.InterviewID,
		Media: ports.MediaConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			AudioFormat: cfg.Audio.InputFormat,
			AudioDevice: cfg.Audio.InputDevice,
			VideoFormat: cfg.Video.InputFormat,
			VideoDevice: cfg.Video.InputDevice,
		},
		Streaming: ports.StreamingConfig{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
			Encoding:   "pcm_s16le",
		},
		ChunkSize:      cfg.Session.ChunkSize,
		StreamingGrace: cfg.Session.StreamingGrace,
		DurationLimit:  cfg.Session.DurationLimit,
		Reconnect: usecase.ReconnectPolicy{
			MaxAttempts: cfg.Session.ReconnectAttempts,
			BaseDelay:   cfg.Session.ReconnectBaseDelay,
			MaxDelay:    cfg.Session.ReconnectMaxDelay,
		},
		FrameInterval: cfg.Video.FrameInterval,
	})

	return Services{
		Controller: controller,
		Config:     cfg,
		Logger:     logger,
		Backend:    interviewBackend,
		Journal:    store,
	}, nil
}
