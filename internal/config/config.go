package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// INTERVIEWROOM_BACKEND_BASE_URL for backend.base_url.
const EnvPrefix = "INTERVIEWROOM"

// Config stores runtime configuration for the interview room.
type Config struct {
	Backend       BackendConfig
	Transcription TranscriptionConfig
	Audio         AudioConfig
	Video         VideoConfig
	Session       SessionConfig
	Journal       JournalConfig
	Cleanup       CleanupConfig
	Log           LogConfig
}

type BackendConfig struct {
	BaseURL       string
	Token         string
	InterviewID   string
	Timeout       time.Duration
	RoomURL       string
	QuestionsFile string
}

type TranscriptionConfig struct {
	// Provider is "assemblyai" or "none".
	Provider        string
	APIKey          string
	APIBaseURL      string
	UseBackendToken bool
	WordBoost       []string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type VideoConfig struct {
	InputFormat   string
	InputDevice   string
	FrameInterval time.Duration
}

type SessionConfig struct {
	ChunkSize          int
	StreamingGrace     time.Duration
	DurationLimit      time.Duration
	ReconnectAttempts  int
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

type JournalConfig struct {
	Path     string
	Disabled bool
}

type CleanupConfig struct {
	RulesPath      string
	StripFillers   bool
	IterationLimit int
}

type LogConfig struct {
	Level string
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.interview_id", "")
	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("backend.room_url", "")
	v.SetDefault("backend.questions_file", "")

	v.SetDefault("transcription.provider", "assemblyai")
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.api_base_url", "wss://api.assemblyai.com/v2/realtime")
	v.SetDefault("transcription.use_backend_token", true)
	v.SetDefault("transcription.word_boost", []string{})

	v.SetDefault("audio.recorder_command", "ffmpeg")
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)

	v.SetDefault("video.input_format", "")
	v.SetDefault("video.input_device", "")
	v.SetDefault("video.frame_interval", time.Duration(0))

	v.SetDefault("session.chunk_size", 4096)
	v.SetDefault("session.streaming_grace", time.Second)
	v.SetDefault("session.duration_limit", 45*time.Minute)
	v.SetDefault("session.reconnect_attempts", 5)
	v.SetDefault("session.reconnect_base_delay", 2*time.Second)
	v.SetDefault("session.reconnect_max_delay", 30*time.Second)

	v.SetDefault("journal.path", "")
	v.SetDefault("journal.disabled", false)

	v.SetDefault("cleanup.rules_path", "")
	v.SetDefault("cleanup.strip_fillers", true)
	v.SetDefault("cleanup.iteration_limit", 30)

	v.SetDefault("log.level", "info")
}

// ReadFile merges a YAML config file into v. An explicit path must exist;
// otherwise interviewroom.yaml is looked up in the working directory and
// ~/.config/interviewroom and skipped when absent.
func ReadFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %q: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("interviewroom")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "interviewroom"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load resolves configuration from v and normalizes out-of-range values.
func Load(v *viper.Viper) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := Config{
		Backend: BackendConfig{
			BaseURL:       strings.TrimRight(strings.TrimSpace(v.GetString("backend.base_url")), "/"),
			Token:         strings.TrimSpace(v.GetString("backend.token")),
			InterviewID:   strings.TrimSpace(v.GetString("backend.interview_id")),
			Timeout:       v.GetDuration("backend.timeout"),
			RoomURL:       strings.TrimSpace(v.GetString("backend.room_url")),
			QuestionsFile: strings.TrimSpace(v.GetString("backend.questions_file")),
		},
		Transcription: TranscriptionConfig{
			Provider:        strings.ToLower(strings.TrimSpace(v.GetString("transcription.provider"))),
			APIKey:          strings.TrimSpace(v.GetString("transcription.api_key")),
			APIBaseURL:      strings.TrimSpace(v.GetString("transcription.api_base_url")),
			UseBackendToken: v.GetBool("transcription.use_backend_token"),
			WordBoost:       v.GetStringSlice("transcription.word_boost"),
		},
		Audio: AudioConfig{
			RecorderCommand: firstNonEmpty(v.GetString("audio.recorder_command"), "ffmpeg"),
			InputFormat:     firstNonEmpty(v.GetString("audio.input_format"), "pulse"),
			InputDevice:     firstNonEmpty(v.GetString("audio.input_device"), "default"),
			SampleRate:      v.GetInt("audio.sample_rate"),
			Channels:        v.GetInt("audio.channels"),
		},
		Video: VideoConfig{
			InputFormat:   strings.TrimSpace(v.GetString("video.input_format")),
			InputDevice:   strings.TrimSpace(v.GetString("video.input_device")),
			FrameInterval: v.GetDuration("video.frame_interval"),
		},
		Session: SessionConfig{
			ChunkSize:          v.GetInt("session.chunk_size"),
			StreamingGrace:     v.GetDuration("session.streaming_grace"),
			DurationLimit:      v.GetDuration("session.duration_limit"),
			ReconnectAttempts:  v.GetInt("session.reconnect_attempts"),
			ReconnectBaseDelay: v.GetDuration("session.reconnect_base_delay"),
			ReconnectMaxDelay:  v.GetDuration("session.reconnect_max_delay"),
		},
		Journal: JournalConfig{
			Path:     firstNonEmpty(v.GetString("journal.path"), filepath.Join(home, ".local", "share", "interviewroom", "journal.db")),
			Disabled: v.GetBool("journal.disabled"),
		},
		Cleanup: CleanupConfig{
			RulesPath:      firstNonEmpty(v.GetString("cleanup.rules_path"), filepath.Join(home, ".config", "interviewroom", "cleanup.yaml")),
			StripFillers:   v.GetBool("cleanup.strip_fillers"),
			IterationLimit: v.GetInt("cleanup.iteration_limit"),
		},
		Log: LogConfig{
			Level: strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		},
	}

	switch cfg.Transcription.Provider {
	case "assemblyai", "none":
	case "":
		cfg.Transcription.Provider = "assemblyai"
	default:
		return Config{}, fmt.Errorf("unknown transcription provider %q", cfg.Transcription.Provider)
	}

	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 60 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Video.FrameInterval < 0 {
		cfg.Video.FrameInterval = 0
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.StreamingGrace < 0 {
		cfg.Session.StreamingGrace = time.Second
	}
	if cfg.Session.DurationLimit <= 0 {
		cfg.Session.DurationLimit = 45 * time.Minute
	}
	if cfg.Session.ReconnectAttempts <= 0 {
		cfg.Session.ReconnectAttempts = 5
	}
	if cfg.Session.ReconnectBaseDelay <= 0 {
		cfg.Session.ReconnectBaseDelay = 2 * time.Second
	}
	if cfg.Session.ReconnectMaxDelay < cfg.Session.ReconnectBaseDelay {
		cfg.Session.ReconnectMaxDelay = 30 * time.Second
	}
	if cfg.Cleanup.IterationLimit <= 0 {
		cfg.Cleanup.IterationLimit = 30
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
