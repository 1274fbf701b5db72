package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"interviewroom/internal/ports"
)

var (
	ErrReleased = errors.New("media devices already released")
	ErrNoCamera = errors.New("no camera configured")
)

const (
	probeTimeout = 5 * time.Second
	frameTimeout = 5 * time.Second
)

// Devices acquires camera and microphone through an ffmpeg binary.
type Devices struct {
	command string
	logger  *log.Logger
}

func NewDevices(command string, logger *log.Logger) *Devices {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Devices{command: command, logger: logger.With("component", "media")}
}

// Acquire probes the microphone and, when configured, the camera. Nothing is
// held open on failure.
func (d *Devices) Acquire(ctx context.Context, cfg ports.MediaConfig) (ports.MediaHandle, error) {
	cfg = withDefaults(cfg)

	if err := d.probe(ctx, "microphone", cfg.AudioFormat, cfg.AudioDevice, "-t", "0.2"); err != nil {
		return nil, err
	}
	if cfg.VideoDevice != "" {
		if err := d.probe(ctx, "camera", cfg.VideoFormat, cfg.VideoDevice, "-frames:v", "1"); err != nil {
			return nil, err
		}
	}

	d.logger.Debug("media devices acquired", "audio", cfg.AudioDevice, "video", cfg.VideoDevice)
	return &Handle{devices: d, cfg: cfg, active: map[*recorder]struct{}{}}, nil
}

func (d *Devices) probe(ctx context.Context, kind string, format string, device string, limit ...string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, "-i", device)
	args = append(args, limit...)
	args = append(args, "-f", "null", "-")

	cmd := exec.CommandContext(ctx, d.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := trimOutput(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return fmt.Errorf("%s %q unavailable: %s", kind, device, detail)
	}
	return nil
}

// Handle owns acquired devices and the recorders started from them.
type Handle struct {
	devices *Devices
	cfg     ports.MediaConfig

	mu       sync.Mutex
	released bool
	active   map[*recorder]struct{}
}

func (h *Handle) StartRecorder(ctx context.Context) (ports.AudioSession, error) {
	h.mu.Lock()
	released := h.released
	h.mu.Unlock()
	if released {
		return nil, ErrReleased
	}

	rec, err := startRecorder(ctx, h.devices.command, h.cfg)
	if err != nil {
		return nil, err
	}
	rec.onStop = h.forget

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		go func() { _ = rec.Stop() }()
		return nil, ErrReleased
	}
	h.active[rec] = struct{}{}
	return rec, nil
}

// CaptureFrame grabs one JPEG frame from the camera.
func (h *Handle) CaptureFrame(ctx context.Context) ([]byte, error) {
	h.mu.Lock()
	released := h.released
	h.mu.Unlock()
	if released {
		return nil, ErrReleased
	}
	if h.cfg.VideoDevice == "" {
		return nil, ErrNoCamera
	}

	ctx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
	if h.cfg.VideoFormat != "" {
		args = append(args, "-f", h.cfg.VideoFormat)
	}
	args = append(args, "-i", h.cfg.VideoDevice, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "mjpeg", "-")

	cmd := exec.CommandContext(ctx, h.devices.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("frame capture failed: %w: %s", err, trimOutput(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("frame capture produced no data")
	}
	return stdout.Bytes(), nil
}

// Release stops every recorder still running. Later calls are no-ops.
func (h *Handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	recorders := make([]*recorder, 0, len(h.active))
	for rec := range h.active {
		recorders = append(recorders, rec)
	}
	h.mu.Unlock()

	var errs []error
	for _, rec := range recorders {
		if err := rec.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	h.devices.logger.Debug("media devices released", "recorders", len(recorders))
	return errors.Join(errs...)
}

func (h *Handle) forget(rec *recorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.active, rec)
}

func withDefaults(cfg ports.MediaConfig) ports.MediaConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if strings.TrimSpace(cfg.AudioFormat) == "" {
		cfg.AudioFormat = "pulse"
	}
	if strings.TrimSpace(cfg.AudioDevice) == "" {
		cfg.AudioDevice = "default"
	}
	return cfg
}
