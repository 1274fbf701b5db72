package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"interviewroom/internal/ports"
)

const (
	startupWindow = 250 * time.Millisecond
	stopTimeout   = 1200 * time.Millisecond
)

func recorderArgs(cfg ports.MediaConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.AudioFormat,
		"-i", cfg.AudioDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// startRecorder launches ffmpeg writing raw PCM to stdout.
func startRecorder(ctx context.Context, command string, cfg ports.MediaConfig) (*recorder, error) {
	cmd := exec.CommandContext(ctx, command, recorderArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimOutput(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(startupWindow):
	}

	return &recorder{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

// recorder is one running microphone capture.
type recorder struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
	onStop   func(*recorder)
}

func (r *recorder) Read(p []byte) (int, error) {
	return r.stdout.Read(p)
}

func (r *recorder) Close() error {
	return r.Stop()
}

// Stop interrupts ffmpeg, escalating to kill if it does not exit in time.
func (r *recorder) Stop() error {
	r.stopOnce.Do(func() {
		if r.process != nil {
			_ = r.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-r.waitErr:
			if ok {
				r.stopErr = ignoreExitStatus(err)
			}
		case <-time.After(stopTimeout):
			if r.process != nil {
				_ = r.process.Kill()
			}
			if err, ok := <-r.waitErr; ok {
				r.stopErr = ignoreExitStatus(err)
			}
		}

		if closeErr := r.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && r.stopErr == nil {
			r.stopErr = closeErr
		}
		if r.stopErr != nil && r.stderr.Len() > 0 {
			r.stopErr = fmt.Errorf("%w: %s", r.stopErr, trimOutput(r.stderr.String()))
		}
		if r.onStop != nil {
			r.onStop(r)
		}
	})
	return r.stopErr
}

func ignoreExitStatus(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(input string) string {
	return string(bytes.TrimSpace([]byte(input)))
}
