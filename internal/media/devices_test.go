package media

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"interviewroom/internal/ports"
)

const fakeFFMPEG = `#!/usr/bin/env bash
case "$*" in
  *image2pipe*) printf 'JPEGDATA' ;;
  *"-f null"*) exit 0 ;;
  *) printf 'hello'; sleep 2 ;;
esac
`

func TestAcquireRecordAndRelease(t *testing.T) {
	t.Parallel()

	devices := NewDevices(writeScript(t, "ffmpeg.sh", fakeFFMPEG), log.New(io.Discard))
	handle, err := devices.Acquire(context.Background(), ports.MediaConfig{VideoDevice: "/dev/video0", VideoFormat: "v4l2"})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	session, err := handle.StartRecorder(context.Background())
	if err != nil {
		t.Fatalf("start recorder failed: %v", err)
	}
	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 || !strings.Contains(string(buf[:n]), "hello") {
		t.Fatalf("unexpected audio read: n=%d err=%v %q", n, readErr, string(buf[:n]))
	}

	frame, err := handle.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("capture frame failed: %v", err)
	}
	if string(frame) != "JPEGDATA" {
		t.Fatalf("unexpected frame: %q", string(frame))
	}

	if err := handle.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := handle.Release(); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
	if _, err := handle.StartRecorder(context.Background()); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected released error, got %v", err)
	}
	if _, err := handle.CaptureFrame(context.Background()); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected released error, got %v", err)
	}
}

func TestAcquireReportsDeniedMicrophone(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "denied.sh", "#!/usr/bin/env bash\necho 'Permission denied' 1>&2\nexit 1\n")
	devices := NewDevices(script, log.New(io.Discard))

	_, err := devices.Acquire(context.Background(), ports.MediaConfig{})
	if err == nil {
		t.Fatalf("expected acquire error")
	}
	if !strings.Contains(err.Error(), "microphone") || !strings.Contains(err.Error(), "Permission denied") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCaptureFrameWithoutCamera(t *testing.T) {
	t.Parallel()

	devices := NewDevices(writeScript(t, "ffmpeg.sh", fakeFFMPEG), log.New(io.Discard))
	handle, err := devices.Acquire(context.Background(), ports.MediaConfig{})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer handle.Release()

	if _, err := handle.CaptureFrame(context.Background()); !errors.Is(err, ErrNoCamera) {
		t.Fatalf("expected no camera error, got %v", err)
	}
}

func TestStartRecorderEarlyExit(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	_, err := startRecorder(ctx, script, withDefaults(ports.MediaConfig{}))
	if err == nil || !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecorderArgsUseDefaults(t *testing.T) {
	t.Parallel()

	args := strings.Join(recorderArgs(withDefaults(ports.MediaConfig{})), " ")
	if !strings.Contains(args, "-f pulse -i default") || !strings.Contains(args, "-ar 16000") || !strings.Contains(args, "-ac 1") {
		t.Fatalf("unexpected recorder args: %s", args)
	}
}

func TestIgnoreExitStatus(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := ignoreExitStatus(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
	if trimOutput("  hi\n") != "hi" {
		t.Fatalf("unexpected trim result")
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
