package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

// pumpAudioChunks forwards recorder PCM to whichever stream is current.
// Chunks captured while no stream is attached are dropped.
func pumpAudioChunks(
	seg *segment,
	chunkSize int,
	events ports.EventSink,
	logger *log.Logger,
) {
	defer close(seg.audioDone)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	dropped := 0
	for {
		n, err := seg.audio.Read(buf)
		if n > 0 {
			if stream := seg.currentStream(); stream != nil {
				if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
					logger.Debug("audio chunk not sent", "error", sendErr)
				}
			} else {
				dropped += n
			}
		}
		if err != nil {
			if dropped > 0 {
				logger.Debug("audio dropped without transcription stream", "bytes", dropped)
			}
			if !errors.Is(err, io.EOF) && !seg.isStopping() {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
