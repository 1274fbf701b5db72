package usecase

import (
	"errors"
	"fmt"
	"time"

	"interviewroom/internal/domain"
)

var errStreamDropped = errors.New("transcription stream closed unexpectedly")

// superviseTranscription keeps a stream attached to seg until the segment
// stops, reconnecting under the controller's ReconnectPolicy. Once the
// segment is stopping no new stream is opened, even if a backoff timer was
// already running. Consecutive failures are counted across segments, so an
// exhausted budget stays exhausted for the rest of the session.
func (c *SessionController) superviseTranscription(seg *segment) {
	defer close(seg.streamDone)

	policy := c.cfg.Reconnect.normalized()
	logger := c.logger.With("question", seg.question.ID)

	for {
		if seg.isStopping() {
			return
		}

		stream, err := c.provider.StartStreaming(seg.ctx, c.cfg.Streaming)
		if err == nil {
			if !seg.attach(stream) {
				_ = stream.Close()
				return
			}
			received := consumeTranscriptionEvents(stream, seg.buffer, c.events, logger)
			seg.detach(stream)
			err = stream.Wait()
			if seg.isStopping() {
				return
			}
			if received {
				c.resetStreamFailures()
			}
			if err == nil {
				err = errStreamDropped
			}
			_ = stream.Close()
		}
		if seg.isStopping() {
			return
		}

		failures := c.recordStreamFailure()
		if policy.Exhausted(failures) {
			c.markTranscriptionLost()
			logger.Warn("transcription reconnect budget exhausted", "failures", failures, "error", err)
			c.events.SessionError(
				domain.ErrorCodeTranscriptionLost,
				fmt.Sprintf("transcription unavailable after %d attempts: %v", failures, err),
			)
			return
		}

		delay := policy.Delay(failures)
		logger.Warn("transcription stream failed; reconnecting",
			"attempt", failures,
			"max_attempts", policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		c.events.SessionError(
			domain.ErrorCodeTranscriptionStream,
			fmt.Sprintf("reconnecting transcription (%d/%d) in %s", failures, policy.MaxAttempts, delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-seg.ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (c *SessionController) recordStreamFailure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamFailures++
	return c.streamFailures
}

func (c *SessionController) resetStreamFailures() {
	c.mu.Lock()
	c.streamFailures = 0
	c.mu.Unlock()
}

func (c *SessionController) markTranscriptionLost() {
	c.mu.Lock()
	c.transcriptionLost = true
	c.mu.Unlock()
}

func (c *SessionController) transcriptionUnavailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcriptionLost
}
