package usecase

import (
	"context"
	"time"
)

// frameSampler periodically grabs a camera frame and hands it to the
// frame sink. Failures are logged and skipped.
type frameSampler struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *SessionController) startSampler() *frameSampler {
	if c.frames == nil || c.cfg.FrameInterval <= 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(c.rootCtx)
	sampler := &frameSampler{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sampler.done)
		ticker := time.NewTicker(c.cfg.FrameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sampleFrame(ctx)
			}
		}
	}()
	return sampler
}

func (c *SessionController) sampleFrame(ctx context.Context) {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()
	if handle == nil {
		return
	}

	frame, err := handle.CaptureFrame(ctx)
	if err != nil {
		c.logger.Debug("frame capture failed", "error", err)
		return
	}
	if len(frame) == 0 {
		return
	}
	if err := c.frames.SubmitFrame(ctx, frame, c.now()); err != nil {
		c.logger.Debug("frame upload failed", "error", err)
	}
}

func (s *frameSampler) stop() {
	s.cancel()
	<-s.done
}
