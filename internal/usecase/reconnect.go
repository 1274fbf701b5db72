package usecase

import "time"

const (
	defaultReconnectAttempts = 5
	defaultReconnectBase     = 2 * time.Second
	defaultReconnectMax      = 30 * time.Second
)

// ReconnectPolicy bounds transcription reconnection: an attempt counter and
// an exponential delay function.
type ReconnectPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: defaultReconnectAttempts,
		BaseDelay:   defaultReconnectBase,
		MaxDelay:    defaultReconnectMax,
	}
}

func (p ReconnectPolicy) normalized() ReconnectPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultReconnectAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultReconnectBase
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = defaultReconnectMax
		if p.MaxDelay < p.BaseDelay {
			p.MaxDelay = p.BaseDelay
		}
	}
	return p
}

// Delay returns the wait before retry number attempt (1-based).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// Exhausted reports whether failures consecutive failures end retrying.
func (p ReconnectPolicy) Exhausted(failures int) bool {
	return failures >= p.normalized().MaxAttempts
}
