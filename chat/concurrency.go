package chat

import "log/slog"

// DefaultMaxConcurrent is the handler slot count when Bot.MaxConcurrent is unset.
const DefaultMaxConcurrent = 16

// handlerSlots limits how many messages are handled at once.
type handlerSlots chan struct{}

func newHandlerSlots(n int) handlerSlots {
	if n <= 0 {
		n = DefaultMaxConcurrent
	}
	slog.Info("chat handler concurrency limit initialized", slog.Int("max_concurrent", n))
	return make(handlerSlots, n)
}

// tryAcquire takes a slot without waiting. Returns false when all are busy.
func (s handlerSlots) tryAcquire() bool {
	select {
	case s <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s handlerSlots) release() {
	select {
	case <-s:
	default:
		// Should not happen unless mismatched acquire/release
		slog.Warn("handler slot release called without corresponding acquire")
	}
}

// active returns the number of slots in use.
func (s handlerSlots) active() int { return len(s) }
