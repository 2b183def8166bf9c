package gateway

import (
	"net/http"
	"time"
)

// pingInterval keeps intermediaries from closing an idle event stream.
const pingInterval = 30 * time.Second

// handleEvents is the global SSE feed: a connected snapshot first, then
// every bus event as it happens, with keepalive pings in between.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sse := newSSEWriter(w)

	summary, err := s.store.Summary(ctx)
	if err != nil {
		s.logger.Error("queue summary failed", "error", err)
		summary = map[string]int{}
	}
	sse.event("connected", map[string]any{
		"queue_summary":  summary,
		"assistant_name": s.personality.Name(),
		"configured":     s.personality.Configured(),
	})

	ch, cancel := s.bus.SubscribeChan(64)
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			payload := map[string]any{"type": string(e.Type)}
			for k, v := range e.Payload {
				payload[k] = v
			}
			sse.send(payload)
		case <-ticker.C:
			sse.comment("ping")
		case <-ctx.Done():
			return
		}
	}
}
