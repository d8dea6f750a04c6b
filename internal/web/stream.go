package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"satscope/internal/statebus"
)

const streamKeepalive = 15 * time.Second

// streamHandler pushes a StateResponse as a server-sent event after every
// state change. Clients get the current state immediately on connect. A slow
// client skips intermediate versions.
func streamHandler(bus *statebus.Bus, m MapConfig) http.Handler {
	return getOnly(func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		// Long-lived response; the server-wide write timeout does not apply.
		_ = rc.SetWriteDeadline(time.Time{})

		id, updates := bus.Subscribe(1)
		defer bus.Unsubscribe(id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		send := func() error {
			st, v := bus.Snapshot()
			b, err := json.Marshal(BuildState(st, v, m))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", v, b); err != nil {
				return err
			}
			return rc.Flush()
		}
		if err := send(); err != nil {
			return
		}

		keepalive := time.NewTicker(streamKeepalive)
		defer keepalive.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
				if err := send(); err != nil {
					return
				}
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			}
		}
	})
}
