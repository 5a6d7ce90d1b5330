package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Served on a trusted vehicle network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamHandler pushes a status snapshot over a websocket every interval
// until the client goes away.
func streamHandler(status *Status, interval time.Duration) http.Handler {
	if interval <= 0 {
		interval = time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("stream upgrade failed remote=%s: %v", r.RemoteAddr, err)
			return
		}
		defer conn.Close()

		// The read side only watches for the client closing.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(status.Snapshot(time.Now().UTC())); err != nil {
				return
			}
			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case <-t.C:
			}
		}
	})
}
