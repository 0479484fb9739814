package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const streamWriteWait = 10 * time.Second

// streamEvents upgrades the connection and forwards the campaign's live
// events until the client disconnects. The subscription is taken before the
// upgrade so events recorded right after the handshake are not missed.
func (h *handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]
	if _, err := h.app.Campaigns.Get(r.Context(), campaignID); err != nil {
		writeServiceError(w, err)
		return
	}

	ch, cancel := h.app.Bus.Subscribe(campaignID)
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || h.originAllowed(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
