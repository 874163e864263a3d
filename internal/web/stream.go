package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// streamInterval is how often the event stream polls for new events.
var streamInterval = 5 * time.Second

// handleEventStream serves a Server-Sent Events stream of reconciliation
// events. It polls the event reader and sends each event not sent before as
// one JSON message. Sources without an audit trail get a "done" event.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sendDone := func(reason string) {
		fmt.Fprintf(w, "event: done\ndata: %s\n\n", reason)
		flusher.Flush()
	}
	if s.events == nil {
		sendDone("no event log")
		return
	}

	// Events already on the page are not re-sent. IDs increase, so the
	// highest one sent is all the stream needs to remember.
	initial, err := s.events.RecentEvents(r.Context(), recentEventLimit)
	if err != nil {
		sendDone("event log unavailable")
		return
	}
	var lastID int64
	for _, e := range initial {
		lastID = max(lastID, e.ID)
	}
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	tick := time.NewTicker(streamInterval)
	defer tick.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
		}

		events, err := s.events.RecentEvents(r.Context(), recentEventLimit)
		if err != nil {
			sendDone("event log unavailable")
			return
		}
		fresh := toEventJSON(events)
		// Oldest first so clients can prepend in order.
		for i := len(fresh) - 1; i >= 0; i-- {
			e := fresh[i]
			if e.ID <= lastID {
				continue
			}
			lastID = e.ID
			data, _ := json.Marshal(e)
			fmt.Fprintf(w, "event: record\ndata: %s\n\n", data)
		}
		flusher.Flush()
	}
}
