package server

import (
	"fmt"
	"net/http"
	"time"
)

const streamPoll = 50 * time.Millisecond

// FrameSource supplies the latest encoded overlay frame.
type FrameSource interface {
	Latest() (jpeg []byte, seq uint64, ok bool)
}

// StreamHandler serves the landmark overlay as MJPEG.
type StreamHandler struct {
	source FrameSource
	poll   time.Duration
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source FrameSource) *StreamHandler {
	return &StreamHandler{source: source, poll: streamPoll}
}

// ServeHTTP streams MJPEG frames until the client goes away. A frame is only
// written when the source has a newer one.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	var sent uint64
	var sentAny bool
	for {
		if data, seq, ok := h.source.Latest(); ok && (!sentAny || seq != sent) {
			if err := writePart(w, data); err != nil {
				return
			}
			sent, sentAny = seq, true
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
