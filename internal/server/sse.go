package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// SSEHeartbeatInterval keeps idle proxies from closing /event.
const SSEHeartbeatInterval = 30 * time.Second

var connectedPayload = []byte(`{"type":"server.connected","data":{}}`)

// eventStream frames bus payloads as SSE "message" events.
type eventStream struct {
	out   io.Writer
	flush func()
}

func openEventStream(w http.ResponseWriter) (*eventStream, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}
	rc := http.NewResponseController(w)
	return &eventStream{
		out: w,
		flush: func() {
			if rc.Flush() != nil {
				f.Flush()
			}
		},
	}, nil
}

// send writes one already-encoded envelope.
func (es *eventStream) send(payload []byte) error {
	frame := make([]byte, 0, len(payload)+24)
	frame = append(frame, "event: message\ndata: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')
	if _, err := es.out.Write(frame); err != nil {
		return err
	}
	es.flush()
	return nil
}

func (es *eventStream) ping() error {
	if _, err := io.WriteString(es.out, ": ping\n\n"); err != nil {
		return err
	}
	es.flush()
	return nil
}

// allEvents handles GET /event.
func (s *Server) allEvents(w http.ResponseWriter, r *http.Request) {
	es, err := openEventStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), nil)
		return
	}
	messages, err := s.bus.Stream(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, err.Error(), nil)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if es.send(connectedPayload) != nil {
		return
	}

	heartbeat := time.NewTicker(SSEHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		var werr error
		select {
		case <-r.Context().Done():
			return
		case <-s.stopping:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			werr = es.send(msg.Payload)
			msg.Ack()
		case <-heartbeat.C:
			werr = es.ping()
		}
		if werr != nil {
			log.Debug().Err(werr).Msg("event stream closed by client")
			return
		}
	}
}
