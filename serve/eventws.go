package serve

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"catnip/video"
)

const (
	// Time allowed to write message to the client
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

type eventMessage struct {
	Type        string `json:"type"` // "start", "end" or "recording"
	Identifier  string `json:"identifier"`
	Timestamp   int64  `json:"timestamp"`
	Frames      int    `json:"frames,omitempty"`
	Path        string `json:"path,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
}

// EventSocket pushes live motion event transitions to websocket clients.
// It implements video.Listener and http.Handler.
type EventSocket struct {
	upgrader websocket.Upgrader
	cs       map[chan []byte]bool
	addc     chan chan []byte
	delc     chan chan []byte
	notify   chan []byte
}

func NewEventSocket() *EventSocket {
	s := &EventSocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:     make(map[chan []byte]bool),
		addc:   make(chan chan []byte),
		delc:   make(chan chan []byte),
		notify: make(chan []byte),
	}
	go func() {
		for {
			select {
			case c := <-s.addc:
				s.cs[c] = true
			case c := <-s.delc:
				delete(s.cs, c)
			case m := <-s.notify:
				for c := range s.cs {
					select {
					case c <- m:
					default:
						// Slow client; drop rather than stall the
						// detection loop.
					}
				}
			}
		}
	}()
	return s
}

func (s *EventSocket) broadcast(m *eventMessage) {
	js, err := json.Marshal(m)
	if err != nil {
		log.Errorf("Failed to marshal event message: %v", err)
		return
	}
	s.notify <- js
}

func (s *EventSocket) EventStarted(e *video.Event) {
	s.broadcast(&eventMessage{
		Type:       "start",
		Identifier: e.ID,
		Timestamp:  e.Start.Unix(),
	})
}

func (s *EventSocket) EventEnded(e *video.Event) {
	s.broadcast(&eventMessage{
		Type:       "end",
		Identifier: e.ID,
		Timestamp:  e.End().Unix(),
		Frames:     e.Frames(),
	})
}

func (s *EventSocket) RecordingReady(r *video.Recording) {
	s.broadcast(&eventMessage{
		Type:        "recording",
		Identifier:  r.Identifier,
		Timestamp:   r.End.Unix(),
		Frames:      r.Frames,
		Path:        r.Path,
		DurationSec: r.DurationSec,
	})
}

func (s *EventSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for event stream: %v", err)
		}
		return
	}
	go s.serve(ws)
}

func (s *EventSocket) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to event stream socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from event stream socket")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	notifyc := make(chan []byte, 8)
	s.addc <- notifyc
	defer func() { s.delc <- notifyc }()

	// Even though we don't care about incoming messages, we need to read from
	// the socket in order to process control messages.
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				ws.Close()
				return
			}
		}
	}()

	for {
		select {
		case m := <-notifyc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, m); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}
