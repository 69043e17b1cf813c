package display

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
	"github.com/roman-kulish/synchro-tracker/internal/telemetry"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 10
	writeWait         = time.Second
)

var upgrader = &websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize}

// Message is the JSON document pushed to websocket clients and served by /angle
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Sample    uint64    `json:"sample"`
	Theta     float64   `json:"theta"`
	Degrees   float64   `json:"degrees"`
}

func NewMessage(r angle.Reading) Message {
	return Message{
		Timestamp: r.Timestamp.UTC(),
		Sample:    r.Sample,
		Theta:     r.Theta,
		Degrees:   r.Rounded(),
	}
}

type client struct {
	socket *websocket.Conn
	send   chan []byte
}

// Room broadcasts readings to every connected websocket client. A client that
// cannot keep up misses messages rather than slowing the others down.
type Room struct {
	forward chan []byte
	join    chan *client
	leave   chan *client
	clients map[*client]struct{}
	done    chan struct{}

	logger *slog.Logger
}

// NewRoom makes a new room; Run must be called for it to serve clients
func NewRoom(logger *slog.Logger) *Room {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Room{
		forward: make(chan []byte, messageBufferSize),
		join:    make(chan *client),
		leave:   make(chan *client),
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run serves joins, leaves and broadcasts until ctx is done
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	defer func() {
		for c := range r.clients {
			close(c.send)
		}
		clear(r.clients)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-r.join:
			r.clients[c] = struct{}{}
			r.logger.Info("client joined", slog.Int("clients", len(r.clients)))

		case c := <-r.leave:
			if _, ok := r.clients[c]; ok {
				delete(r.clients, c)
				close(c.send)
				r.logger.Info("client left", slog.Int("clients", len(r.clients)))
			}

		case msg := <-r.forward:
			for c := range r.clients {
				select {
				case c.send <- msg:
				default:
					r.logger.Debug("client too slow, message skipped")
				}
			}
		}
	}
}

// Emit broadcasts a reading; it is dropped when the room is not keeping up
func (r *Room) Emit(ctx context.Context, reading angle.Reading) error {
	msg, err := json.Marshal(NewMessage(reading))
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}

	select {
	case r.forward <- msg:
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	default:
		r.logger.Debug("room busy, reading skipped")
	}
	return nil
}

// Close is a no-op; the room stops with the context passed to Run
func (r *Room) Close() error {
	return nil
}

func (r *Room) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn(fmt.Sprintf("upgrading connection: %s", err.Error()))
		return
	}

	c := &client{
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
	}

	select {
	case r.join <- c:
	case <-r.done:
		_ = socket.Close()
		return
	}

	go c.write()
	c.read()

	select {
	case r.leave <- c:
	case <-r.done:
	}
}

// read drains the client until it disconnects; clients do not send anything
func (c *client) read() {
	defer c.socket.Close()

	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) write() {
	defer c.socket.Close()

	for msg := range c.send {
		_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// NewHandler routes /ws to the room and /angle to the latest reading
func NewHandler(room *Room, latest telemetry.Provider) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", room)
	mux.HandleFunc("/angle", func(w http.ResponseWriter, req *http.Request) {
		r := latest.Get()
		if r == nil {
			http.Error(w, "no reading yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(NewMessage(*r))
	})
	return mux
}
