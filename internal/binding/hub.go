package binding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-curriculum/internal/upload"
)

const (
	writeTimeout    = 10 * time.Second
	subscriberQueue = 32
)

// Frame types sent to websocket subscribers.
const (
	FrameField  = "field"
	FrameUpload = "upload"
)

// Frame is one websocket message.
type Frame struct {
	Type   string              `json:"type"`
	Field  string              `json:"field,omitempty"`
	Value  any                 `json:"value,omitempty"`
	Upload *upload.LessonState `json:"upload,omitempty"`
}

// Hub holds one Room per editing session.
type Hub struct {
	opts *websocket.AcceptOptions

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewHub creates a hub. originPatterns lists the dashboard hosts allowed to
// open cross-origin websockets.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{
		opts:  &websocket.AcceptOptions{OriginPatterns: originPatterns},
		rooms: make(map[string]*Room),
	}
}

// Room returns the room for sessionID, creating it on first use.
func (h *Hub) Room(sessionID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[sessionID]
	if !ok {
		r = newRoom(sessionID)
		h.rooms[sessionID] = r
	}
	return r
}

// Drop closes every subscriber of sessionID and forgets the room.
func (h *Hub) Drop(sessionID string) {
	h.mu.Lock()
	r, ok := h.rooms[sessionID]
	delete(h.rooms, sessionID)
	h.mu.Unlock()
	if ok {
		r.close()
	}
}

// Serve upgrades the request and streams the room's frames until the client
// goes away or the room is dropped. Messages from the client are discarded.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) error {
	c, err := websocket.Accept(w, r, h.opts)
	if err != nil {
		return fmt.Errorf("accepting websocket: %w", err)
	}
	defer c.CloseNow()

	frames, unsubscribe := h.Room(sessionID).Subscribe()
	defer unsubscribe()

	ctx := c.CloseRead(r.Context())
	slog.Debug("form subscriber connected", "session_id", sessionID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				c.Close(websocket.StatusGoingAway, "session closed")
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c, f)
			cancel()
			if err != nil {
				return fmt.Errorf("writing %s frame: %w", f.Type, err)
			}
		}
	}
}

// Room fans field and upload updates out to a session's subscribers. It
// implements FieldRegistry and upload.StatusSink.
type Room struct {
	id string

	mu     sync.Mutex
	fields map[string]any
	subs   map[chan Frame]struct{}
	closed bool
}

func newRoom(id string) *Room {
	return &Room{
		id:     id,
		fields: make(map[string]any),
		subs:   make(map[chan Frame]struct{}),
	}
}

func (r *Room) SetField(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[key] = value
	r.broadcast(Frame{Type: FrameField, Field: key, Value: value})
}

func (r *Room) Field(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.fields[key]
	return v, ok
}

// Publish sends an upload state frame.
func (r *Room) Publish(_ context.Context, st upload.LessonState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast(Frame{Type: FrameUpload, Upload: &st})
	return nil
}

// Subscribe returns a channel that first receives the current value of every
// field and then every later frame. The channel is closed when the room is
// dropped or the subscriber falls too far behind.
func (r *Room) Subscribe() (<-chan Frame, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Frame, subscriberQueue)
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	for k, v := range r.fields {
		ch <- Frame{Type: FrameField, Field: k, Value: v}
	}
	r.subs[ch] = struct{}{}

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[ch]; ok {
			delete(r.subs, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (r *Room) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// broadcast must be called with r.mu held.
func (r *Room) broadcast(f Frame) {
	for ch := range r.subs {
		select {
		case ch <- f:
		default:
			slog.Warn("dropping slow form subscriber", "session_id", r.id, "frame", f.Type)
			delete(r.subs, ch)
			close(ch)
		}
	}
}

func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for ch := range r.subs {
		delete(r.subs, ch)
		close(ch)
	}
}
