package collector

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// subscriberBuffer is how many records a slow stream client may lag
// before records are dropped for it
const subscriberBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Development collector, any origin
	},
}

// StreamMessage is one frame on the live trace stream
type StreamMessage struct {
	Type      string  `json:"type"`
	Message   string  `json:"message,omitempty"`
	Record    *Record `json:"record,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

type subscription struct {
	facilitatorID string
	records       chan Record
}

// feed fans accepted records out to live stream subscribers
type feed struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[*subscription]struct{})}
}

func (f *feed) subscribe(facilitatorID string) *subscription {
	s := &subscription{facilitatorID: facilitatorID, records: make(chan Record, subscriberBuffer)}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	return s
}

func (f *feed) unsubscribe(s *subscription) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

// publish never blocks; a full subscriber misses the record
func (f *feed) publish(records []Record) (dropped int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for s := range f.subs {
		for _, r := range records {
			if s.facilitatorID != "" && r.FacilitatorID != s.facilitatorID {
				continue
			}
			select {
			case s.records <- r:
			default:
				dropped++
			}
		}
	}
	return dropped
}

// Stream upgrades to a WebSocket and pushes every accepted record,
// optionally filtered by the facilitatorId query parameter. Clients may
// send {"type":"ping"} and get a pong back.
func (h *Handlers) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.feed.subscribe(c.Query("facilitatorId"))
	defer h.feed.unsubscribe(sub)

	// gorilla allows one concurrent reader and one writer; all writes
	// happen on this goroutine
	pings := make(chan struct{}, 1)
	unknown := make(chan string, 1)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg StreamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "ping":
				select {
				case pings <- struct{}{}:
				default:
				}
			default:
				select {
				case unknown <- msg.Type:
				default:
				}
			}
		}
	}()

	if err := h.send(conn, StreamMessage{Type: "system", Message: "Connected to TraceX collector"}); err != nil {
		return
	}

	for {
		var out StreamMessage
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-pings:
			out = StreamMessage{Type: "pong"}
		case t := <-unknown:
			out = StreamMessage{Type: "error", Message: "unknown message type: " + t}
		case r := <-sub.records:
			out = StreamMessage{Type: "trace", Record: &r}
		}
		if err := h.send(conn, out); err != nil {
			h.logger.Debug("Stream write failed", zap.Error(err))
			return
		}
	}
}

func (h *Handlers) send(conn *websocket.Conn, msg StreamMessage) error {
	msg.Timestamp = h.now().UnixMilli()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}
