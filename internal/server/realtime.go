package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
	"github.com/gin-gonic/gin"
)

const (
	RealtimeEventApprovalChanged = "approval-change"
	RealtimeEventPhotoAppended   = "photo-append"
	realtimeEventHeartbeat       = "heartbeat"
	realtimeSourceBackend        = "photoreview-backend"
)

type RealtimeMessage struct {
	EventType string
	PhotoIDs  []string
	Approved  bool
	Reviewer  string
	Bulk      bool
	Timestamp time.Time
}

type realtimeEventPayload struct {
	PhotoIDs  []string `json:"photoIds"`
	Approved  bool     `json:"approved"`
	Reviewer  string   `json:"reviewer,omitempty"`
	Bulk      bool     `json:"bulk"`
	Timestamp string   `json:"timestamp"`
	Source    string   `json:"source"`
}

// RealtimeDispatcher fans change events out to every open dashboard stream.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

var _ photos.ChangeObserver = (*RealtimeDispatcher)(nil)

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream that lives until ctx is done or cleanup is called.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan RealtimeMessage, func()) {
	subscriber := &realtimeSubscriber{
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish never blocks; a subscriber with a full buffer misses the message.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	if len(d.subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// ObserveChange publishes the change to the open streams.
func (d *RealtimeDispatcher) ObserveChange(_ context.Context, change photos.Change) error {
	eventType := RealtimeEventApprovalChanged
	if change.Action == photos.ChangeActionAppend {
		eventType = RealtimeEventPhotoAppended
	}
	d.Publish(RealtimeMessage{
		EventType: eventType,
		PhotoIDs:  []string{change.PhotoID},
		Approved:  change.Approved,
		Reviewer:  change.Reviewer,
		Bulk:      change.Bulk,
		Timestamp: change.AppliedAt,
	})
	return nil
}

func (d *RealtimeDispatcher) subscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

func (d *RealtimeDispatcher) registerSubscriber(subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	subscriber.id = d.nextID
	d.subscribers[subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}

func (h *httpHandler) handleEventStream(c *gin.Context) {
	if h.realtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime_unavailable"})
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx)
	defer cleanup()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent(message.EventType, newRealtimeEventPayload(message))
			c.Writer.Flush()
		case tick := <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{
				"timestamp": tick.UTC().Format(time.RFC3339),
				"source":    realtimeSourceBackend,
			})
			c.Writer.Flush()
		}
	}
}

func newRealtimeEventPayload(message RealtimeMessage) realtimeEventPayload {
	timestamp := message.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	return realtimeEventPayload{
		PhotoIDs:  message.PhotoIDs,
		Approved:  message.Approved,
		Reviewer:  message.Reviewer,
		Bulk:      message.Bulk,
		Timestamp: timestamp.UTC().Format(time.RFC3339),
		Source:    realtimeSourceBackend,
	}
}
