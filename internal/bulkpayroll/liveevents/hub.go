package liveevents

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

var (
	ErrHubUnavailable = errors.New("hub_unavailable")
	ErrInvalidBatchID = errors.New("invalid_batch_id")
)

// Hub fans batch progress out to live subscribers, keeping a short replay buffer per batch.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []domain.Progress
	subs   map[uint64]chan domain.Progress
	nextID uint64
}

type Subscription struct {
	hub     *Hub
	batchID string
	id      uint64
	ch      chan domain.Progress
	once    sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Listener exposes the hub as the pipeline's progress callback.
func Listener(h *Hub) domain.ProgressListener {
	return h
}

func (h *Hub) OnProgress(_ context.Context, progress domain.Progress) {
	h.Publish(progress.BatchID.String(), progress)
}

// Publish drops the event for subscribers whose channel is full; they catch up on the next one.
func (h *Hub) Publish(batchID string, event domain.Progress) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(batchID)
	if key == "" {
		return
	}
	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, event)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan domain.Progress, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribe(batchID string) (*Subscription, []domain.Progress, error) {
	if h == nil {
		return nil, nil, ErrHubUnavailable
	}
	key := strings.TrimSpace(batchID)
	if key == "" {
		return nil, nil, ErrInvalidBatchID
	}

	stream := h.ensureStream(key)
	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan domain.Progress)
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan domain.Progress, h.subscriberBuffer)
	stream.subs[id] = ch
	buffer := append([]domain.Progress(nil), stream.buffer...)
	stream.mu.Unlock()

	return &Subscription{
		hub:     h,
		batchID: key,
		id:      id,
		ch:      ch,
	}, buffer, nil
}

func (h *Hub) ensureStream(batchID string) *stream {
	h.mu.RLock()
	current := h.streams[batchID]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[batchID]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan domain.Progress)}
		h.streams[batchID] = current
	}
	return current
}

func (h *Hub) unsubscribe(batchID string, id uint64) {
	if h == nil || batchID == "" {
		return
	}

	h.mu.RLock()
	stream := h.streams[batchID]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	delete(stream.subs, id)
	remaining := len(stream.subs)
	stream.mu.Unlock()
	if remaining != 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams[batchID] != stream {
		return
	}
	stream.mu.Lock()
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, batchID)
	}
}

func (s *Subscription) Events() <-chan domain.Progress {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.batchID, s.id)
	})
}
