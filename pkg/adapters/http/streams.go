package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/domain"
)

// GlobalTopic receives lifecycle events not tied to a session.
const GlobalTopic = "*"

// StreamManager fans messages out to SSE subscribers by topic.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for topic. The returned function
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(topic string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			subs := sm.subscribers[topic]
			if _, ok := subs[ch]; !ok {
				// Already closed by Close.
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, topic)
			}
		})
	}
}

// Subscribers reports how many channels listen on topic.
func (sm *StreamManager) Subscribers(topic string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[topic])
}

// Broadcast sends msg to every subscriber of topic. Slow clients drop messages.
func (sm *StreamManager) Broadcast(topic, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "topic", topic)
		}
	}
}

// Close ends every subscription. Subscribing afterwards still works.
func (sm *StreamManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for topic, subs := range sm.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(sm.subscribers, topic)
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (sm *StreamManager) BroadcastJSON(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sm.logger.Warn("SSE: failed to encode event", "err", err)
		return
	}
	sm.Broadcast(topic, string(data))
}

// Hooks publishes orchestrator, tool and saga events on GlobalTopic.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	run := func(_ context.Context, e *domain.RunEvent) { sm.BroadcastJSON(GlobalTopic, e) }
	tool := func(_ context.Context, e *domain.ToolEvent) { sm.BroadcastJSON(GlobalTopic, e) }
	saga := func(_ context.Context, e *domain.SagaEvent) { sm.BroadcastJSON(GlobalTopic, e) }
	return domain.LifecycleHooks{
		OnRunPaused:    run,
		OnRunCompleted: run,
		OnToolCall:     tool,
		OnToolReturn:   tool,
		OnSagaStep:     saga,
		OnSagaFinished: saga,
	}
}
