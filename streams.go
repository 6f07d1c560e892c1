package lendflow

import (
	"sync"

	"github.com/aretw0/lendflow/pkg/domain"
)

// subscriberBuffer is how many diffs a slow subscriber may lag before diffs are dropped.
const subscriberBuffer = 10

// streams fans conversation diffs out to subscribers.
type streams struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *domain.SessionDiff]struct{} // conversation id -> set of channels
}

func newStreams() *streams {
	return &streams{
		subscribers: make(map[string]map[chan *domain.SessionDiff]struct{}),
	}
}

func (s *streams) subscribe(conversationID string) (<-chan *domain.SessionDiff, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *domain.SessionDiff, subscriberBuffer)
	if _, ok := s.subscribers[conversationID]; !ok {
		s.subscribers[conversationID] = make(map[chan *domain.SessionDiff]struct{})
	}
	s.subscribers[conversationID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if subs, ok := s.subscribers[conversationID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(s.subscribers, conversationID)
				}
			}
		})
	}
}

// broadcast never blocks: a full subscriber misses the diff.
func (s *streams) broadcast(conversationID string, diff *domain.SessionDiff) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subscribers[conversationID] {
		select {
		case ch <- diff:
		default:
		}
	}
}

func (s *streams) count(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers[conversationID])
}
