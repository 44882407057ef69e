package jobs

import "sync"

// SubscriberRegistry maps job ids to the set of live subscriber channels.
// It never holds an empty set: the last Unsubscribe for a job id prunes the
// entry.
type SubscriberRegistry struct {
	mu   sync.RWMutex
	subs map[string]map[Subscriber]struct{}
}

// NewSubscriberRegistry creates an empty SubscriberRegistry.
func NewSubscriberRegistry() *SubscriberRegistry {
	return &SubscriberRegistry{subs: make(map[string]map[Subscriber]struct{})}
}

// Subscribe adds sub to the set for jobID, creating the set if absent.
func (s *SubscriberRegistry) Subscribe(jobID string, sub Subscriber) {
	if jobID == "" || sub == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subs[jobID]
	if !ok {
		set = make(map[Subscriber]struct{})
		s.subs[jobID] = set
	}
	set[sub] = struct{}{}
}

// Unsubscribe removes sub from the set for jobID and prunes the set when it
// becomes empty.
func (s *SubscriberRegistry) Unsubscribe(jobID string, sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subs[jobID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(s.subs, jobID)
	}
}

// Broadcast delivers event to every subscriber currently registered for
// jobID. An absent set is a no-op: all clients may legitimately have
// disconnected. The set is snapshotted under the lock and delivery happens
// outside it, so a subscribe or unsubscribe during delivery cannot race.
func (s *SubscriberRegistry) Broadcast(jobID string, event StatusEvent) {
	s.mu.RLock()
	set := s.subs[jobID]
	snapshot := make([]Subscriber, 0, len(set))
	for sub := range set {
		snapshot = append(snapshot, sub)
	}
	s.mu.RUnlock()

	for _, sub := range snapshot {
		sub.Notify(event)
	}
}

// Count reports the number of subscribers for jobID.
func (s *SubscriberRegistry) Count(jobID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[jobID])
}
