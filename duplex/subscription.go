package duplex

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// UpdateHandler is the repeatable callback of a subscription. It receives the update value of every
// matching "update" frame.
type UpdateHandler func(update Payload)

// Subscription is a registered topic subscription.
type Subscription struct {
	ID      ID
	Topic   string
	Handler UpdateHandler
}

// legacyEvents are event names that older endpoints and devices still use for the "data" event.
var legacyEvents = map[string]struct{}{
	"deviceSummary": {},
	"deviceParms":   {},
}

// CanonicalEvent maps legacy event names to "data" and returns other names unchanged.
func CanonicalEvent(event string) string {
	if _, ok := legacyEvents[event]; ok {
		return "data"
	}

	return event
}

// TopicKey composes the registry key of an event and a path: canonical event, "/", path.
func TopicKey(event string, path string) string {
	return CanonicalEvent(event) + "/" + path
}

// SubscriptionRegistry maps topic keys to repeatable handlers.
//
// Subscriptions are indexed twice: by id, for Unsubscribe, and by topic key, for update delivery.
// Several subscriptions may share a topic key; they are delivered in registration order.
type SubscriptionRegistry struct {
	byID    *xsync.MapOf[ID, *Subscription]
	mu      sync.RWMutex
	byTopic map[string][]*Subscription
}

// NewSubscriptionRegistry creates an empty SubscriptionRegistry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		byID:    xsync.NewMapOf[ID, *Subscription](),
		byTopic: make(map[string][]*Subscription),
	}
}

// Insert registers handler for topic under id.
// It returns false, keeping the existing subscription, when id is already registered.
func (r *SubscriptionRegistry) Insert(topic string, id ID, handler UpdateHandler) bool {
	sub := &Subscription{ID: id, Topic: topic, Handler: handler}
	if _, loaded := r.byID.LoadOrStore(id, sub); loaded {
		return false
	}

	r.mu.Lock()
	r.byTopic[topic] = append(r.byTopic[topic], sub)
	r.mu.Unlock()

	return true
}

// Get returns the subscription registered under id.
func (r *SubscriptionRegistry) Get(id ID) (*Subscription, bool) {
	return r.byID.Load(id)
}

// Remove unregisters the subscription with the given id.
func (r *SubscriptionRegistry) Remove(id ID) (*Subscription, bool) {
	sub, ok := r.byID.LoadAndDelete(id)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.byTopic[sub.Topic]
	for i, s := range subs {
		if s.ID == id {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(r.byTopic, sub.Topic)
	} else {
		r.byTopic[sub.Topic] = subs
	}

	return sub, true
}

// Handlers returns a snapshot of the handlers registered for topic, in registration order.
func (r *SubscriptionRegistry) Handlers(topic string) []UpdateHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.byTopic[topic]
	if len(subs) == 0 {
		return nil
	}

	handlers := make([]UpdateHandler, 0, len(subs))
	for _, s := range subs {
		if s.Handler != nil {
			handlers = append(handlers, s.Handler)
		}
	}

	return handlers
}

// Emit invokes, without removing them, every handler registered for topic and returns how many were invoked.
func (r *SubscriptionRegistry) Emit(topic string, update Payload) int {
	handlers := r.Handlers(topic)
	for _, h := range handlers {
		h(update)
	}

	return len(handlers)
}

// Len returns the number of subscriptions.
func (r *SubscriptionRegistry) Len() int {
	return r.byID.Size()
}

// Topics returns the sorted list of topic keys with at least one subscription.
func (r *SubscriptionRegistry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.byTopic))
	for topic := range r.byTopic {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	return topics
}

