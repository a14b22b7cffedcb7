package duplex

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// ResponseHandler is the one-shot completion callback of a request.
type ResponseHandler func(payload Payload)

// PendingRequest is an in-flight request waiting for its acknowledgment.
type PendingRequest struct {
	ID      ID
	Topic   string
	Handler ResponseHandler
}

// CorrelationTable maps the id of an in-flight request to its completion handler.
//
// Responses only echo the id back, so the table is indexed by id. The topic is kept on each entry
// for diagnostics. A nil handler is allowed for requests whose acknowledgment only needs to be consumed.
type CorrelationTable struct {
	entries *xsync.MapOf[ID, *PendingRequest]
}

// NewCorrelationTable creates an empty CorrelationTable.
func NewCorrelationTable() *CorrelationTable {
	return &CorrelationTable{entries: xsync.NewMapOf[ID, *PendingRequest]()}
}

// Insert registers handler for id under topic.
// It returns false, keeping the existing entry, when id is already registered.
func (t *CorrelationTable) Insert(topic string, id ID, handler ResponseHandler) bool {
	_, loaded := t.entries.LoadOrStore(id, &PendingRequest{ID: id, Topic: topic, Handler: handler})
	return !loaded
}

// FindAndRemove removes the entry for id and returns its handler.
// found is false when no entry matches; the handler of a found entry may still be nil.
func (t *CorrelationTable) FindAndRemove(id ID) (handler ResponseHandler, found bool) {
	req, ok := t.entries.LoadAndDelete(id)
	if !ok {
		return nil, false
	}

	return req.Handler, true
}

// Remove removes the entry for id without invoking its handler.
func (t *CorrelationTable) Remove(id ID) bool {
	_, ok := t.entries.LoadAndDelete(id)
	return ok
}

// Get returns the entry for id.
func (t *CorrelationTable) Get(id ID) (*PendingRequest, bool) {
	return t.entries.Load(id)
}

// Clear discards every entry and returns how many were discarded. Handlers are not invoked.
func (t *CorrelationTable) Clear() int {
	n := t.entries.Size()
	t.entries.Clear()

	return n
}

// Len returns the number of in-flight requests.
func (t *CorrelationTable) Len() int {
	return t.entries.Size()
}

// Topics returns the number of in-flight requests per topic.
func (t *CorrelationTable) Topics() map[string]int {
	topics := make(map[string]int)
	t.entries.Range(func(_ ID, req *PendingRequest) bool {
		topics[req.Topic]++
		return true
	})

	return topics
}
