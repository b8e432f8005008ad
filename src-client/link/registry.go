// Package link maintains the bijective todo <-> event mapping. Both
// directions live behind one mutex and are always mutated together; it is
// never valid for one direction to exist without the other.
package link

import "sync"

// Link is one persisted todo <-> event pair.
type Link struct {
	TodoID  string
	EventID string
}

// Registry is the in-memory bidirectional mapping. An optional orphan
// callback lets the owner schedule removal of the companion entity when a
// link is severed from the todo side.
type Registry struct {
	mu          sync.Mutex
	todoToEvent map[string]string
	eventToTodo map[string]string
	onOrphan    func(eventID string)
}

func NewRegistry() *Registry {
	return &Registry{
		todoToEvent: make(map[string]string),
		eventToTodo: make(map[string]string),
	}
}

// OnOrphan registers the callback invoked with the event id left behind
// when UnlinkTodo severs a pair.
func (r *Registry) OnOrphan(fn func(eventID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOrphan = fn
}

// Bind records the pair in both directions, replacing any stale mapping
// either side had.
func (r *Registry) Bind(todoID, eventID string) {
	if todoID == "" || eventID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.todoToEvent[todoID]; ok && prev != eventID {
		delete(r.eventToTodo, prev)
	}
	if prev, ok := r.eventToTodo[eventID]; ok && prev != todoID {
		delete(r.todoToEvent, prev)
	}
	r.todoToEvent[todoID] = eventID
	r.eventToTodo[eventID] = todoID
}

// UnlinkEvent severs the pair from the event side, returning the todo id
// that was linked, if any.
func (r *Registry) UnlinkEvent(eventID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	todoID, ok := r.eventToTodo[eventID]
	if !ok {
		return "", false
	}
	delete(r.eventToTodo, eventID)
	delete(r.todoToEvent, todoID)
	return todoID, true
}

// UnlinkTodo severs the pair from the todo side and schedules the orphan
// callback for the companion event.
func (r *Registry) UnlinkTodo(todoID string) (string, bool) {
	r.mu.Lock()
	eventID, ok := r.todoToEvent[todoID]
	if ok {
		delete(r.todoToEvent, todoID)
		delete(r.eventToTodo, eventID)
	}
	onOrphan := r.onOrphan
	r.mu.Unlock()
	if ok && onOrphan != nil {
		onOrphan(eventID)
	}
	return eventID, ok
}

// Rebind moves the event side of a link to a new id, used when a
// temporary id is replaced by the server id.
func (r *Registry) Rebind(oldEventID, newEventID string) {
	if oldEventID == "" || newEventID == "" || oldEventID == newEventID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	todoID, ok := r.eventToTodo[oldEventID]
	if !ok {
		return
	}
	delete(r.eventToTodo, oldEventID)
	r.eventToTodo[newEventID] = todoID
	r.todoToEvent[todoID] = newEventID
}

func (r *Registry) EventForTodo(todoID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eventID, ok := r.todoToEvent[todoID]
	return eventID, ok
}

func (r *Registry) TodoForEvent(eventID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	todoID, ok := r.eventToTodo[eventID]
	return todoID, ok
}

// Hydrate replaces the registry contents from persisted links.
func (r *Registry) Hydrate(links []Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.todoToEvent = make(map[string]string, len(links))
	r.eventToTodo = make(map[string]string, len(links))
	for _, l := range links {
		if l.TodoID == "" || l.EventID == "" {
			continue
		}
		r.todoToEvent[l.TodoID] = l.EventID
		r.eventToTodo[l.EventID] = l.TodoID
	}
}

// All returns a copy of every pair.
func (r *Registry) All() []Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Link, 0, len(r.todoToEvent))
	for todoID, eventID := range r.todoToEvent {
		out = append(out, Link{TodoID: todoID, EventID: eventID})
	}
	return out
}
