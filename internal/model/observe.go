package model

import (
	"slices"
	"sync"
)

type ChangeKind int

const (
	ChangeSequence ChangeKind = iota
	ChangeTrack
	ChangeNotes
	ChangeTempo
	ChangeArrangementTrack
	ChangeClip
	ChangeActiveSequence
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeSequence:
		return "sequence"
	case ChangeTrack:
		return "track"
	case ChangeNotes:
		return "notes"
	case ChangeTempo:
		return "tempo"
	case ChangeArrangementTrack:
		return "arrangement-track"
	case ChangeClip:
		return "clip"
	case ChangeActiveSequence:
		return "active-sequence"
	default:
		return "unknown"
	}
}

// Change describes one mutation. ID is the entity that changed.
type Change struct {
	Kind ChangeKind
	ID   int
}

// Observers is a registry of change callbacks. Callbacks run synchronously
// on the mutating goroutine after the project lock is released.
type Observers struct {
	mu   sync.Mutex
	next int
	subs []subscription
}

type subscription struct {
	id int
	fn func(Change)
}

// Subscribe registers fn and returns a function that removes it.
func (o *Observers) Subscribe(fn func(Change)) (unsubscribe func()) {
	o.mu.Lock()
	o.next++
	id := o.next
	o.subs = append(o.subs, subscription{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			o.subs = slices.DeleteFunc(o.subs, func(s subscription) bool { return s.id == id })
			o.mu.Unlock()
		})
	}
}

func (o *Observers) Notify(c Change) {
	o.mu.Lock()
	subs := slices.Clone(o.subs)
	o.mu.Unlock()
	for _, s := range subs {
		s.fn(c)
	}
}
