// Package ledger tracks the resources a run has visited and how many records it has persisted.
package ledger

import (
	"scout-agent/internal/domain/entity"
)

// Ledger is owned by a single run. Resource IDs are matched exactly, without normalization.
type Ledger struct {
	visits    map[string]*entity.VisitRecord
	order     []string
	explored  map[string]bool
	persisted int
}

func New() *Ledger {
	return &Ledger{
		visits:   make(map[string]*entity.VisitRecord),
		explored: make(map[string]bool),
	}
}

// Record stores the relevance reported for a resource at the given plan step.
// A repeated report overwrites the relevance but keeps the step it was first seen at.
// It returns true when the resource was not known before.
func (l *Ledger) Record(resourceID string, relevance entity.Relevance, step int) bool {
	if resourceID == "" {
		return false
	}
	if v, ok := l.visits[resourceID]; ok {
		v.Relevance = relevance
		return false
	}
	l.visits[resourceID] = &entity.VisitRecord{
		ResourceID:    resourceID,
		Relevance:     relevance,
		FirstSeenStep: step,
	}
	l.order = append(l.order, resourceID)
	return true
}

func (l *Ledger) Lookup(resourceID string) (entity.VisitRecord, bool) {
	v, ok := l.visits[resourceID]
	if !ok {
		return entity.VisitRecord{}, false
	}
	return *v, true
}

// AddPersisted adds to the run's persisted record count. Negative deltas are ignored.
func (l *Ledger) AddPersisted(n int) {
	if n > 0 {
		l.persisted += n
	}
}

func (l *Ledger) Persisted() int {
	return l.persisted
}

func (l *Ledger) Len() int {
	return len(l.order)
}

// Records returns a copy of every visit in first-seen order.
func (l *Ledger) Records() []entity.VisitRecord {
	out := make([]entity.VisitRecord, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.visits[id])
	}
	return out
}

// Relevant returns the currently relevant resources in first-seen order.
func (l *Ledger) Relevant() []string {
	var out []string
	for _, id := range l.order {
		if l.visits[id].Relevance == entity.Relevant {
			out = append(out, id)
		}
	}
	return out
}

// MarkExplored records that a resource has been handed to a step, either as its target or as a hint.
func (l *Ledger) MarkExplored(resourceID string) {
	if resourceID != "" {
		l.explored[resourceID] = true
	}
}

func (l *Ledger) IsExplored(resourceID string) bool {
	return l.explored[resourceID]
}

// Unexplored returns relevant resources no step has been given yet.
func (l *Ledger) Unexplored() []string {
	var out []string
	for _, id := range l.Relevant() {
		if !l.explored[id] {
			out = append(out, id)
		}
	}
	return out
}
