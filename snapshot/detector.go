package snapshot

import "time"

// Detector keeps previously accepted snapshot and decides which captures to emit.
// With Debounce>0 changed candidate must persist that long before acceptance.
// Not thread-safe, owned by sampler goroutine.
type Detector struct {
	Schema      Schema
	Debounce    time.Duration
	EmitInitial bool

	accepted     Snapshot
	hasAccepted  bool
	candidate    Snapshot
	hasCandidate bool
}

// Offer returns true when cur is accepted as new state and must be emitted.
// First capture becomes baseline and is emitted only with EmitInitial.
func (d *Detector) Offer(cur Snapshot) bool {
	if !d.hasAccepted {
		d.accepted, d.hasAccepted = cur, true
		return d.EmitInitial
	}
	if !Changed(d.accepted, cur, d.Schema) {
		d.hasCandidate = false
		return false
	}
	if d.Debounce <= 0 {
		d.accepted = cur
		return true
	}
	if !d.hasCandidate || Changed(d.candidate, cur, d.Schema) {
		d.candidate, d.hasCandidate = cur, true
		return false
	}
	if cur.Time.Sub(d.candidate.Time) < d.Debounce {
		return false
	}
	d.accepted, d.hasCandidate = cur, false
	return true
}

// Last returns previously accepted snapshot.
func (d *Detector) Last() (Snapshot, bool) { return d.accepted, d.hasAccepted }

func (d *Detector) Reset() {
	*d = Detector{Schema: d.Schema, Debounce: d.Debounce, EmitInitial: d.EmitInitial}
}
