package input

import (
	"cmp"
	"slices"
	"time"
)

type deadline struct {
	at  time.Time
	seq uint64
}

// Scheduler keeps at most one absolute deadline per key.
//
// Arming a key replaces its previous deadline. Expired returns every key whose
// deadline is due, ordered by deadline and then by the order in which the keys
// were (re-)armed, and forgets them.
type Scheduler[K comparable] struct {
	entries map[K]deadline
	seq     uint64
}

func NewScheduler[K comparable]() *Scheduler[K] {
	return &Scheduler[K]{entries: make(map[K]deadline)}
}

// Arm sets k's deadline to now+d. A negative d is a configuration error and
// leaves any existing deadline untouched.
func (s *Scheduler[K]) Arm(k K, now time.Time, d time.Duration) error {
	if d < 0 {
		return configErrorf("timeout must not be negative (got %s)", d)
	}
	s.seq++
	s.entries[k] = deadline{at: now.Add(d), seq: s.seq}
	return nil
}

func (s *Scheduler[K]) Cancel(k K) { delete(s.entries, k) }

// Deadline reports k's armed deadline.
func (s *Scheduler[K]) Deadline(k K) (time.Time, bool) {
	e, ok := s.entries[k]
	return e.at, ok
}

// Next returns the earliest armed deadline.
func (s *Scheduler[K]) Next() (time.Time, bool) {
	var (
		next time.Time
		ok   bool
	)
	for _, e := range s.entries {
		if !ok || e.at.Before(next) {
			next, ok = e.at, true
		}
	}
	return next, ok
}

// Expired removes and returns the keys due at now.
func (s *Scheduler[K]) Expired(now time.Time) []K {
	type due struct {
		key K
		deadline
	}
	var fired []due
	for k, e := range s.entries {
		if !e.at.After(now) {
			fired = append(fired, due{key: k, deadline: e})
		}
	}
	if len(fired) == 0 {
		return nil
	}
	slices.SortFunc(fired, func(a, b due) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	out := make([]K, len(fired))
	for i, f := range fired {
		delete(s.entries, f.key)
		out[i] = f.key
	}
	return out
}

func (s *Scheduler[K]) Len() int { return len(s.entries) }
