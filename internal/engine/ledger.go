package engine

import "sync"

// Ledger is the append-only per-session coherence history. Sessions are
// keyed by caller-supplied identity, created on first use and never
// evicted by the core; expiry is the owning collaborator's concern.
type Ledger struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// session serializes turn assignment and history appends for one session.
// Its mutex is held across a whole Process call, so concurrent calls for
// the same session cannot produce duplicate or out-of-order turn numbers;
// calls for different sessions never contend on it.
type session struct {
	mu        sync.Mutex
	turn      int
	coherence []float64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{sessions: make(map[string]*session)}
}

// acquire returns the session for id, creating it on first use.
func (l *Ledger) acquire(id string) *session {
	l.mu.RLock()
	s, ok := l.sessions[id]
	l.mu.RUnlock()
	if ok {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.sessions[id]; ok {
		return s
	}
	s = &session{}
	l.sessions[id] = s
	return s
}

// History returns a copy of the session's coherence sequence in call
// order. An unknown session yields an empty slice.
func (l *Ledger) History(id string) []float64 {
	l.mu.RLock()
	s, ok := l.sessions[id]
	l.mu.RUnlock()
	if !ok {
		return []float64{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.coherence))
	copy(out, s.coherence)
	return out
}

// Sessions returns the known session identities.
func (l *Ledger) Sessions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	return ids
}

// nextTurn assigns the next turn number. Caller must hold s.mu.
func (s *session) nextTurn() int {
	s.turn++
	return s.turn
}

// append records a coherence value. Caller must hold s.mu.
func (s *session) append(v float64) {
	s.coherence = append(s.coherence, v)
}
