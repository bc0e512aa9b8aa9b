package script

import (
	"fmt"
	"sync"
	"time"
)

// AccountingStore holds the call counter and audit log of one execution.
//
// Contract:
// - TryIncrement never mutates the log; when it returns false the counter is unchanged.
// - Append preserves call order.
// - Records returns a copy.
type AccountingStore interface {
	// TryIncrement admits one more call if the count is below limit.
	TryIncrement(limit int) bool

	// Append adds a record to the end of the log.
	Append(rec ToolCallRecord)

	// Records returns a copy of the log in invocation order.
	Records() []ToolCallRecord

	// Count returns the number of admitted calls.
	Count() int
}

// Accounting selects the AccountingStore implementation used for each
// execution.
type Accounting int

const (
	// AccountingShared uses a lock-guarded store. Use it when handlers may
	// run on other goroutines or the host executes scripts concurrently.
	AccountingShared Accounting = iota

	// AccountingCooperative uses a plain single-owner store. Use it only
	// when one goroutine drives each execution from start to finish.
	AccountingCooperative
)

// String returns the strategy name.
func (a Accounting) String() string {
	switch a {
	case AccountingShared:
		return "shared"
	case AccountingCooperative:
		return "cooperative"
	}
	return fmt.Sprintf("accounting(%d)", int(a))
}

// ParseAccounting resolves a strategy name.
func ParseAccounting(s string) (Accounting, error) {
	switch s {
	case "", "shared":
		return AccountingShared, nil
	case "cooperative":
		return AccountingCooperative, nil
	}
	return 0, fmt.Errorf("%w: unknown accounting strategy %q", ErrConfiguration, s)
}

// storeFactory returns the constructor for a, fixed at orchestrator construction.
func (a Accounting) storeFactory() func() AccountingStore {
	if a == AccountingCooperative {
		return NewCooperativeStore
	}
	return NewSharedStore
}

// sharedStore guards its state with a mutex.
type sharedStore struct {
	mu    sync.Mutex
	count int
	log   []ToolCallRecord
}

// NewSharedStore returns a thread-safe AccountingStore.
func NewSharedStore() AccountingStore {
	return &sharedStore{}
}

func (s *sharedStore) TryIncrement(limit int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count >= limit {
		return false
	}
	s.count++
	return true
}

func (s *sharedStore) Append(rec ToolCallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, rec)
}

func (s *sharedStore) Records() []ToolCallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolCallRecord, len(s.log))
	copy(out, s.log)
	return out
}

func (s *sharedStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// cooperativeStore is owned by a single goroutine.
type cooperativeStore struct {
	count int
	log   []ToolCallRecord
}

// NewCooperativeStore returns an AccountingStore without synchronization.
// It must not be shared across goroutines.
func NewCooperativeStore() AccountingStore {
	return &cooperativeStore{}
}

func (s *cooperativeStore) TryIncrement(limit int) bool {
	if s.count >= limit {
		return false
	}
	s.count++
	return true
}

func (s *cooperativeStore) Append(rec ToolCallRecord) {
	s.log = append(s.log, rec)
}

func (s *cooperativeStore) Records() []ToolCallRecord {
	out := make([]ToolCallRecord, len(s.log))
	copy(out, s.log)
	return out
}

func (s *cooperativeStore) Count() int { return s.count }

// Phase is the lifecycle state of a Session.
type Phase int

// Session phases.
const (
	PhaseIdle Phase = iota
	PhaseCompiling
	PhaseEvaluating
	PhaseCompleted
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCompiling:
		return "compiling"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether p is Completed or Failed.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Session is the per-execution state: accounting store, limits, start time
// and lifecycle phase. A Session is created for one Execute call and
// discarded at its end.
type Session struct {
	store  AccountingStore
	limits ExecutionLimits
	start  time.Time
	phase  Phase
}

// NewSession starts a session at the current time.
func NewSession(store AccountingStore, limits ExecutionLimits) *Session {
	return &Session{store: store, limits: limits, start: time.Now()}
}

// Limits returns the limits for this session.
func (s *Session) Limits() ExecutionLimits { return s.limits }

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration { return time.Since(s.start) }

// Deadline returns the wall-clock instant the timeout expires.
func (s *Session) Deadline() time.Time { return s.start.Add(s.limits.Timeout) }

// TimedOut reports whether the wall-clock budget is spent.
func (s *Session) TimedOut() bool { return s.Elapsed() > s.limits.Timeout }

// Admit counts one tool call against MaxToolCalls.
func (s *Session) Admit() bool { return s.store.TryIncrement(s.limits.MaxToolCalls) }

// Record appends rec to the audit log.
func (s *Session) Record(rec ToolCallRecord) { s.store.Append(rec) }

// Calls returns the audit log.
func (s *Session) Calls() []ToolCallRecord { return s.store.Records() }

// Transition moves the session to next. Only the forward edges
// Idle→Compiling→Evaluating→Completed and any non-terminal phase→Failed
// are allowed.
func (s *Session) Transition(next Phase) error {
	ok := false
	switch next {
	case PhaseCompiling:
		ok = s.phase == PhaseIdle
	case PhaseEvaluating:
		ok = s.phase == PhaseCompiling
	case PhaseCompleted:
		ok = s.phase == PhaseEvaluating
	case PhaseFailed:
		ok = !s.phase.Terminal()
	}
	if !ok {
		return fmt.Errorf("invalid session transition %s -> %s", s.phase, next)
	}
	s.phase = next
	return nil
}
