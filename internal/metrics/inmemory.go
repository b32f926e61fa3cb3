package metrics

import "sync/atomic"

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered     uint64 `json:"users_registered"`
	LoginsSucceeded     uint64 `json:"logins_succeeded"`
	LoginsFailed        uint64 `json:"logins_failed"`
	TokensRejected      uint64 `json:"tokens_rejected"`
	IdentityCacheHits   uint64 `json:"identity_cache_hits"`
	IdentityCacheMisses uint64 `json:"identity_cache_misses"`
	TasksCreated        uint64 `json:"tasks_created"`
	TasksUpdated        uint64 `json:"tasks_updated"`
	TasksDeleted        uint64 `json:"tasks_deleted"`
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	usersRegistered     uint64
	loginsSucceeded     uint64
	loginsFailed        uint64
	tokensRejected      uint64
	identityCacheHits   uint64
	identityCacheMisses uint64
	tasksCreated        uint64
	tasksUpdated        uint64
	tasksDeleted        uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:     atomic.LoadUint64(&m.usersRegistered),
		LoginsSucceeded:     atomic.LoadUint64(&m.loginsSucceeded),
		LoginsFailed:        atomic.LoadUint64(&m.loginsFailed),
		TokensRejected:      atomic.LoadUint64(&m.tokensRejected),
		IdentityCacheHits:   atomic.LoadUint64(&m.identityCacheHits),
		IdentityCacheMisses: atomic.LoadUint64(&m.identityCacheMisses),
		TasksCreated:        atomic.LoadUint64(&m.tasksCreated),
		TasksUpdated:        atomic.LoadUint64(&m.tasksUpdated),
		TasksDeleted:        atomic.LoadUint64(&m.tasksDeleted),
	}
}

// IncUserRegistered increments the registration counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	atomic.AddUint64(&m.usersRegistered, 1)
}

// IncLoginSuccess increments the successful login counter.
func (m *InMemoryRecorder) IncLoginSuccess() {
	atomic.AddUint64(&m.loginsSucceeded, 1)
}

// IncLoginFailure increments the failed login counter.
func (m *InMemoryRecorder) IncLoginFailure() {
	atomic.AddUint64(&m.loginsFailed, 1)
}

// IncTokenRejected increments the rejected token counter.
func (m *InMemoryRecorder) IncTokenRejected() {
	atomic.AddUint64(&m.tokensRejected, 1)
}

// IncIdentityCacheHit increments the identity cache hit counter.
func (m *InMemoryRecorder) IncIdentityCacheHit() {
	atomic.AddUint64(&m.identityCacheHits, 1)
}

// IncIdentityCacheMiss increments the identity cache miss counter.
func (m *InMemoryRecorder) IncIdentityCacheMiss() {
	atomic.AddUint64(&m.identityCacheMisses, 1)
}

// IncTaskCreated increments the task created counter.
func (m *InMemoryRecorder) IncTaskCreated() {
	atomic.AddUint64(&m.tasksCreated, 1)
}

// IncTaskUpdated increments the task updated counter.
func (m *InMemoryRecorder) IncTaskUpdated() {
	atomic.AddUint64(&m.tasksUpdated, 1)
}

// IncTaskDeleted increments the task deleted counter.
func (m *InMemoryRecorder) IncTaskDeleted() {
	atomic.AddUint64(&m.tasksDeleted, 1)
}
