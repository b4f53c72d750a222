package jobclient

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studiofront/internal/domain"
)

// Ledger is the persistence seam the manager mirrors tracked jobs into. It
// is best-effort: save failures are logged, never surfaced.
type Ledger interface {
	Save(jobs []*domain.Job) error
	Load() ([]*domain.Job, error)
}

// Manager owns one Client per media kind plus the tracked-job mirror that
// survives restarts through the ledger. Clients never share state; the
// manager only copies their snapshots.
type Manager struct {
	clients map[domain.JobKind]*Client
	logger  zerolog.Logger

	mu     sync.Mutex
	jobs   map[string]*domain.Job
	order  []string
	ledger Ledger
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Transport                *Transport
	Ledger                   Ledger
	PollTimeout              time.Duration
	PollInterval             time.Duration
	SimulateOnTransportError bool
	Logger                   zerolog.Logger
}

// NewManager builds clients for every supported kind and warms the mirror
// from the ledger.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		clients: make(map[domain.JobKind]*Client),
		jobs:    make(map[string]*domain.Job),
		ledger:  cfg.Ledger,
		logger:  cfg.Logger,
	}
	for _, kind := range []domain.JobKind{
		domain.JobKindImage,
		domain.JobKindSpeech,
		domain.JobKindVideo,
		domain.JobKindLipSync,
	} {
		spec, err := SpecFor(kind)
		if err != nil {
			continue
		}
		m.clients[kind] = NewClient(Config{
			Transport:                cfg.Transport,
			Spec:                     spec,
			PollTimeout:              cfg.PollTimeout,
			PollInterval:             cfg.PollInterval,
			SimulateOnTransportError: cfg.SimulateOnTransportError,
			Logger:                   cfg.Logger,
			OnUpdate:                 m.track,
		})
	}
	m.restore()
	return m
}

// Client returns the client driving the given kind.
func (m *Manager) Client(kind domain.JobKind) (*Client, bool) {
	c, ok := m.clients[kind]
	return c, ok
}

// Start launches a job of the given kind.
func (m *Manager) Start(kind domain.JobKind, req Request) (*domain.Job, error) {
	c, ok := m.clients[kind]
	if !ok {
		return nil, &domain.ValidationError{Field: "kind", Reason: "unsupported job kind"}
	}
	return c.Start(req)
}

// Get returns a snapshot of a tracked job.
func (m *Manager) Get(id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns all tracked jobs, newest first.
func (m *Manager) List() []*domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Job, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if job, ok := m.jobs[m.order[i]]; ok {
			out = append(out, job.Clone())
		}
	}
	return out
}

// Forget drops a job from the mirror. The backend copy, if any, is
// untouched.
func (m *Manager) Forget(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(m.jobs, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.persistLocked()
	return nil
}

// track mirrors every client snapshot into the tracked set. When the backend
// assigns an id partway through a run, the placeholder entry for the same
// created-at instant is superseded.
func (m *Manager) track(job *domain.Job, progress int) {
	m.mu.Lock()
	if _, ok := m.jobs[job.ID]; !ok {
		// re-key if this is the backend id replacing a placeholder
		for i, oid := range m.order {
			prev, tracked := m.jobs[oid]
			if tracked && prev.Kind == job.Kind && prev.CreatedAt.Equal(job.CreatedAt) {
				delete(m.jobs, oid)
				m.order[i] = job.ID
				m.jobs[job.ID] = job
				break
			}
		}
		if _, ok := m.jobs[job.ID]; !ok {
			m.order = append(m.order, job.ID)
		}
	}
	m.jobs[job.ID] = job
	m.persistLocked()
	m.mu.Unlock()
}

// persistLocked rewrites the full mirror; callers hold m.mu.
func (m *Manager) persistLocked() {
	if m.ledger == nil {
		return
	}
	jobs := make([]*domain.Job, 0, len(m.order))
	for _, id := range m.order {
		if job, ok := m.jobs[id]; ok {
			jobs = append(jobs, job)
		}
	}
	if err := m.ledger.Save(jobs); err != nil {
		m.logger.Error().Err(err).Msg("ledger save failed")
	}
}

// restore warms the mirror from the ledger. Jobs that were mid-flight when
// the process died cannot resume; they surface as failed so the UI offers a
// retry instead of a progress bar that never moves.
func (m *Manager) restore() {
	if m.ledger == nil {
		return
	}
	jobs, err := m.ledger.Load()
	if err != nil {
		m.logger.Error().Err(err).Msg("ledger load failed")
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range jobs {
		if !job.Status.Terminal() {
			job.Status = domain.JobStatusFailed
			job.ErrorMessage = "interrupted by restart"
			job.ErrorCode = "interrupted"
		}
		if _, ok := m.jobs[job.ID]; !ok {
			m.order = append(m.order, job.ID)
		}
		m.jobs[job.ID] = job
	}
}
