package jobclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studiofront/internal/domain"
)

// Request is one generation attempt: the immutable payload plus the transient
// upload artifacts, one per spec slot, in slot order.
type Request struct {
	Payload map[string]any
	Files   []FileInput
}

// ProgressEvent is published to subscribers on every state change of the
// current job.
type ProgressEvent struct {
	JobID    string           `json:"job_id"`
	Status   domain.JobStatus `json:"status"`
	Progress int              `json:"progress"`
}

// Config parametrizes a Client.
type Config struct {
	Transport    *Transport
	Spec         KindSpec
	PollTimeout  time.Duration
	PollInterval time.Duration
	// SimulateOnTransportError turns unreachable-backend submit failures
	// into a synthesized completion after SimulatedDelay. The resulting job
	// carries Simulated=true so it can never pass for backend output. Off
	// unless explicitly enabled.
	SimulateOnTransportError bool
	SimulatedDelay           time.Duration
	Logger                   zerolog.Logger
	// OnUpdate, when set, receives a snapshot after every job mutation. It
	// is invoked outside the client's lock.
	OnUpdate func(job *domain.Job, progress int)
}

// Client drives a single in-flight generation job through
// upload → submit → poll, exposing typed state and monotonic progress.
// It is safe for concurrent use; independent clients share nothing.
type Client struct {
	cfg Config

	mu       sync.Mutex
	job      *domain.Job
	runToken string
	progress int
	cancel   context.CancelFunc
	subs     map[int]chan ProgressEvent
	nextSub  int
}

// NewClient builds a Client for one media kind.
func NewClient(cfg Config) *Client {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.SimulatedDelay <= 0 {
		cfg.SimulatedDelay = 3 * time.Second
	}
	return &Client{cfg: cfg, subs: make(map[int]chan ProgressEvent)}
}

// Kind returns the media kind this client drives.
func (c *Client) Kind() domain.JobKind { return c.cfg.Spec.Kind }

// Job returns a snapshot of the current job, or nil when idle.
func (c *Client) Job() *domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.Clone()
}

// Progress returns the current progress value in [0,100].
func (c *Client) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Subscribe registers a progress listener. The returned func unsubscribes;
// events are dropped rather than blocking a slow consumer.
func (c *Client) Subscribe() (<-chan ProgressEvent, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan ProgressEvent, 16)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Start validates the request and launches the pipeline. Any previous run is
// discarded first. The returned snapshot carries a locally synthesized
// placeholder id until the backend assigns one.
func (c *Client) Start(req Request) (*domain.Job, error) {
	if len(req.Files) != len(c.cfg.Spec.Slots) {
		return nil, &domain.ValidationError{
			Reason: fmt.Sprintf("%s jobs need %d file(s), got %d", c.cfg.Spec.Kind, len(c.cfg.Spec.Slots), len(req.Files)),
		}
	}
	// validate every file before the first network call
	for i, slot := range c.cfg.Spec.Slots {
		if err := ValidateFile(req.Files[i], slot); err != nil {
			return nil, err
		}
	}
	payloadJSON, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, &domain.ValidationError{Reason: "payload is not serializable"}
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:          "local-" + uuid.NewString(),
		Kind:        c.cfg.Spec.Kind,
		Status:      domain.JobStatusPending,
		PayloadJSON: payloadJSON,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	token := uuid.NewString()
	c.runToken = token
	c.job = job
	c.progress = 0
	c.cancel = cancel
	snapshot := job.Clone()
	c.mu.Unlock()

	c.notify(snapshot, 0)
	go c.run(ctx, token, req)
	return snapshot, nil
}

// Reset returns the client to idle from any state. In-flight network calls
// are not aborted mid-request; their responses are discarded because the run
// token no longer matches.
func (c *Client) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.runToken = ""
	c.job = nil
	c.progress = 0
	c.mu.Unlock()
}

// Cancel aborts the current job, if any. Calling it while idle is a no-op.
func (c *Client) Cancel() { c.Reset() }

// run is the pipeline goroutine: strictly sequential uploads, then submit,
// then poll. Every mutation re-checks the run token so stale responses can
// never touch newer state.
func (c *Client) run(ctx context.Context, token string, req Request) {
	uploads := len(req.Files)
	urls := make(map[string]string, uploads)
	for i, f := range req.Files {
		slot := c.cfg.Spec.Slots[i]
		url, err := c.cfg.Transport.Upload(ctx, slot.Path, f)
		if err != nil {
			c.fail(token, err)
			return
		}
		urls[slot.Name] = url
		// uploads span the first 70 points, split evenly across slots
		c.setProgress(token, 70*(i+1)/uploads)
	}

	payload := mergePayload(req.Payload, urls)
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		c.fail(token, &domain.ValidationError{Reason: "payload is not serializable"})
		return
	}

	c.transition(token, domain.JobStatusProcessing)

	outcome, err := c.cfg.Transport.Submit(ctx, c.cfg.Spec.GeneratePath, payloadJSON)
	if err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) && c.cfg.SimulateOnTransportError {
			c.simulate(ctx, token)
			return
		}
		c.fail(token, err)
		return
	}
	c.setProgress(token, 80)

	if outcome.JobID == "" {
		// synchronous completion: the response body is the result
		res, err := c.cfg.Spec.MapResult(outcome.Raw)
		if err != nil {
			c.fail(token, &domain.SubmissionError{Body: err.Error()})
			return
		}
		c.complete(token, res, false)
		return
	}

	c.adoptBackendID(token, outcome.JobID)
	c.poll(ctx, token, outcome.JobID)
}

// poll queries the status endpoint until the job settles or the bound
// elapses. Transient transport or backend hiccups are soft failures; polling
// continues until the deadline.
func (c *Client) poll(ctx context.Context, token, jobID string) {
	deadline := time.Now().Add(c.cfg.PollTimeout)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			c.fail(token, &domain.TimeoutError{JobID: jobID, Elapsed: c.cfg.PollTimeout.String()})
			return
		}

		out, err := c.cfg.Transport.Status(ctx, c.cfg.Spec.StatusPath, jobID)
		if err != nil {
			c.cfg.Logger.Debug().Err(err).Str("job_id", jobID).Msg("status poll failed, retrying")
			continue
		}
		switch out.Status {
		case domain.JobStatusCompleted:
			res, mapErr := c.cfg.Spec.MapResult(out.Raw)
			if mapErr != nil {
				c.fail(token, &domain.SubmissionError{Body: mapErr.Error()})
				return
			}
			c.complete(token, res, false)
			return
		case domain.JobStatusFailed:
			msg := out.Error
			if msg == "" {
				msg = "generation failed"
			}
			c.fail(token, &domain.SubmissionError{Body: msg})
			return
		default:
			// creep toward 95 while the backend works
			elapsedFrac := 1 - time.Until(deadline).Seconds()/c.cfg.PollTimeout.Seconds()
			c.setProgress(token, 80+int(15*elapsedFrac))
		}
	}
}

// simulate is the demo fallback for an unreachable backend: the job keeps
// its placeholder id, waits a fixed delay, then completes with a placeholder
// result flagged Simulated.
func (c *Client) simulate(ctx context.Context, token string) {
	c.cfg.Logger.Warn().Str("kind", string(c.cfg.Spec.Kind)).Msg("backend unreachable, simulating completion")
	select {
	case <-ctx.Done():
		return
	case <-time.After(c.cfg.SimulatedDelay):
	}
	var jobID string
	c.mu.Lock()
	if token == c.runToken && c.job != nil {
		jobID = c.job.ID
	}
	c.mu.Unlock()
	if jobID == "" {
		return
	}
	c.complete(token, c.cfg.Spec.Placeholder(jobID), true)
}

// apply runs mutate under the lock if the token is still current, then
// notifies subscribers with the resulting snapshot.
func (c *Client) apply(token string, mutate func(j *domain.Job)) bool {
	c.mu.Lock()
	if token != c.runToken || c.job == nil {
		c.mu.Unlock()
		return false
	}
	mutate(c.job)
	c.job.UpdatedAt = time.Now().UTC()
	snapshot := c.job.Clone()
	progress := c.progress
	for _, ch := range c.subs {
		select {
		case ch <- ProgressEvent{JobID: snapshot.ID, Status: snapshot.Status, Progress: progress}:
		default:
		}
	}
	c.mu.Unlock()

	c.notify(snapshot, progress)
	return true
}

func (c *Client) notify(job *domain.Job, progress int) {
	if c.cfg.OnUpdate != nil {
		c.cfg.OnUpdate(job, progress)
	}
}

func (c *Client) setProgress(token string, p int) {
	c.apply(token, func(j *domain.Job) {
		if p > c.progress {
			if p > 100 {
				p = 100
			}
			c.progress = p
		}
	})
}

func (c *Client) transition(token string, status domain.JobStatus) {
	c.apply(token, func(j *domain.Job) {
		j.Status = status
	})
}

func (c *Client) adoptBackendID(token, backendID string) {
	c.apply(token, func(j *domain.Job) {
		j.ID = backendID
		j.Status = domain.JobStatusProcessing
	})
}

func (c *Client) complete(token string, res *domain.Result, simulated bool) {
	c.apply(token, func(j *domain.Job) {
		j.Status = domain.JobStatusCompleted
		j.Result = res
		j.Simulated = simulated
		c.progress = 100
	})
}

func (c *Client) fail(token string, err error) {
	c.apply(token, func(j *domain.Job) {
		j.Status = domain.JobStatusFailed
		j.ErrorMessage = err.Error()
		j.ErrorCode = domain.ErrorCode(err)
	})
}

func mergePayload(payload map[string]any, urls map[string]string) map[string]any {
	merged := make(map[string]any, len(payload)+len(urls))
	for k, v := range payload {
		merged[k] = v
	}
	for k, v := range urls {
		merged[k] = v
	}
	return merged
}
