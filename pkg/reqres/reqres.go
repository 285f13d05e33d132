// Package reqres implements the request/response coordinator (C5):
// correlation bookkeeping, timeout handling, async futures and fan-out
// aggregation across many peers.
package reqres

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chris-alexander-pop/gridswarm/pkg/channel"
	"github.com/chris-alexander-pop/gridswarm/pkg/envelope"
	"github.com/chris-alexander-pop/gridswarm/pkg/errors"
	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
	"github.com/google/uuid"
)

// Outcome classifies how a Result was produced.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTimeout
	OutcomeHandlerError
	OutcomeShutdown
)

// Result is what a single request (or one entry of a fan-out map) resolves
// to.
type Result struct {
	Outcome Outcome
	Payload json.RawMessage
	Err     error
}

// Error codes for this package's sentinels.
const (
	CodeTimeout  = "REQRES_TIMEOUT"
	CodeHandler  = "REQRES_HANDLER_ERROR"
	CodeShutdown = "REQRES_SHUTDOWN"
)

// DefaultTimeout is the request timeout used when the caller specifies
// none, per spec §6.
const DefaultTimeout = 5 * time.Second

type pending struct {
	expected  int
	results   map[string]Result
	mu        sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newPending(expected int) *pending {
	return &pending{
		expected: expected,
		results:  make(map[string]Result),
		done:     make(chan struct{}),
	}
}

func (p *pending) complete() {
	p.closeOnce.Do(func() { close(p.done) })
}

// record stores the first response from a given identity; duplicates are
// dropped per spec §4.5's tie-break rule. It returns true if this
// completed the pending request.
func (p *pending) record(from string, payload json.RawMessage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, seen := p.results[from]; seen {
		return false
	}
	p.results[from] = Result{Outcome: OutcomeOK, Payload: payload}
	if len(p.results) >= p.expected {
		p.complete()
		return true
	}
	return false
}

func (p *pending) recordError(from string, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, seen := p.results[from]; seen {
		return false
	}
	p.results[from] = Result{Outcome: OutcomeHandlerError, Err: err}
	if len(p.results) >= p.expected {
		p.complete()
		return true
	}
	return false
}

func (p *pending) snapshot() map[string]Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Result, len(p.results))
	for k, v := range p.results {
		out[k] = v
	}
	return out
}

// Future is returned by AsyncRequest (and waited on internally by Map); it
// resolves on the same terms as the synchronous call.
type Future struct {
	p       *pending
	targets []string
}

// Wait blocks until the future resolves or ctx is canceled.
func (f *Future) Wait(ctx context.Context) map[string]Result {
	select {
	case <-f.p.done:
	case <-ctx.Done():
	}
	fillMissing(f.p, f.targets)
	return f.p.snapshot()
}

// Coordinator is the request/response correlation table (C5). Entries are
// created on send and removed on completion — all responses received, or
// deadline, whichever comes first.
type Coordinator struct {
	self      string
	transport transport.Transport

	mu      sync.Mutex
	table   map[string]*pending
	targets map[string][]string // correlation_id -> targets, for Timeout-fill on deadline
}

// New creates a Coordinator bound to self's identity and a transport to
// publish request envelopes on.
func New(self string, t transport.Transport) *Coordinator {
	return &Coordinator{
		self:      self,
		transport: t,
		table:     make(map[string]*pending),
		targets:   make(map[string][]string),
	}
}

func newCorrelationID() string {
	return uuid.New().String()
}

// Request sends a single request and blocks until the response arrives or
// timeout elapses.
func (c *Coordinator) Request(ctx context.Context, target, topic string, payload any, timeout time.Duration) Result {
	res := c.Map(ctx, []string{target}, topic, payload, timeout)
	return res[target]
}

// AsyncRequest is the non-blocking variant of Request.
func (c *Coordinator) AsyncRequest(ctx context.Context, target, topic string, payload any, timeout time.Duration) *Future {
	return c.asyncMap(ctx, []string{target}, topic, payload, timeout)
}

// Map fans a request out to many targets under a single correlation ID
// and blocks until all have responded or the deadline elapses. Targets
// that never reply resolve to OutcomeTimeout.
func (c *Coordinator) Map(ctx context.Context, targets []string, topic string, payload any, timeout time.Duration) map[string]Result {
	f := c.asyncMap(ctx, targets, topic, payload, timeout)
	return f.Wait(ctx)
}

func (c *Coordinator) asyncMap(ctx context.Context, targets []string, topic string, payload any, timeout time.Duration) *Future {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	corrID := newCorrelationID()
	p := newPending(len(targets))

	c.mu.Lock()
	c.table[corrID] = p
	c.targets[corrID] = targets
	c.mu.Unlock()

	encoded, err := envelope.Encode(payload)
	if err != nil {
		// Nothing was published; resolve every target as a handler error
		// immediately rather than waiting out the deadline.
		for _, tgt := range targets {
			p.recordError(tgt, err)
		}
		c.cleanup(corrID)
		return &Future{p: p, targets: targets}
	}

	for _, tgt := range targets {
		env := &envelope.Envelope{
			Kind:          envelope.KindRequest,
			Topic:         topic,
			From:          c.self,
			To:            tgt,
			CorrelationID: corrID,
			Payload:       encoded,
		}
		data, _ := env.Marshal()
		ch := channel.Identity(tgt, topic)
		// Every target is published to before the expiry timer starts, so
		// even a very short timeout still sends the request. A timeout of 0
		// or less was replaced by DefaultTimeout above; it does not time out
		// immediately.
		if pubErr := c.transport.Publish(ctx, ch, data); pubErr != nil {
			p.recordError(tgt, transport.ErrPublishFailed(ch, pubErr))
		}
	}

	go c.expireAfter(corrID, p, timeout)

	return &Future{p: p, targets: targets}
}

func (c *Coordinator) expireAfter(corrID string, p *pending, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
		p.complete()
	}
	c.cleanup(corrID)
}

func (c *Coordinator) cleanup(corrID string) {
	c.mu.Lock()
	delete(c.table, corrID)
	delete(c.targets, corrID)
	c.mu.Unlock()
}

// HandleResponse implements dispatch.ResponseSink. Late responses —
// arriving after the pending entry's deadline has already fired and been
// cleaned up — are dropped silently per spec §4.5.
func (c *Coordinator) HandleResponse(env *envelope.Envelope) {
	c.mu.Lock()
	p, ok := c.table[env.CorrelationID]
	c.mu.Unlock()
	if !ok {
		return
	}

	if ep, isErr := envelope.IsError(env.Payload); isErr {
		p.recordError(env.From, errors.New(CodeHandler, ep.Message, nil))
		return
	}
	p.record(env.From, env.Payload)
}

// Shutdown resolves every still-pending request with OutcomeShutdown and
// drops the correlation table, per spec §5: "Shutdown cancels all pending
// requests with a Shutdown sentinel."
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	all := make([]*pending, 0, len(c.table))
	targets := make(map[*pending][]string)
	for id, p := range c.table {
		all = append(all, p)
		targets[p] = c.targets[id]
	}
	c.table = make(map[string]*pending)
	c.targets = make(map[string][]string)
	c.mu.Unlock()

	for _, p := range all {
		for _, tgt := range targets[p] {
			p.mu.Lock()
			if _, seen := p.results[tgt]; !seen {
				p.results[tgt] = Result{Outcome: OutcomeShutdown, Err: errors.New(CodeShutdown, "client is shutting down", nil)}
			}
			p.mu.Unlock()
		}
		p.complete()
	}
}

// fillMissing marks every target that never answered with OutcomeTimeout.
// Wait runs it before taking its snapshot, so the returned map holds an
// entry for every target.
func fillMissing(p *pending, targets []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tgt := range targets {
		if _, ok := p.results[tgt]; !ok {
			p.results[tgt] = Result{Outcome: OutcomeTimeout, Err: errors.New(CodeTimeout, "request timed out", nil)}
		}
	}
}
