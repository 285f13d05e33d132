package gridswarm

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chris-alexander-pop/gridswarm/pkg/auction"
	"github.com/chris-alexander-pop/gridswarm/pkg/channel"
	"github.com/chris-alexander-pop/gridswarm/pkg/dispatch"
	"github.com/chris-alexander-pop/gridswarm/pkg/envelope"
	"github.com/chris-alexander-pop/gridswarm/pkg/errors"
	"github.com/chris-alexander-pop/gridswarm/pkg/group"
	"github.com/chris-alexander-pop/gridswarm/pkg/registry"
	"github.com/chris-alexander-pop/gridswarm/pkg/reqres"
	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
)

// Client is the single long-lived object a user constructs: one per
// identity. It owns the dispatcher, handler registry, request/response
// coordinator, contract auctioneer, group manager and a default registry
// façade.
type Client struct {
	identity  string
	transport transport.Transport
	cfg       Config

	registry   *dispatch.Registry
	dispatcher *dispatch.Dispatcher
	reqres     *reqres.Coordinator
	auction    *auction.Auctioneer
	group      *group.Manager

	mu           sync.Mutex
	subs         []transport.Handle
	shutdownOnce sync.Once
	closed       bool
}

// New wires a Client around an already-constructed transport and starts
// its worker pool and base subscriptions (gs.pub.* and gs.<identity>.*).
// It does not block.
func New(identity string, t transport.Transport, cfg Config) (*Client, error) {
	if identity == "" {
		return nil, errors.InvalidArgument("identity must not be empty", nil)
	}

	if cfg.Instrumented {
		t = transport.NewInstrumentedTransport(t)
	}
	if cfg.Resilient {
		t = transport.NewResilientTransport(t, cfg.ResilientOptions)
	}

	c := &Client{
		identity:  identity,
		transport: t,
		cfg:       cfg,
		registry:  dispatch.NewRegistry(),
		reqres:    reqres.New(identity, t),
		auction:   auction.New(identity, t),
	}
	c.dispatcher = dispatch.New(t, c.registry, identity, cfg.Dispatch, c.reqres, c.auction)
	c.group = group.New(identity, t, c.dispatcher)

	// Every client answers its own liveness probe so Alive works against
	// any peer without that peer opting in explicitly.
	c.registry.OnRequest(envelope.AliveTopic, func(envelope.Metadata, json.RawMessage) (any, error) {
		return nil, nil
	})

	c.dispatcher.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubHandle, err := t.Subscribe(ctx, channel.PublicPattern, c.dispatcher.OnTransportMessage)
	if err != nil {
		c.dispatcher.Stop()
		return nil, err
	}
	idHandle, err := t.Subscribe(ctx, channel.IdentityPattern(identity), c.dispatcher.OnTransportMessage)
	if err != nil {
		t.Unsubscribe(ctx, pubHandle)
		c.dispatcher.Stop()
		return nil, err
	}
	c.subs = []transport.Handle{pubHandle, idHandle}

	return c, nil
}

// Shutdown cancels all pending requests, leaves any active group,
// unsubscribes everything and closes the transport. Safe to call more than
// once. Open contracts are not cancelled: a CollectBids call in progress
// still waits out its deadline.
func (c *Client) Shutdown(ctx context.Context) error {
	var closeErr error
	c.shutdownOnce.Do(func() {
		c.reqres.Shutdown()
		c.group.Shutdown(ctx)

		c.mu.Lock()
		c.closed = true
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()

		for _, h := range subs {
			_ = c.transport.Unsubscribe(ctx, h)
		}
		c.dispatcher.Stop()
		closeErr = c.transport.Close()
	})
	return closeErr
}

func (c *Client) effectiveRequestTimeout(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	if c.cfg.RequestTimeout > 0 {
		return c.cfg.RequestTimeout
	}
	return reqres.DefaultTimeout
}

func (c *Client) effectiveContractDeadline(deadline time.Duration) time.Duration {
	if deadline > 0 {
		return deadline
	}
	if c.cfg.ContractDeadline > 0 {
		return c.cfg.ContractDeadline
	}
	return auction.DefaultDeadline
}

// Broadcast publishes payload on topic's public channel. The sender's own
// on_broadcast handler for that topic is never invoked (spec §4.3).
func (c *Client) Broadcast(topic string, payload any) error {
	encoded, err := envelope.Encode(payload)
	if err != nil {
		return err
	}
	env := &envelope.Envelope{Kind: envelope.KindBroadcast, Topic: topic, From: c.identity, Payload: encoded}
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	return c.transport.Publish(context.Background(), channel.Public(topic), data)
}

// Cast publishes payload directly to identity's channel for topic.
func (c *Client) Cast(identity, topic string, payload any) error {
	encoded, err := envelope.Encode(payload)
	if err != nil {
		return err
	}
	env := &envelope.Envelope{Kind: envelope.KindCast, Topic: topic, From: c.identity, To: identity, Payload: encoded}
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	return c.transport.Publish(context.Background(), channel.Identity(identity, topic), data)
}

// Request sends a request to identity on topic and blocks for the
// response, or until timeout elapses (0 uses the client's default).
func (c *Client) Request(ctx context.Context, identity, topic string, payload any, timeout time.Duration) reqres.Result {
	return c.reqres.Request(ctx, identity, topic, payload, c.effectiveRequestTimeout(timeout))
}

// AsyncRequest is the non-blocking variant of Request.
func (c *Client) AsyncRequest(ctx context.Context, identity, topic string, payload any, timeout time.Duration) *reqres.Future {
	return c.reqres.AsyncRequest(ctx, identity, topic, payload, c.effectiveRequestTimeout(timeout))
}

// Map fans a request out to every identity in identities and blocks until
// all have responded or timeout elapses; missing identities resolve to
// OutcomeTimeout.
func (c *Client) Map(ctx context.Context, identities []string, topic string, payload any, timeout time.Duration) map[string]reqres.Result {
	return c.reqres.Map(ctx, identities, topic, payload, c.effectiveRequestTimeout(timeout))
}

// JoinGroup joins group id, implicitly leaving any previously active
// group.
func (c *Client) JoinGroup(id string) error {
	return c.group.JoinGroup(context.Background(), id)
}

// LeaveGroup leaves the active group, if any. Idempotent.
func (c *Client) LeaveGroup() error {
	return c.group.LeaveGroup(context.Background())
}

// GroupBroadcast publishes payload to the active group's channel for
// topic. Fails with group.ErrNotInGroup if no group is active.
func (c *Client) GroupBroadcast(topic string, payload any) error {
	return c.group.GroupBroadcast(context.Background(), topic, payload)
}

// CurrentGroup returns the active group ID and whether one is active.
func (c *Client) CurrentGroup() (string, bool) {
	return c.group.CurrentGroup()
}

// InGroup reports whether the client currently belongs to a group.
func (c *Client) InGroup() bool {
	return c.group.InGroup()
}

// OnContract registers the bidder-side callbacks for topic.
func (c *Client) OnContract(topic string, h auction.ContractHandler) {
	c.auction.OnContract(topic, h)
}

// CollectBids opens a sealed-bid auction for topic and blocks until the
// deadline elapses.
func (c *Client) CollectBids(ctx context.Context, topic string, opts auction.CollectOptions) auction.Result {
	opts.Deadline = c.effectiveContractDeadline(opts.Deadline)
	return c.auction.CollectBids(ctx, topic, opts)
}

// Registry returns a Registry façade scoped to namespace.
func (c *Client) Registry(namespace string) registry.Registry {
	return registry.New(c.transport, namespace, c.cfg.Registry)
}

// OnBroadcast registers a handler for public broadcasts on topic.
func (c *Client) OnBroadcast(topic string, h dispatch.Handler) { c.registry.OnBroadcast(topic, h) }

// OnCast registers a handler for direct casts on topic.
func (c *Client) OnCast(topic string, h dispatch.Handler) { c.registry.OnCast(topic, h) }

// OnRequest registers a handler for requests on topic; its return value
// becomes the response payload.
func (c *Client) OnRequest(topic string, h dispatch.RequestHandler) { c.registry.OnRequest(topic, h) }

// OnGroup registers a handler for group messages on topic.
func (c *Client) OnGroup(topic string, h dispatch.Handler) { c.registry.OnGroup(topic, h) }

// Connected reports whether the underlying transport is healthy.
func (c *Client) Connected() bool {
	return c.transport.Healthy(context.Background())
}

// Alive probes identity with a bounded request on the reserved
// __alive__ topic; any non-error reply counts as alive, per spec §9.
func (c *Client) Alive(ctx context.Context, identity string, timeout time.Duration) bool {
	res := c.Request(ctx, identity, envelope.AliveTopic, nil, timeout)
	return res.Outcome == reqres.OutcomeOK
}

// Identity returns the client's own identity string.
func (c *Client) Identity() string {
	return c.identity
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the process-wide default Client, or nil if none has
// been set. Per spec §9's re-architecture guidance, a default instance is
// acceptable as long as it still supports explicit teardown.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// SetDefault installs client as the process-wide default.
func SetDefault(client *Client) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClient = client
}

