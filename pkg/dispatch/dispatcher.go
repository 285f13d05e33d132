package dispatch

import (
	"context"
	"encoding/json"
	"hash/fnv"

	"github.com/chris-alexander-pop/gridswarm/pkg/channel"
	"github.com/chris-alexander-pop/gridswarm/pkg/envelope"
	"github.com/chris-alexander-pop/gridswarm/pkg/logger"
	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
)

// ResponseSink receives decoded response envelopes, handed off to the
// request/response coordinator (C5).
type ResponseSink interface {
	HandleResponse(env *envelope.Envelope)
}

// BidSink receives the three auction envelope kinds, handed off to the
// contract auctioneer (C6) in whichever role applies.
type BidSink interface {
	HandleBidOpen(env *envelope.Envelope)
	HandleBidSubmit(env *envelope.Envelope)
	HandleBidAward(env *envelope.Envelope)
}

// Config configures the dispatcher's worker pool.
type Config struct {
	// Workers is the number of goroutines draining the inbound queue.
	Workers int `env:"DISPATCH_WORKERS" env-default:"8"`

	// QueueSize bounds the per-worker inbound buffer. Once full,
	// messages are dropped and an overflow event is logged, per spec §5.
	QueueSize int `env:"DISPATCH_QUEUE_SIZE" env-default:"1024"`
}

// DefaultConfig returns the spec's recommended defaults.
func DefaultConfig() Config {
	return Config{Workers: 8, QueueSize: 1024}
}

type inbound struct {
	channel string
	data    []byte
}

// Dispatcher is the single logical pump draining the transport's inbound
// callbacks, decoding envelopes and routing them to handler tables or to
// C5/C6. Handler invocation always happens on a worker goroutine, never
// on the transport's reader goroutine.
type Dispatcher struct {
	transport transport.Transport
	registry  *Registry
	self      string
	cfg       Config

	responses ResponseSink
	bids      BidSink

	shards []chan inbound
	done   chan struct{}
}

// New creates a Dispatcher. Start must be called to spin up workers before
// any Subscribe is wired in.
func New(t transport.Transport, reg *Registry, self string, cfg Config, responses ResponseSink, bids BidSink) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	d := &Dispatcher{
		transport: t,
		registry:  reg,
		self:      self,
		cfg:       cfg,
		responses: responses,
		bids:      bids,
		shards:    make([]chan inbound, cfg.Workers),
		done:      make(chan struct{}),
	}
	for i := range d.shards {
		d.shards[i] = make(chan inbound, cfg.QueueSize)
	}
	return d
}

// Start launches the worker pool. Call once.
func (d *Dispatcher) Start() {
	for i := range d.shards {
		go d.worker(d.shards[i])
	}
}

// Stop terminates all workers. In-flight messages are dropped.
func (d *Dispatcher) Stop() {
	close(d.done)
}

// OnTransportMessage is the transport.OnMessage callback the dispatcher
// registers on every subscription. It MUST NOT block: it only shards and
// enqueues, per spec §4.3's "pump MUST NOT block on user code".
func (d *Dispatcher) OnTransportMessage(ch string, data []byte) {
	shard := d.shardFor(ch, data)
	select {
	case d.shards[shard] <- inbound{channel: ch, data: data}:
	default:
		logger.L().Warn("dispatch queue overflow, dropping message", "channel", ch, "shard", shard)
	}
}

// shardFor routes a message to a worker keyed by (channel, from) so that
// messages from one sender on one channel are always handled by the same
// worker, preserving their publish order (spec §5: "Ordering: messages
// from a single sender on a single channel are delivered to the handler
// in publish order").
func (d *Dispatcher) shardFor(ch string, data []byte) int {
	from := peekFrom(data)
	h := fnv.New32a()
	h.Write([]byte(ch))
	h.Write([]byte{0})
	h.Write([]byte(from))
	return int(h.Sum32() % uint32(len(d.shards)))
}

// peekFrom extracts the "from" field without fully decoding, so shard
// assignment doesn't pay the full unmarshal cost for malformed messages.
func peekFrom(data []byte) string {
	var probe struct {
		From string `json:"from"`
	}
	_ = json.Unmarshal(data, &probe)
	return probe.From
}

func (d *Dispatcher) worker(queue chan inbound) {
	for {
		select {
		case <-d.done:
			return
		case msg := <-queue:
			d.handle(msg.channel, msg.data)
		}
	}
}

func (d *Dispatcher) handle(ch string, data []byte) {
	env, err := envelope.Unmarshal(data)
	if err != nil {
		logger.L().Warn("dropping malformed envelope", "channel", ch, "error", err)
		return
	}

	switch env.Kind {
	case envelope.KindBroadcast:
		if env.From == d.self {
			return // self-delivery filtered per spec §4.3
		}
		d.invoke(d.registry.LookupBroadcast, env)

	case envelope.KindGroupMsg:
		if env.From == d.self {
			return
		}
		d.invoke(d.registry.LookupGroup, env)

	case envelope.KindCast:
		d.invoke(d.registry.LookupCast, env)

	case envelope.KindRequest:
		d.handleRequest(env)

	case envelope.KindResponse:
		if d.responses != nil {
			d.responses.HandleResponse(env)
		}

	case envelope.KindBidOpen:
		if d.bids != nil {
			d.bids.HandleBidOpen(env)
		}

	case envelope.KindBidSubmit:
		if d.bids != nil {
			d.bids.HandleBidSubmit(env)
		}

	case envelope.KindBidAward:
		if d.bids != nil {
			d.bids.HandleBidAward(env)
		}

	default:
		logger.L().Warn("dropping envelope with unknown kind", "kind", env.Kind)
	}
}

func (d *Dispatcher) invoke(lookup func(string) (Handler, bool), env *envelope.Envelope) {
	h, ok := lookup(env.Topic)
	if !ok {
		return
	}
	meta := envelope.Metadata{From: env.From, Topic: env.Topic, CorrelationID: env.CorrelationID}
	defer d.recoverHandler(env)
	h(meta, env.Payload)
}

func (d *Dispatcher) handleRequest(env *envelope.Envelope) {
	h, ok := d.registry.LookupRequest(env.Topic)
	if !ok {
		return
	}

	meta := envelope.Metadata{From: env.From, Topic: env.Topic, CorrelationID: env.CorrelationID}

	var respPayload json.RawMessage
	func() {
		defer d.recoverHandler(env)
		result, err := h(meta, env.Payload)
		if err != nil {
			respPayload, _ = envelope.Encode(envelope.ErrorPayload{ErrorKind: "HandlerError", Message: err.Error()})
			return
		}
		respPayload, err = envelope.Encode(result)
		if err != nil {
			respPayload, _ = envelope.Encode(envelope.ErrorPayload{ErrorKind: "HandlerError", Message: "failed to encode response: " + err.Error()})
		}
	}()
	if respPayload == nil {
		respPayload, _ = envelope.Encode(envelope.ErrorPayload{ErrorKind: "HandlerError", Message: "handler panicked"})
	}

	resp := &envelope.Envelope{
		Kind:          envelope.KindResponse,
		Topic:         envelope.ResponseTopic,
		From:          d.self,
		To:            env.From,
		CorrelationID: env.CorrelationID,
		Payload:       respPayload,
	}
	data, err := resp.Marshal()
	if err != nil {
		logger.L().Error("failed to marshal response envelope", "error", err)
		return
	}
	ch := channel.Identity(env.From, envelope.ResponseTopic)
	if err := d.transport.Publish(context.Background(), ch, data); err != nil {
		logger.L().Error("failed to publish response", "channel", ch, "error", err)
	}
}

// recoverHandler captures a panicking handler so the pump never dies from
// user code, per spec §7: "Any unexpected worker exception is logged with
// envelope metadata and the worker continues."
func (d *Dispatcher) recoverHandler(env *envelope.Envelope) {
	if r := recover(); r != nil {
		logger.L().Error("handler panicked", "kind", env.Kind, "topic", env.Topic, "from", env.From, "panic", r)
	}
}
