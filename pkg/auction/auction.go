// Package auction implements the contract auctioneer (C6): a two-phase
// sealed-bid, single-winner task assignment protocol with a deadline.
package auction

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chris-alexander-pop/gridswarm/pkg/channel"
	"github.com/chris-alexander-pop/gridswarm/pkg/envelope"
	"github.com/chris-alexander-pop/gridswarm/pkg/logger"
	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
	"github.com/google/uuid"
)

// DefaultDeadline is used when CollectOptions.Deadline is zero, per spec §6.
const DefaultDeadline = 2 * time.Second

// Decline is the sentinel an on_open callback returns to abstain from
// bidding. Any value in [0, 1] is a real bid; Decline is distinct from
// 0.0 (spec §9: "declining is represented by a sentinel distinct from
// 0.0").
const Decline = -1.0

// ContractHandler pairs the two callbacks a bidder registers for a topic.
type ContractHandler struct {
	// OnOpen is invoked when a bid_open arrives for this topic. It must
	// be side-effect-free in the sense that declining (returning Decline)
	// never publishes anything.
	OnOpen func(meta envelope.Metadata) float64

	// OnWin is invoked when this bidder is awarded the contract.
	OnWin func(meta envelope.Metadata)
}

// CollectOptions configures an auctioneer's collect_bids call.
type CollectOptions struct {
	// ValidBidders, if non-empty, whitelists eligible bidders by identity.
	ValidBidders []string

	// MinBid excludes bids strictly below this value. Default 0.
	MinBid float64

	// Deadline bounds bid collection. Default DefaultDeadline.
	Deadline time.Duration
}

// Result is what CollectBids returns once the deadline elapses.
type Result struct {
	// Winner is the identity awarded the contract, or "" if none.
	Winner string

	// WinningBid is the winner's bid value; zero if there is no winner.
	WinningBid float64

	// Bids is every eligible bid received, keyed by identity.
	Bids map[string]float64
}

type bidRecord struct {
	value     float64
	receivedAt time.Time
}

type openContract struct {
	topic        string
	validBidders map[string]struct{}
	minBid       float64

	mu   sync.Mutex
	bids map[string]bidRecord
	done chan struct{}
	once sync.Once
}

func (c *openContract) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *openContract) eligible(from string) bool {
	if c.validBidders == nil {
		return true
	}
	_, ok := c.validBidders[from]
	return ok
}

func (c *openContract) record(from string, value float64) {
	if !c.eligible(from) || value < c.minBid {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.bids[from]; seen {
		return
	}
	c.bids[from] = bidRecord{value: value, receivedAt: time.Now()}
}

// Auctioneer implements both roles of the auction protocol: the
// auctioneer side (collect_bids) and the bidder side (on_open / on_win).
type Auctioneer struct {
	self      string
	transport transport.Transport

	mu       sync.Mutex
	contracts map[string]*openContract

	handlers sync.Map // topic -> ContractHandler
}

// New creates an Auctioneer bound to self's identity.
func New(self string, t transport.Transport) *Auctioneer {
	return &Auctioneer{
		self:      self,
		transport: t,
		contracts: make(map[string]*openContract),
	}
}

// OnContract registers the bidder-side callbacks for topic. Re-registering
// replaces the prior handler.
func (a *Auctioneer) OnContract(topic string, h ContractHandler) {
	a.handlers.Store(topic, h)
}

// CollectBids opens bidding for topic and blocks until the deadline
// elapses, returning the winner (if any) and every eligible bid seen.
func (a *Auctioneer) CollectBids(ctx context.Context, topic string, opts CollectOptions) Result {
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	corrID := uuid.New().String()
	oc := &openContract{
		topic:  topic,
		minBid: opts.MinBid,
		bids:   make(map[string]bidRecord),
		done:   make(chan struct{}),
	}
	if len(opts.ValidBidders) > 0 {
		oc.validBidders = make(map[string]struct{}, len(opts.ValidBidders))
		for _, b := range opts.ValidBidders {
			oc.validBidders[b] = struct{}{}
		}
	}

	a.mu.Lock()
	a.contracts[corrID] = oc
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.contracts, corrID)
		a.mu.Unlock()
	}()

	payload, _ := envelope.Encode(struct {
		DeadlineMs int64 `json:"deadline_ms"`
	}{DeadlineMs: deadline.Milliseconds()})

	env := &envelope.Envelope{
		Kind:          envelope.KindBidOpen,
		Topic:         topic,
		From:          a.self,
		CorrelationID: corrID,
		Payload:       payload,
		DeadlineMs:    deadline.Milliseconds(),
	}
	data, _ := env.Marshal()
	if err := a.transport.Publish(ctx, channel.Public(topic), data); err != nil {
		logger.L().Error("failed to publish bid_open", "topic", topic, "error", err)
		return Result{Bids: map[string]float64{}}
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	oc.close()

	return a.finalize(ctx, corrID, oc)
}

// finalize picks the winner per spec §4.6 tie-break rules (highest bid;
// earliest arrival; lexicographic identity) and notifies them, if any.
func (a *Auctioneer) finalize(ctx context.Context, corrID string, oc *openContract) Result {
	oc.mu.Lock()
	bids := make(map[string]float64, len(oc.bids))
	var winner string
	var winRecord bidRecord
	first := true
	for from, rec := range oc.bids {
		bids[from] = rec.value
		if first {
			winner, winRecord, first = from, rec, false
			continue
		}
		if rec.value > winRecord.value {
			winner, winRecord = from, rec
		} else if rec.value == winRecord.value {
			if rec.receivedAt.Before(winRecord.receivedAt) {
				winner, winRecord = from, rec
			} else if rec.receivedAt.Equal(winRecord.receivedAt) && from < winner {
				winner, winRecord = from, rec
			}
		}
	}
	oc.mu.Unlock()

	if winner == "" {
		return Result{Bids: bids}
	}

	award := &envelope.Envelope{
		Kind:          envelope.KindBidAward,
		Topic:         oc.topic,
		From:          a.self,
		To:            winner,
		CorrelationID: corrID,
	}
	data, _ := award.Marshal()
	if err := a.transport.Publish(ctx, channel.Identity(winner, oc.topic), data); err != nil {
		logger.L().Error("failed to publish bid_award", "topic", oc.topic, "winner", winner, "error", err)
	}

	return Result{Winner: winner, WinningBid: winRecord.value, Bids: bids}
}

// HandleBidOpen implements the bidder role: invoke on_open and, unless the
// bidder declines, publish a bid_submit envelope.
func (a *Auctioneer) HandleBidOpen(env *envelope.Envelope) {
	v, ok := a.handlers.Load(env.Topic)
	if !ok {
		return
	}
	h := v.(ContractHandler)
	if h.OnOpen == nil {
		return
	}

	meta := envelope.Metadata{From: env.From, Topic: env.Topic, CorrelationID: env.CorrelationID}
	bid := a.safeOpen(h.OnOpen, meta)
	if bid < 0 {
		return // declined
	}

	payload, _ := envelope.Encode(struct {
		Bid float64 `json:"bid"`
	}{Bid: bid})
	submit := &envelope.Envelope{
		Kind:          envelope.KindBidSubmit,
		Topic:         env.Topic,
		From:          a.self,
		To:            env.From,
		CorrelationID: env.CorrelationID,
		Payload:       payload,
	}
	data, _ := submit.Marshal()
	if err := a.transport.Publish(context.Background(), channel.Public(env.Topic), data); err != nil {
		logger.L().Error("failed to publish bid_submit", "topic", env.Topic, "error", err)
	}
}

func (a *Auctioneer) safeOpen(onOpen func(envelope.Metadata) float64, meta envelope.Metadata) (bid float64) {
	bid = Decline
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("on_open handler panicked", "topic", meta.Topic, "panic", r)
			bid = Decline
		}
	}()
	return onOpen(meta)
}

// HandleBidSubmit implements the auctioneer role's collector: record an
// incoming bid against its open contract, if any.
func (a *Auctioneer) HandleBidSubmit(env *envelope.Envelope) {
	a.mu.Lock()
	oc, ok := a.contracts[env.CorrelationID]
	a.mu.Unlock()
	if !ok {
		return
	}

	var body struct {
		Bid float64 `json:"bid"`
	}
	if err := json.Unmarshal(env.Payload, &body); err != nil {
		return
	}

	select {
	case <-oc.done:
		return // bidding already closed
	default:
	}
	oc.record(env.From, body.Bid)
}

// HandleBidAward implements the bidder role's winner notification.
func (a *Auctioneer) HandleBidAward(env *envelope.Envelope) {
	v, ok := a.handlers.Load(env.Topic)
	if !ok {
		return
	}
	h := v.(ContractHandler)
	if h.OnWin == nil {
		return
	}
	meta := envelope.Metadata{From: env.From, Topic: env.Topic, CorrelationID: env.CorrelationID}
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("on_win handler panicked", "topic", env.Topic, "panic", r)
		}
	}()
	h.OnWin(meta)
}
