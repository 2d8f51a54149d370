// Package engine runs single-asset auctions: it takes custody of an asset,
// escrows competing bids, and settles proceeds among seller, platform and
// royalty recipient through pull-payment balances.
//
// Every mutating operation is all-or-nothing. Ledger and store mutations are
// journaled and rolled back on any failure, a non-reentrant guard rejects
// nested entry from transfer callbacks, and all bookkeeping happens before the
// operation's single external transfer.
//
// An Engine is not safe for concurrent use. Use an Executor to serialize
// callers on multiple goroutines.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	golog "github.com/ipfs/go-log/v2"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/ledger"
	"github.com/cloudx-io/assetauction/store"
)

var log = golog.Logger("auction/engine")

// Config wires the engine to its collaborators.
type Config struct {
	// Address is the engine's custody account.
	Address    core.Address
	Registry   PlatformRegistry
	Assets     AssetResolver
	Currencies CurrencyTransfer
	// Events is optional.
	Events EventSink
	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Operators may cancel any auction and resolve ended ones.
	Operators []core.Address
}

type Engine struct {
	self      core.Address
	registry  PlatformRegistry
	gateway   *gateway
	events    EventSink
	clock     clock.Clock
	operators map[core.Address]struct{}

	ledger *ledger.Ledger
	store  *store.Store
	guard  guard

	metrics engineMetrics
}

func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("platform registry is required")
	}
	if cfg.Assets == nil {
		return nil, fmt.Errorf("asset resolver is required")
	}
	if cfg.Currencies == nil {
		return nil, fmt.Errorf("currency transfer is required")
	}
	if cfg.Address == (core.Address{}) {
		return nil, fmt.Errorf("engine address is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	ops := make(map[core.Address]struct{}, len(cfg.Operators))
	for _, op := range cfg.Operators {
		ops[op] = struct{}{}
	}
	return &Engine{
		self:      cfg.Address,
		registry:  cfg.Registry,
		gateway:   &gateway{self: cfg.Address, assets: cfg.Assets, currencies: cfg.Currencies},
		events:    cfg.Events,
		clock:     clk,
		operators: ops,
		ledger:    ledger.New(),
		store:     store.New(),
		metrics:   newEngineMetrics(),
	}, nil
}

// Address returns the engine's custody account.
func (e *Engine) Address() core.Address {
	return e.self
}

// IsOperator reports whether account holds the privileged operator role.
func (e *Engine) IsOperator(account core.Address) bool {
	_, ok := e.operators[account]
	return ok
}

// Status derives the lifecycle status of an auction.
func (e *Engine) Status(ctx context.Context, id uuid.UUID) (core.Status, error) {
	a, err := e.auction("status", id)
	if err != nil {
		return 0, err
	}
	return e.status(ctx, "status", &a)
}

func (e *Engine) status(ctx context.Context, op string, a *core.Auction) (core.Status, error) {
	active, err := e.platformActive(ctx, op)
	if err != nil {
		return 0, err
	}
	return core.ResolveStatus(e.clock.Now(), a, e.store.Cancelled(a.ID), e.store.Claimed(a.ID), active), nil
}

func (e *Engine) platformActive(ctx context.Context, op string) (bool, error) {
	active, err := e.registry.IsPlatformActive(ctx, e.self)
	if err != nil {
		return false, wrapError(KindUnknown, op, err, "querying platform state")
	}
	return active, nil
}

func (e *Engine) auction(op string, id uuid.UUID) (core.Auction, error) {
	a, err := e.store.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return a, newError(KindNotFound, op, "auction %s not found", id)
	}
	return a, err
}

// opTx collects the events of one operation until it commits.
type opTx struct {
	events []core.Event
}

func (tx *opTx) emit(ev core.Event) {
	tx.events = append(tx.events, ev)
}

// run executes fn as one guarded, all-or-nothing operation. Events recorded
// by fn are delivered only after commit.
func (e *Engine) run(ctx context.Context, op string, fn func(tx *opTx) error) (err error) {
	defer func() { e.metrics.observe(ctx, op, err) }()

	if err := e.guard.enter(op); err != nil {
		log.Warnf("%s: %v", op, err)
		return err
	}
	defer e.guard.exit()

	if err := e.ledger.Begin(); err != nil {
		return wrapError(KindInvalidState, op, err, "opening ledger transaction")
	}
	if err := e.store.Begin(); err != nil {
		e.ledger.Rollback()
		return wrapError(KindInvalidState, op, err, "opening store transaction")
	}
	committed := false
	defer func() {
		if !committed {
			e.store.Rollback()
			e.ledger.Rollback()
		}
	}()

	tx := &opTx{}
	if err := fn(tx); err != nil {
		log.Debugf("%s rejected: %v", op, err)
		return err
	}
	e.store.Commit()
	e.ledger.Commit()
	committed = true

	e.deliver(ctx, tx.events)
	return nil
}

func (e *Engine) deliver(ctx context.Context, events []core.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Kind() < events[j].Kind()
	})
	if e.events == nil {
		return
	}
	for _, ev := range events {
		e.events.Emit(ctx, ev)
	}
}

// credit adds to a claimable balance and records the balance update.
func (e *Engine) credit(tx *opTx, op string, account, currency core.Address, amount core.Amount) error {
	if amount.IsZero() {
		return nil
	}
	bal, err := e.ledger.Credit(account, currency, amount)
	if err != nil {
		return wrapError(KindInvalidArgument, op, err, "crediting %s", account.Hex())
	}
	tx.emit(core.BalanceUpdated{Account: account, Currency: currency, Balance: bal})
	return nil
}
