package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/pdvhub/internal/domain"
)

// entityHandler applies a single change event idempotently for one entity
// kind. Implementations parse and validate the raw payload, then delegate
// to their repo, which runs the write in its own transaction.
type entityHandler interface {
	apply(ctx context.Context, tenantID uuid.UUID, payload json.RawMessage) error
}

// SyncUC is the push coordinator and pull feed builder of the offline sync
// protocol.
type SyncUC struct {
	orders    domain.OrderRepo
	customers domain.CustomerRepo
	debts     domain.DebtRepo

	handlers     map[string]entityHandler
	eventTimeout time.Duration
	maxLimit     int
	defaultLimit int
}

type SyncOptions struct {
	EventTimeout time.Duration
	MaxLimit     int
	DefaultLimit int
}

func NewSyncUC(orders domain.OrderRepo, customers domain.CustomerRepo, debts domain.DebtRepo, opts SyncOptions) *SyncUC {
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = 5 * time.Second
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 1000
	}
	if opts.DefaultLimit <= 0 || opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = min(500, opts.MaxLimit)
	}
	uc := &SyncUC{
		orders:       orders,
		customers:    customers,
		debts:        debts,
		eventTimeout: opts.EventTimeout,
		maxLimit:     opts.MaxLimit,
		defaultLimit: opts.DefaultLimit,
	}
	uc.handlers = map[string]entityHandler{
		domain.EntityOrder:    orderHandler{repo: orders},
		domain.EntityCustomer: customerHandler{repo: customers},
		domain.EntityDebt:     debtHandler{repo: debts},
	}
	return uc
}

// Push applies a batch of outbox events one at a time, each in its own unit
// of work. A failing event never blocks the rest of the batch and never
// rolls back events already committed; results come back in input order.
func (uc *SyncUC) Push(ctx context.Context, tenantID uuid.UUID, events []domain.ChangeEvent) []domain.PushResult {
	results := make([]domain.PushResult, 0, len(events))
	for _, ev := range events {
		if ctx.Err() != nil {
			// the batch deadline passed: unattempted events are reported
			// with a retryable marker so they stay in the client outbox
			results = append(results, domain.PushResult{
				OutboxID: ev.OutboxID,
				Error:    string(domain.SyncErrDeadlineExceeded),
			})
			continue
		}

		h, known := uc.handlers[ev.Entity]
		if !known {
			// forward compatibility: newer clients may queue kinds this
			// server does not understand yet; acknowledge without effect
			// so the client can clear its outbox
			log.Debug().Str("entity", ev.Entity).Int64("outbox_id", ev.OutboxID).Msg("sync: unknown entity kind acknowledged")
			results = append(results, domain.PushResult{OutboxID: ev.OutboxID, OK: true})
			continue
		}

		evCtx, cancel := context.WithTimeout(ctx, uc.eventTimeout)
		err := h.apply(evCtx, tenantID, ev.Payload)
		cancel()
		if err != nil {
			kind := domain.SyncKind(err)
			log.Warn().Err(err).
				Str("entity", ev.Entity).
				Int64("outbox_id", ev.OutboxID).
				Str("tenant_id", tenantID.String()).
				Msg("sync: push event failed")
			results = append(results, domain.PushResult{OutboxID: ev.OutboxID, Error: string(kind)})
			continue
		}
		results = append(results, domain.PushResult{OutboxID: ev.OutboxID, OK: true})
	}
	return results
}

// Pull builds the incremental feed past the given watermark. Each entity
// type is paged and cursored independently; the returned next_since equals
// since when nothing new exists, so idle polling reaches a fixed point.
func (uc *SyncUC) Pull(ctx context.Context, tenantID uuid.UUID, since string, limit int) (*domain.PullFeed, error) {
	cur, err := domain.DecodeCursor(since)
	if err != nil {
		return nil, domain.InvalidPayloadf("bad since cursor: %v", err)
	}
	if limit <= 0 {
		limit = uc.defaultLimit
	}
	if limit > uc.maxLimit {
		limit = uc.maxLimit
	}

	orders, err := uc.orders.Feed(ctx, tenantID, cur.Orders, limit)
	if err != nil {
		return nil, err
	}
	customers, err := uc.customers.Feed(ctx, tenantID, cur.Customers, limit)
	if err != nil {
		return nil, err
	}
	debts, err := uc.debts.Feed(ctx, tenantID, cur.Debts, limit)
	if err != nil {
		return nil, err
	}

	next := cur
	if n := len(orders); n > 0 {
		next.Orders = domain.TypeCursor{TS: orders[n-1].UpdatedAt, ID: orders[n-1].ID}
	}
	if n := len(customers); n > 0 {
		next.Customers = domain.TypeCursor{TS: customers[n-1].UpdatedAt, ID: customers[n-1].ID}
	}
	if n := len(debts); n > 0 {
		next.Debts = domain.TypeCursor{TS: debts[n-1].UpdatedAt, ID: debts[n-1].ID}
	}

	// an empty feed echoes the caller's watermark verbatim; legacy
	// timestamp cursors in particular must not come back re-encoded
	nextSince := next.Encode()
	if len(orders) == 0 && len(customers) == 0 && len(debts) == 0 {
		nextSince = since
	}

	return &domain.PullFeed{
		ServerTime: time.Now().UTC(),
		Orders:     orders,
		Customers:  customers,
		Debts:      debts,
		Since:      since,
		NextSince:  nextSince,
		Limit:      limit,
	}, nil
}

type orderHandler struct{ repo domain.OrderRepo }

func (h orderHandler) apply(ctx context.Context, tenantID uuid.UUID, payload json.RawMessage) error {
	var ch domain.OrderChange
	if err := json.Unmarshal(payload, &ch); err != nil {
		return domain.InvalidPayloadf("unparseable order payload: %v", err)
	}
	id, err := uuid.Parse(ch.ID)
	if err != nil {
		return domain.InvalidPayloadf("order id missing or unparseable")
	}
	return h.repo.Apply(ctx, tenantID, id, ch)
}

type customerHandler struct{ repo domain.CustomerRepo }

func (h customerHandler) apply(ctx context.Context, tenantID uuid.UUID, payload json.RawMessage) error {
	var ch domain.CustomerChange
	if err := json.Unmarshal(payload, &ch); err != nil {
		return domain.InvalidPayloadf("unparseable customer payload: %v", err)
	}
	id, err := uuid.Parse(ch.ID)
	if err != nil {
		return domain.InvalidPayloadf("customer id missing or unparseable")
	}
	return h.repo.Apply(ctx, tenantID, id, ch)
}

type debtHandler struct{ repo domain.DebtRepo }

func (h debtHandler) apply(ctx context.Context, tenantID uuid.UUID, payload json.RawMessage) error {
	var ch domain.DebtChange
	if err := json.Unmarshal(payload, &ch); err != nil {
		return domain.InvalidPayloadf("unparseable debt payload: %v", err)
	}
	id, err := uuid.Parse(ch.ID)
	if err != nil {
		return domain.InvalidPayloadf("debt id missing or unparseable")
	}
	return h.repo.Apply(ctx, tenantID, id, ch)
}
