package domain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity kinds a push batch may carry. Anything else is acknowledged
// without effect so newer clients never break an older server.
const (
	EntityOrder    = "order"
	EntityCustomer = "customer"
	EntityDebt     = "debt"
)

// ChangeEvent is one locally queued write from a terminal's outbox. The
// outbox id is caller-local and only correlates the result back; the
// idempotency key is the entity id inside the payload.
type ChangeEvent struct {
	OutboxID  int64           `json:"outbox_id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
}

type PushResult struct {
	OutboxID int64  `json:"outbox_id"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// TypeCursor is the feed position for one entity type: the (updated_at, id)
// of the last row delivered. The id breaks ties so a page boundary inside a
// group of equal timestamps never drops rows.
type TypeCursor struct {
	TS time.Time `json:"ts"`
	ID uuid.UUID `json:"id,omitempty"`
}

func (c TypeCursor) IsZero() bool { return c.TS.IsZero() && c.ID == uuid.Nil }

// Cursor is the opaque watermark exchanged between pull calls. Each entity
// type advances independently, so one backlogged type can never push the
// shared position past rows of another type that were not delivered yet.
type Cursor struct {
	Orders    TypeCursor `json:"orders"`
	Customers TypeCursor `json:"customers"`
	Debts     TypeCursor `json:"debts"`
}

func (c Cursor) IsZero() bool {
	return c.Orders.IsZero() && c.Customers.IsZero() && c.Debts.IsZero()
}

func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor accepts the empty string (from the beginning), an encoded
// Cursor, or a bare RFC 3339 timestamp from older clients, which is applied
// to all three entity types.
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		tc := TypeCursor{TS: ts}
		return Cursor{Orders: tc, Customers: tc, Debts: tc}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}
	return c, nil
}

type PullFeed struct {
	ServerTime time.Time   `json:"server_time"`
	Orders     []OrderView `json:"orders"`
	Customers  []Customer  `json:"customers"`
	Debts      []DebtView  `json:"debts"`
	Since      string      `json:"since"`
	NextSince  string      `json:"next_since"`
	Limit      int         `json:"limit"`
}

// LineHash is the natural dedup key for an item child row. Re-pushing a
// header re-sends its items; the hash keeps the child list append-only
// without duplicating rows on retry. seq is the line's occurrence index
// among identical lines of the same payload, so the same item rung up
// twice as two separate lines stays two rows.
func LineHash(productID uuid.UUID, qty, weightKG, unitPrice, subtotal float64, seq int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%.3f|%.3f|%.2f|%.2f|%d", productID, qty, weightKG, unitPrice, subtotal, seq)))
	return hex.EncodeToString(sum[:])
}
