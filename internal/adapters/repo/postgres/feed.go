package postgres

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenrril/pdvhub/internal/domain"
)

// afterCursor restricts a feed query to rows strictly past the cursor in
// the (updated_at, id) total order the feed is served in.
func afterCursor(q *gorm.DB, cur domain.TypeCursor) *gorm.DB {
	if cur.IsZero() {
		return q
	}
	if cur.ID == uuid.Nil {
		// Bare-timestamp cursors from older clients have no tie-break id;
		// they keep the strict updated_at > since contract.
		return q.Where("updated_at > ?", cur.TS)
	}
	return q.Where("updated_at > ? OR (updated_at = ? AND id > ?)", cur.TS, cur.TS, cur.ID)
}
