package notification

import (
	"context"
	"time"
)

// NotificationStore defines the contract for persisting notification records.
// Implementations live in infra/store/ (e.g., Supabase).
type NotificationStore interface {
	// Create inserts a new notification record and fills in its ID.
	Create(ctx context.Context, rec *NotificationRecord) error

	// GetByID retrieves a record by its ID. Soft-deleted records are
	// still returned here; listing excludes them.
	GetByID(ctx context.Context, id string) (*NotificationRecord, error)

	// SetChannelOutcome writes a channel outcome into the record's stored
	// payload, removes the matching queued job, and recomputes the
	// aggregate status. A record never holds more than one outcome per
	// channel; later writes for the same channel replace the earlier one.
	SetChannelOutcome(ctx context.Context, id string, channel Channel, outcome *ChannelOutcome) error

	// MarkRead sets read_at exactly once. Calling it again is a no-op.
	MarkRead(ctx context.Context, id string) error

	// SoftDelete sets deleted_at. Deletion is monotonic: there is no
	// un-delete and a second call is a no-op.
	SoftDelete(ctx context.Context, id string) error

	// List retrieves records with pagination and filtering, excluding
	// soft-deleted rows.
	List(ctx context.Context, filter ListFilter) ([]*NotificationRecord, int, error)

	// ListStale retrieves records stuck in pending for longer than the
	// given threshold. Used by the reaper for queue reconciliation.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*NotificationRecord, error)
}
