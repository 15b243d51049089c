package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"noticenter/internal/domain/notification"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const tableName = "notifications"

var _ notification.NotificationStore = (*SupabaseStore)(nil)

// SupabaseStore implements NotificationStore using the Supabase Go SDK.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed notification store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// supabaseRow is the internal representation for Supabase PostgREST
// insert/update. The stored payload lives in a jsonb data column.
type supabaseRow struct {
	ID             string                     `json:"id,omitempty"`
	Type           string                     `json:"type"`
	NotifiableType string                     `json:"notifiable_type"`
	NotifiableID   string                     `json:"notifiable_id"`
	Status         string                     `json:"status"`
	Data           notification.StoredPayload `json:"data"`
	ReadAt         *string                    `json:"read_at,omitempty"`
	DeletedAt      *string                    `json:"deleted_at,omitempty"`
	CreatedAt      string                     `json:"created_at,omitempty"`
	UpdatedAt      string                     `json:"updated_at,omitempty"`
}

// Create inserts a new notification record and fills in its ID.
func (s *SupabaseStore) Create(ctx context.Context, rec *notification.NotificationRecord) error {
	row := supabaseRow{
		Type:           rec.Type,
		NotifiableType: rec.NotifiableType,
		NotifiableID:   rec.NotifiableID,
		Status:         string(rec.Status),
		Data:           rec.Data,
	}
	if rec.ReadAt != nil {
		ts := rec.ReadAt.UTC().Format(time.RFC3339Nano)
		row.ReadAt = &ts
	}

	data, _, err := s.client.From(tableName).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting notification record: %w", err)
	}

	var results []supabaseRow
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}

	if len(results) > 0 {
		rec.ID = results[0].ID
		if t, err := time.Parse(time.RFC3339Nano, results[0].CreatedAt); err == nil {
			rec.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, results[0].UpdatedAt); err == nil {
			rec.UpdatedAt = t
		}
	}

	return nil
}

// GetByID retrieves a notification record by its ID.
func (s *SupabaseStore) GetByID(ctx context.Context, id string) (*notification.NotificationRecord, error) {
	data, _, err := s.client.From(tableName).Select("*", "exact", false).Eq("id", id).Single().Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification record: %w", err)
	}

	var row supabaseRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("parsing notification record: %w", err)
	}

	return rowToRecord(&row), nil
}

// SetChannelOutcome writes a channel outcome into the stored payload,
// drops the matching queued job, and recomputes the aggregate status.
// Read-modify-write: per-record writers are the channel job handlers, and
// a record has at most one job per channel, so writers never race on the
// same channel entry.
func (s *SupabaseStore) SetChannelOutcome(ctx context.Context, id string, channel notification.Channel, outcome *notification.ChannelOutcome) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if rec.Data.Channels == nil {
		rec.Data.Channels = map[notification.Channel]*notification.ChannelOutcome{}
	}
	rec.Data.Channels[channel] = outcome

	remaining := rec.Data.QueuedJobs[:0]
	for _, job := range rec.Data.QueuedJobs {
		if job.Channel != channel {
			remaining = append(remaining, job)
		}
	}
	rec.Data.QueuedJobs = remaining

	update := map[string]any{
		"data":       rec.Data,
		"status":     string(aggregateStatus(rec)),
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}

	_, _, err = s.client.From(tableName).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("updating channel outcome: %w", err)
	}

	return nil
}

// aggregateStatus derives the record status: pending while queued jobs
// remain, then sent/partial/failed from the recorded outcomes.
func aggregateStatus(rec *notification.NotificationRecord) notification.RecordStatus {
	if len(rec.Data.QueuedJobs) > 0 {
		return notification.StatusPending
	}

	var sent, failed int
	for _, o := range rec.Data.Channels {
		if o == nil || o.Skipped {
			continue
		}
		if o.OK {
			sent++
		} else {
			failed++
		}
	}
	switch {
	case sent > 0 && failed == 0:
		return notification.StatusSent
	case sent > 0:
		return notification.StatusPartial
	case failed > 0:
		return notification.StatusFailed
	default:
		return notification.StatusSkipped
	}
}

// MarkRead sets read_at once. The null guard makes repeat calls no-ops, so
// the first read timestamp is never overwritten.
func (s *SupabaseStore) MarkRead(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, _, err := s.client.From(tableName).
		Update(map[string]any{"read_at": now, "updated_at": now}, "", "").
		Eq("id", id).
		Is("read_at", "null").
		Execute()
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}

	return nil
}

// SoftDelete sets deleted_at once. There is no un-delete.
func (s *SupabaseStore) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, _, err := s.client.From(tableName).
		Update(map[string]any{"deleted_at": now, "updated_at": now}, "", "").
		Eq("id", id).
		Is("deleted_at", "null").
		Execute()
	if err != nil {
		return fmt.Errorf("soft-deleting notification: %w", err)
	}

	return nil
}

// List retrieves notification records with pagination and filtering,
// excluding soft-deleted rows.
func (s *SupabaseStore) List(ctx context.Context, filter notification.ListFilter) ([]*notification.NotificationRecord, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize

	query := s.client.From(tableName).Select("*", "exact", false).Is("deleted_at", "null")

	if filter.NotifiableType != "" {
		query = query.Eq("notifiable_type", filter.NotifiableType)
	}
	if filter.NotifiableID != "" {
		query = query.Eq("notifiable_id", filter.NotifiableID)
	}
	if filter.Type != "" {
		query = query.Eq("type", filter.Type)
	}
	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}
	if filter.UnreadOnly {
		query = query.Is("read_at", "null")
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing notification records: %w", err)
	}

	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("parsing notification list: %w", err)
	}

	records := make([]*notification.NotificationRecord, len(rows))
	for i := range rows {
		records[i] = rowToRecord(&rows[i])
	}

	return records, int(count), nil
}

// ListStale retrieves records stuck in pending for longer than olderThan.
func (s *SupabaseStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*notification.NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	threshold := olderThan.UTC().Format(time.RFC3339Nano)

	query := s.client.From(tableName).
		Select("*", "exact", false).
		Eq("status", string(notification.StatusPending)).
		Is("deleted_at", "null").
		Lt("updated_at", threshold).
		Order("updated_at", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "")

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("listing stale records: %w", err)
	}

	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing stale records: %w", err)
	}

	records := make([]*notification.NotificationRecord, len(rows))
	for i := range rows {
		records[i] = rowToRecord(&rows[i])
	}

	return records, nil
}

// rowToRecord converts a supabaseRow to a NotificationRecord.
func rowToRecord(row *supabaseRow) *notification.NotificationRecord {
	rec := &notification.NotificationRecord{
		ID:             row.ID,
		Type:           row.Type,
		NotifiableType: row.NotifiableType,
		NotifiableID:   row.NotifiableID,
		Status:         notification.RecordStatus(row.Status),
		Data:           row.Data,
	}

	if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, row.UpdatedAt); err == nil {
		rec.UpdatedAt = t
	}
	if row.ReadAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.ReadAt); err == nil {
			rec.ReadAt = &t
		}
	}
	if row.DeletedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.DeletedAt); err == nil {
			rec.DeletedAt = &t
		}
	}

	return rec
}
