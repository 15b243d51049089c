package notification

import "time"

// RecordStatus tracks the aggregate delivery state of a persisted record.
type RecordStatus string

const (
	// StatusPending marks records with queued channel jobs whose outcomes
	// have not been written back yet.
	StatusPending RecordStatus = "pending"
	StatusSent    RecordStatus = "sent"
	StatusPartial RecordStatus = "partial"
	StatusFailed  RecordStatus = "failed"

	// StatusSkipped marks records where every requested channel had
	// nothing to send: no delivery happened, but nothing failed either.
	StatusSkipped RecordStatus = "skipped"
)

// NotificationRecord is the persisted, auditable record of one dispatch.
// Records are soft-deleted only, never physically removed.
type NotificationRecord struct {
	ID             string        `json:"id"`
	Type           string        `json:"type"`
	NotifiableType string        `json:"notifiable_type"`
	NotifiableID   string        `json:"notifiable_id"`
	Status         RecordStatus  `json:"status"`
	Data           StoredPayload `json:"data"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// StoredPayload is the durable content contract. Title and Message keep
// whatever the dispatch resolved to (translation key or literal); the
// translation maps always contain at least the default locale, so the record
// can be re-rendered for any reader. TitleIsKey/MessageIsKey are explicit
// discriminants so readers need not rely on the key-shape heuristic.
type StoredPayload struct {
	Locale              string                      `json:"locale"`
	DefaultLocale       string                      `json:"default_locale"`
	Title               string                      `json:"title"`
	Message             string                      `json:"message"`
	TitleIsKey          bool                        `json:"title_is_key,omitempty"`
	MessageIsKey        bool                        `json:"message_is_key,omitempty"`
	TitleTranslations   map[string]string           `json:"title_translations"`
	MessageTranslations map[string]string           `json:"message_translations"`
	Metadata            map[string]any              `json:"metadata,omitempty"`
	Channels            map[Channel]*ChannelOutcome `json:"channels,omitempty"`

	// QueuedJobs holds the built channel jobs for async dispatches until
	// their outcomes arrive. The reaper re-enqueues from here, so the
	// record stays the source of truth even if Redis loses the job.
	QueuedJobs []*ChannelJob `json:"queued_jobs,omitempty"`
}

// ListFilter defines pagination and filtering options for listing records.
type ListFilter struct {
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
	NotifiableType string `form:"notifiable_type"`
	NotifiableID   string `form:"notifiable_id"`
	Type           string `form:"type"`
	Status         string `form:"status"`
	UnreadOnly     bool   `form:"unread_only"`
}

// ListResponse wraps a paginated list of notification records.
type ListResponse struct {
	Notifications []*NotificationRecord `json:"notifications"`
	Total         int                   `json:"total"`
	Page          int                   `json:"page"`
	PageSize      int                   `json:"page_size"`
}
