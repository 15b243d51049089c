package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noticenter/internal/i18n"
)

// --- fakes ---

type fakeEmail struct {
	mu      sync.Mutex
	sent    []*EmailMessage
	outcome *ChannelOutcome
}

func (f *fakeEmail) SendEmail(ctx context.Context, msg *EmailMessage) *ChannelOutcome {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.outcome != nil {
		return f.outcome
	}
	return SentOutcome(1)
}

type fakePush struct {
	mu      sync.Mutex
	sent    []*PushMessage
	outcome *ChannelOutcome
}

func (f *fakePush) SendPush(ctx context.Context, msg *PushMessage) *ChannelOutcome {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.outcome != nil {
		return f.outcome
	}
	return SentOutcome(len(msg.Tokens))
}

type fakeSMS struct {
	mu      sync.Mutex
	sent    []*SMSMessage
	outcome *ChannelOutcome
}

func (f *fakeSMS) SendSMS(ctx context.Context, msg *SMSMessage) *ChannelOutcome {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.outcome != nil {
		return f.outcome
	}
	return SentOutcome(1)
}

type fakeStore struct {
	mu        sync.Mutex
	records   map[string]*NotificationRecord
	nextID    int
	createErr error
	outcomes  []Channel
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*NotificationRecord{}}
}

func (f *fakeStore) Create(ctx context.Context, rec *NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	rec.ID = fmt.Sprintf("rec-%d", f.nextID)
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

func (f *fakeStore) SetChannelOutcome(ctx context.Context, id string, channel Channel, outcome *ChannelOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return errors.New("not found")
	}
	if rec.Data.Channels == nil {
		rec.Data.Channels = map[Channel]*ChannelOutcome{}
	}
	rec.Data.Channels[channel] = outcome
	f.outcomes = append(f.outcomes, channel)
	return nil
}

func (f *fakeStore) MarkRead(ctx context.Context, id string) error   { return nil }
func (f *fakeStore) SoftDelete(ctx context.Context, id string) error { return nil }

func (f *fakeStore) List(ctx context.Context, filter ListFilter) ([]*NotificationRecord, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*NotificationRecord, error) {
	return nil, nil
}

type fakeQueue struct {
	mu     sync.Mutex
	jobs   []*ChannelJob
	nextID int
	err    error
}

func (f *fakeQueue) Enqueue(ctx context.Context, job *ChannelJob, opts EnqueueOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.nextID++
	f.jobs = append(f.jobs, job)
	return fmt.Sprintf("job-%d", f.nextID), nil
}

func (f *fakeQueue) Stats(ctx context.Context, channel Channel) (*QueueStats, error) {
	return &QueueStats{}, nil
}

func (f *fakeQueue) Clear(ctx context.Context, channel Channel) error { return nil }

func testCatalog(t *testing.T) *i18n.Catalog {
	t.Helper()
	c := i18n.NewCatalog("en")
	c.AddTranslations("en", map[string]any{
		"messages": map[string]any{
			"welcome": map[string]any{
				"title": "Welcome {{name}}",
				"body":  "Glad to have you, {{name}}.",
			},
		},
	})
	c.AddTranslations("ar", map[string]any{
		"messages": map[string]any{
			"welcome": map[string]any{
				"title": "مرحبا {{name}}",
			},
		},
	})
	return c
}

// --- tests ---

func TestCenter_DispatchRendersLiteralWithVariables(t *testing.T) {
	email := &fakeEmail{}
	center := NewCenter(testCatalog(t), email, &fakePush{}, &fakeSMS{})

	result, err := center.Dispatch(context.Background(), &Intent{
		Title:     "Welcome {{name}}",
		Message:   "Hi {{name}}, you are in.",
		Variables: map[string]any{"name": "Ada"},
		Email:     &EmailOptions{To: "ada@example.com"},
	})
	require.NoError(t, err)

	require.True(t, result.Email.OK)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "Welcome Ada", email.sent[0].Subject)
	assert.Equal(t, "Hi Ada, you are in.", email.sent[0].Body)
}

func TestCenter_DispatchTranslatesKeys(t *testing.T) {
	push := &fakePush{}
	center := NewCenter(testCatalog(t), &fakeEmail{}, push, &fakeSMS{})

	result, err := center.Dispatch(context.Background(), &Intent{
		Title:        "messages.welcome.title",
		Message:      "messages.welcome.body",
		TargetLocale: "ar",
		Variables:    map[string]any{"name": "Ada"},
		Push:         &PushOptions{Tokens: TokenList{"tok-1"}},
	})
	require.NoError(t, err)

	require.True(t, result.Push.OK)
	require.Len(t, push.sent, 1)
	assert.Equal(t, "مرحبا Ada", push.sent[0].Title)
	// Arabic has no body translation; falls back to the default locale.
	assert.Equal(t, "Glad to have you, Ada.", push.sent[0].Body)
}

func TestCenter_LocalizedVariantOverridesBase(t *testing.T) {
	push := &fakePush{}
	center := NewCenter(testCatalog(t), &fakeEmail{}, push, &fakeSMS{})

	result, err := center.Dispatch(context.Background(), &Intent{
		Title:        "Hello",
		Message:      "Base message",
		TargetLocale: "ar",
		LocalizedContent: map[string]LocalizedVariant{
			"ar": {Title: "مرحبا", Message: "رسالة"},
		},
		Push: &PushOptions{Tokens: TokenList{"tok-1"}},
	})
	require.NoError(t, err)

	require.True(t, result.Push.OK)
	assert.Equal(t, "مرحبا", push.sent[0].Title)
	assert.Equal(t, "رسالة", push.sent[0].Body)
}

func TestCenter_EmptyPushTokensSkippedWithoutError(t *testing.T) {
	push := &fakePush{}
	center := NewCenter(testCatalog(t), &fakeEmail{}, push, &fakeSMS{})

	result, err := center.Dispatch(context.Background(), &Intent{
		Title: "Hello",
		Push:  &PushOptions{},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Push)
	assert.True(t, result.Push.Skipped)
	assert.Empty(t, push.sent, "dispatcher must not be called with no tokens")
}

func TestCenter_ChannelFailureDoesNotFailDispatch(t *testing.T) {
	email := &fakeEmail{outcome: FailedOutcome(errors.New("provider down"))}
	sms := &fakeSMS{}
	center := NewCenter(testCatalog(t), email, &fakePush{}, sms)

	result, err := center.Dispatch(context.Background(), &Intent{
		Title: "Hello",
		Email: &EmailOptions{To: "a@b.c"},
		SMS:   &SMSOptions{To: "+15550001111"},
	})
	require.NoError(t, err, "channel failures are reported, not raised")

	assert.False(t, result.Email.OK)
	assert.True(t, result.SMS.OK, "other channels still deliver")
}

func TestCenter_ValidationErrors(t *testing.T) {
	center := NewCenter(testCatalog(t), &fakeEmail{}, &fakePush{}, &fakeSMS{})

	_, err := center.Dispatch(context.Background(), nil)
	require.Error(t, err)

	_, err = center.Dispatch(context.Background(), &Intent{Title: "t", UseQueue: true})
	require.Error(t, err, "queued dispatch without a queue is a validation error")
}

func TestCenter_ContentlessIntentDegradesToSkip(t *testing.T) {
	push := &fakePush{}
	center := NewCenter(testCatalog(t), &fakeEmail{}, push, &fakeSMS{})

	// No title, no message, no tokens: nothing to send is a skip on the
	// requested channel, never a dispatch-level error.
	result, err := center.Dispatch(context.Background(), &Intent{
		Push: &PushOptions{Tokens: TokenList{}},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Push)
	assert.False(t, result.Push.OK)
	assert.True(t, result.Push.Skipped)
	assert.Empty(t, push.sent)
	assert.Nil(t, result.Email)
	assert.Nil(t, result.SMS)
}

func TestCenter_SyncDispatchPersistsOutcomes(t *testing.T) {
	store := newFakeStore()
	center := NewCenter(testCatalog(t), &fakeEmail{}, &fakePush{}, &fakeSMS{}, WithStore(store))

	result, err := center.Dispatch(context.Background(), &Intent{
		Title:          "Hello",
		Email:          &EmailOptions{To: "a@b.c"},
		NotifiableType: "user",
		NotifiableID:   "user-1",
	})
	require.NoError(t, err)

	require.True(t, result.Persisted)
	rec, err := store.GetByID(context.Background(), result.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, rec.Status)
	require.Contains(t, rec.Data.Channels, ChannelEmail)
	assert.True(t, rec.Data.Channels[ChannelEmail].OK)
}

func TestCenter_AllSkippedPersistsSkippedStatus(t *testing.T) {
	store := newFakeStore()
	center := NewCenter(testCatalog(t), &fakeEmail{}, &fakePush{}, &fakeSMS{}, WithStore(store))

	result, err := center.Dispatch(context.Background(), &Intent{
		Title:          "Hello",
		Push:           &PushOptions{},
		NotifiableType: "user",
		NotifiableID:   "user-1",
	})
	require.NoError(t, err)

	require.True(t, result.Persisted)
	rec, err := store.GetByID(context.Background(), result.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, rec.Status, "nothing sent and nothing failed is not a successful send")
}

func TestCenter_PersistFailureDoesNotAffectDelivery(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("db down")
	email := &fakeEmail{}
	center := NewCenter(testCatalog(t), email, &fakePush{}, &fakeSMS{}, WithStore(store))

	result, err := center.Dispatch(context.Background(), &Intent{
		Title:          "Hello",
		Email:          &EmailOptions{To: "a@b.c"},
		NotifiableType: "user",
		NotifiableID:   "user-1",
	})
	require.NoError(t, err)

	assert.False(t, result.Persisted)
	assert.Empty(t, result.NotificationID)
	assert.True(t, result.Email.OK, "delivery succeeds even when record keeping fails")
	assert.Len(t, email.sent, 1)
}

func TestCenter_PersistSkippedWithoutNotifiable(t *testing.T) {
	store := newFakeStore()
	center := NewCenter(testCatalog(t), &fakeEmail{}, &fakePush{}, &fakeSMS{}, WithStore(store))

	result, err := center.Dispatch(context.Background(), &Intent{
		Title: "Hello",
		Email: &EmailOptions{To: "a@b.c"},
	})
	require.NoError(t, err)

	assert.False(t, result.Persisted)
	assert.Empty(t, store.records)
}

func TestCenter_AsyncDispatchEnqueuesJobsWithRecordID(t *testing.T) {
	store := newFakeStore()
	queue := &fakeQueue{}
	center := NewCenter(testCatalog(t), &fakeEmail{}, &fakePush{}, &fakeSMS{},
		WithStore(store), WithQueue(queue))

	result, err := center.Dispatch(context.Background(), &Intent{
		Title:          "Hello",
		Email:          &EmailOptions{To: "a@b.c"},
		Push:           &PushOptions{Tokens: TokenList{"tok-1"}},
		NotifiableType: "user",
		NotifiableID:   "user-1",
		UseQueue:       true,
	})
	require.NoError(t, err)

	assert.True(t, result.Queued)
	assert.True(t, result.Persisted)
	assert.Len(t, result.JobIDs, 2)

	require.Len(t, queue.jobs, 2)
	for _, job := range queue.jobs {
		assert.Equal(t, result.NotificationID, job.RecordID,
			"queued jobs must carry the record ID for outcome back-fill")
	}

	rec, err := store.GetByID(context.Background(), result.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status, "async records start pending")
	assert.Len(t, rec.Data.QueuedJobs, 2)
}

func TestCenter_AsyncEnqueueFailureReportedPerChannel(t *testing.T) {
	queue := &fakeQueue{err: errors.New("redis down")}
	center := NewCenter(testCatalog(t), &fakeEmail{}, &fakePush{}, &fakeSMS{}, WithQueue(queue))

	result, err := center.Dispatch(context.Background(), &Intent{
		Title:    "Hello",
		Email:    &EmailOptions{To: "a@b.c"},
		UseQueue: true,
	})
	require.NoError(t, err)

	assert.False(t, result.Queued)
	require.NotNil(t, result.Email)
	assert.False(t, result.Email.OK)
	assert.Contains(t, result.Email.Error, "enqueue")
}

func TestCenter_NotifyUserFillsRecipientFields(t *testing.T) {
	email := &fakeEmail{}
	push := &fakePush{}
	sms := &fakeSMS{}
	center := NewCenter(testCatalog(t), email, push, sms)

	user := &Recipient{
		ID:                   "user-1",
		Email:                "ada@example.com",
		Locale:               "ar",
		DeviceTokens:         TokenList{"tok-1", "tok-2"},
		PhoneNumber:          "+15550001111",
		NotificationsEnabled: true,
	}

	result, err := center.NotifyUser(context.Background(), user, &Intent{
		Title:   "messages.welcome.title",
		Message: "hi",
		Email:   &EmailOptions{},
		Push:    &PushOptions{},
		SMS:     &SMSOptions{},
		Variables: map[string]any{
			"name": "Ada",
		},
	})
	require.NoError(t, err)

	require.True(t, result.Email.OK)
	assert.Equal(t, "ada@example.com", email.sent[0].To)
	assert.Equal(t, []string(user.DeviceTokens), push.sent[0].Tokens)
	assert.Equal(t, "+15550001111", sms.sent[0].To)
	assert.Equal(t, "مرحبا Ada", push.sent[0].Title, "recipient locale drives resolution")
}

func TestCenter_NotifyUserDisabledSkipsAllChannels(t *testing.T) {
	email := &fakeEmail{}
	center := NewCenter(testCatalog(t), email, &fakePush{}, &fakeSMS{})

	user := &Recipient{ID: "user-1", Email: "a@b.c", NotificationsEnabled: false}

	result, err := center.NotifyUser(context.Background(), user, &Intent{
		Title: "Hello",
		Email: &EmailOptions{},
	})
	require.NoError(t, err)

	for _, ch := range Channels {
		o := result.Outcome(ch)
		require.NotNil(t, o)
		assert.True(t, o.Skipped)
	}
	assert.Empty(t, email.sent)
}

func TestCenter_NotifyManyCollectsPerRecipientResults(t *testing.T) {
	email := &fakeEmail{}
	center := NewCenter(testCatalog(t), email, &fakePush{}, &fakeSMS{})

	users := []*Recipient{
		{ID: "u1", Email: "u1@example.com", NotificationsEnabled: true},
		{ID: "u2", Email: "u2@example.com", NotificationsEnabled: true},
		{ID: "u3", Email: "u3@example.com", NotificationsEnabled: false},
	}

	results := center.NotifyMany(context.Background(), users, &Intent{
		Title: "Hello",
		Email: &EmailOptions{},
	})

	require.Len(t, results, 3)
	assert.True(t, results["u1"].Email.OK)
	assert.True(t, results["u2"].Email.OK)
	assert.True(t, results["u3"].Email.Skipped)
	assert.Len(t, email.sent, 2)
}
