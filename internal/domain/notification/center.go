package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"noticenter/internal/common"
	"noticenter/internal/i18n"
	"noticenter/internal/metrics"
)

// Center is the dispatch orchestrator. One dispatch call walks
// resolve locale -> build payloads -> send sync or enqueue -> persist.
// Delivery is the primary guarantee; record keeping is best effort.
type Center struct {
	catalog *i18n.Catalog
	email   EmailDispatcher
	push    PushDispatcher
	sms     SMSDispatcher
	store   NotificationStore
	queue   JobQueue
	limiter RecipientRateLimiter
}

// CenterOption configures optional Center collaborators.
type CenterOption func(*Center)

// WithStore attaches a notification store; without one, persistence is
// silently unavailable and intents asking for it are not recorded.
func WithStore(store NotificationStore) CenterOption {
	return func(c *Center) { c.store = store }
}

// WithQueue attaches a job queue for async dispatch.
func WithQueue(queue JobQueue) CenterOption {
	return func(c *Center) { c.queue = queue }
}

// WithRecipientRateLimiter attaches a per-recipient limiter consulted on
// fan-out dispatches. The limiter fails open.
func WithRecipientRateLimiter(l RecipientRateLimiter) CenterOption {
	return func(c *Center) { c.limiter = l }
}

// NewCenter creates a dispatch orchestrator over the given catalog and
// channel dispatchers.
func NewCenter(catalog *i18n.Catalog, email EmailDispatcher, push PushDispatcher, sms SMSDispatcher, opts ...CenterOption) *Center {
	c := &Center{
		catalog: catalog,
		email:   email,
		push:    push,
		sms:     sms,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch delivers one notification intent. Channel-level failures are
// reported in the result, never returned as an error, which makes this safe
// for fire-and-forget paths inside unrelated transactions. The returned
// error covers only unusable intents (validation) and an async dispatch
// without a configured queue.
func (c *Center) Dispatch(ctx context.Context, in *Intent) (*DispatchResult, error) {
	if in == nil {
		return nil, common.NewValidationError("intent is required")
	}
	if in.UseQueue && c.queue == nil {
		return nil, common.NewValidationError("queued dispatch requested but no queue is configured")
	}

	resolved := ResolveLocale(in)
	payloads := c.buildPayloads(in, resolved)

	result := &DispatchResult{}

	if in.UseQueue {
		c.dispatchAsync(ctx, in, resolved, payloads, result)
	} else {
		c.dispatchSync(ctx, in, payloads, result)
	}

	// Persist after the sync sends so the record carries real outcomes.
	// The async path persists inside dispatchAsync, before enqueueing,
	// so jobs can carry the record ID.
	if !in.UseQueue {
		c.persist(ctx, in, resolved, payloads, result)
	}

	return result, nil
}

// channelPayloads holds the built per-channel payloads for one dispatch.
// A nil entry means the channel was not requested; a non-nil entry with a
// skip reason means it was requested but has nothing to send.
type channelPayloads struct {
	email     *EmailMessage
	emailSkip string
	push      *PushMessage
	pushSkip  string
	sms       *SMSMessage
	smsSkip   string
}

// buildPayloads merges intent-level and variant-level channel overrides and
// renders all user-facing strings for the resolved locale.
func (c *Center) buildPayloads(in *Intent, resolved *ResolvedContent) *channelPayloads {
	p := &channelPayloads{}

	title := c.renderText(resolved.Title, resolved.Locale, in.Variables)
	message := c.renderText(resolved.Message, resolved.Locale, in.Variables)

	if opts := resolved.Email; opts != nil {
		if opts.To == "" {
			p.emailSkip = "no email recipient"
		} else {
			subject := opts.Subject
			if subject == "" {
				subject = title
			} else {
				subject = c.renderText(subject, resolved.Locale, in.Variables)
			}
			body := opts.Body
			if body == "" {
				body = message
			} else {
				body = c.renderText(body, resolved.Locale, in.Variables)
			}
			data := opts.Data
			if data == nil {
				data = in.Variables
			}
			p.email = &EmailMessage{
				To:       opts.To,
				Subject:  subject,
				Body:     body,
				Template: opts.Template,
				Data:     data,
			}
		}
	}

	pushOpts := in.Push
	if resolved.Push != nil {
		pushOpts = resolved.Push
		if len(pushOpts.Tokens) == 0 && in.Push != nil {
			// Variants localize content; tokens stay with the intent.
			pushOpts = &PushOptions{
				Tokens:  in.Push.Tokens,
				Title:   resolved.Push.Title,
				Message: resolved.Push.Message,
				Data:    resolved.Push.Data,
			}
		}
	}
	if pushOpts != nil {
		if len(pushOpts.Tokens) == 0 {
			p.pushSkip = "no device tokens"
		} else {
			pushTitle := title
			if pushOpts.Title != "" {
				pushTitle = c.renderText(pushOpts.Title, resolved.Locale, in.Variables)
			}
			pushBody := message
			if pushOpts.Message != "" {
				pushBody = c.renderText(pushOpts.Message, resolved.Locale, in.Variables)
			}
			p.push = &PushMessage{
				Tokens: pushOpts.Tokens,
				Title:  pushTitle,
				Body:   pushBody,
				Data:   pushOpts.Data,
			}
		}
	}

	if in.SMS != nil {
		if in.SMS.To == "" {
			p.smsSkip = "no phone number"
		} else {
			smsBody := message
			if in.SMS.Message != "" {
				smsBody = c.renderText(in.SMS.Message, resolved.Locale, in.Variables)
			}
			p.sms = &SMSMessage{To: in.SMS.To, Body: smsBody}
		}
	}

	return p
}

// renderText turns a stored string into user-facing text: key-shaped strings
// go through the catalog, literals through interpolation only.
func (c *Center) renderText(s, locale string, vars map[string]any) string {
	if s == "" {
		return s
	}
	if c.catalog != nil && i18n.IsTranslationKey(s) {
		return c.catalog.Translate(s, locale, vars)
	}
	return i18n.Interpolate(s, vars)
}

// dispatchSync sends each built payload in sequence and collects outcomes.
func (c *Center) dispatchSync(ctx context.Context, in *Intent, p *channelPayloads, result *DispatchResult) {
	start := time.Now()

	switch {
	case p.email != nil:
		result.Email = c.email.SendEmail(ctx, p.email)
		metrics.RecordDelivery(string(ChannelEmail), deliveryStatus(result.Email))
	case p.emailSkip != "":
		result.Email = SkippedOutcome(p.emailSkip)
	}

	switch {
	case p.push != nil:
		result.Push = c.push.SendPush(ctx, p.push)
		metrics.RecordDelivery(string(ChannelPush), deliveryStatus(result.Push))
	case p.pushSkip != "":
		result.Push = SkippedOutcome(p.pushSkip)
	}

	switch {
	case p.sms != nil:
		result.SMS = c.sms.SendSMS(ctx, p.sms)
		metrics.RecordDelivery(string(ChannelSMS), deliveryStatus(result.SMS))
	case p.smsSkip != "":
		result.SMS = SkippedOutcome(p.smsSkip)
	}

	metrics.RecordDispatch("sync")

	for _, ch := range Channels {
		if o := result.Outcome(ch); o != nil && !o.OK && !o.Skipped {
			slog.Error("channel delivery failed",
				"channel", ch,
				"type", in.Type,
				"error", o.Error,
				"duration", time.Since(start),
			)
		}
	}
}

// dispatchAsync persists first (when asked to) so jobs can carry the record
// ID, then enqueues one job per applicable channel. It returns immediately;
// outcomes are back-filled by the job handler.
func (c *Center) dispatchAsync(ctx context.Context, in *Intent, resolved *ResolvedContent, p *channelPayloads, result *DispatchResult) {
	jobs := make([]*ChannelJob, 0, 3)
	if p.email != nil {
		jobs = append(jobs, &ChannelJob{Channel: ChannelEmail, Email: p.email, NotifiableID: in.NotifiableID, Source: in.Type})
	} else if p.emailSkip != "" {
		result.Email = SkippedOutcome(p.emailSkip)
	}
	if p.push != nil {
		jobs = append(jobs, &ChannelJob{Channel: ChannelPush, Push: p.push, NotifiableID: in.NotifiableID, Source: in.Type})
	} else if p.pushSkip != "" {
		result.Push = SkippedOutcome(p.pushSkip)
	}
	if p.sms != nil {
		jobs = append(jobs, &ChannelJob{Channel: ChannelSMS, SMS: p.sms, NotifiableID: in.NotifiableID, Source: in.Type})
	} else if p.smsSkip != "" {
		result.SMS = SkippedOutcome(p.smsSkip)
	}

	if in.ShouldPersist() && c.store != nil {
		rec := c.buildRecord(in, resolved, result)
		rec.Status = StatusPending
		rec.Data.QueuedJobs = jobs
		if err := c.store.Create(ctx, rec); err != nil {
			// Best-effort record keeping: delivery still proceeds.
			slog.Error("persisting notification record failed", "type", in.Type, "error", err)
		} else {
			result.Persisted = true
			result.NotificationID = rec.ID
			for _, job := range jobs {
				job.RecordID = rec.ID
			}
		}
	}

	result.JobIDs = make(map[Channel]string, len(jobs))
	for _, job := range jobs {
		jobID, err := c.queue.Enqueue(ctx, job, EnqueueOptions{})
		if err != nil {
			slog.Error("enqueuing channel job failed", "channel", job.Channel, "error", err)
			result.setOutcome(job.Channel, FailedOutcome(fmt.Errorf("enqueue: %w", err)))
			continue
		}
		result.Queued = true
		result.JobIDs[job.Channel] = jobID
	}

	metrics.RecordDispatch("queued")
}

// persist writes the notification record for the sync path, carrying the
// real channel outcomes. Failures are logged and do not affect the result.
func (c *Center) persist(ctx context.Context, in *Intent, resolved *ResolvedContent, p *channelPayloads, result *DispatchResult) {
	if !in.ShouldPersist() || c.store == nil {
		return
	}

	rec := c.buildRecord(in, resolved, result)
	rec.Status = recordStatus(result)

	if err := c.store.Create(ctx, rec); err != nil {
		slog.Error("persisting notification record failed", "type", in.Type, "error", err)
		return
	}

	result.Persisted = true
	result.NotificationID = rec.ID
}

// buildRecord assembles the durable record from the resolved localization.
// The translation maps always contain the default locale.
func (c *Center) buildRecord(in *Intent, resolved *ResolvedContent, result *DispatchResult) *NotificationRecord {
	payload := StoredPayload{
		Locale:              resolved.Locale,
		DefaultLocale:       resolved.DefaultLocale,
		Title:               resolved.Title,
		Message:             resolved.Message,
		TitleIsKey:          i18n.IsTranslationKey(resolved.Title),
		MessageIsKey:        i18n.IsTranslationKey(resolved.Message),
		TitleTranslations:   c.translationsFor(in, resolved, func(v *LocalizedVariant) string { return v.Title }, resolved.Title),
		MessageTranslations: c.translationsFor(in, resolved, func(v *LocalizedVariant) string { return v.Message }, resolved.Message),
		Metadata:            in.Metadata,
	}

	payload.Channels = map[Channel]*ChannelOutcome{}
	for _, ch := range Channels {
		if o := result.Outcome(ch); o != nil {
			payload.Channels[ch] = o
		}
	}

	now := time.Now().UTC()
	rec := &NotificationRecord{
		Type:           in.Type,
		NotifiableType: in.NotifiableType,
		NotifiableID:   in.NotifiableID,
		Data:           payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.MarkAsRead {
		rec.ReadAt = &now
	}
	return rec
}

// translationsFor builds the per-locale rendered strings for one field.
// The default locale entry is always populated, falling back through the
// variant chain to the base string.
func (c *Center) translationsFor(in *Intent, resolved *ResolvedContent, pick func(*LocalizedVariant) string, base string) map[string]string {
	out := map[string]string{}

	for locale, variant := range in.LocalizedContent {
		locale = i18n.NormalizeLocale(locale)
		if s := pick(&variant); s != "" {
			out[locale] = c.renderText(s, locale, in.Variables)
		}
	}

	if _, ok := out[resolved.DefaultLocale]; !ok {
		out[resolved.DefaultLocale] = c.renderText(base, resolved.DefaultLocale, in.Variables)
	}
	if _, ok := out[resolved.Locale]; !ok {
		out[resolved.Locale] = c.renderText(base, resolved.Locale, in.Variables)
	}

	return out
}

// NotifyUser dispatches one intent to a single recipient, filling in the
// recipient's locale, email address, device tokens, and phone number where
// the intent does not already carry them.
func (c *Center) NotifyUser(ctx context.Context, user *Recipient, in *Intent) (*DispatchResult, error) {
	if user == nil {
		return nil, common.NewValidationError("recipient is required")
	}

	if !user.NotificationsEnabled {
		result := &DispatchResult{}
		for _, ch := range Channels {
			result.setOutcome(ch, SkippedOutcome("notifications disabled"))
		}
		return result, nil
	}

	if c.limiter != nil && user.ID != "" {
		allowed, err := c.limiter.Allow(ctx, user.ID)
		if err != nil {
			// Fail open: a limiter outage must not block delivery.
			slog.Error("recipient rate limit check failed, proceeding", "recipient", user.ID, "error", err)
		} else if !allowed {
			return nil, common.NewValidationError(fmt.Sprintf("rate limit exceeded for recipient: %s", user.ID))
		}
	}

	scoped := *in
	if scoped.TargetLocale == "" {
		scoped.TargetLocale = user.Locale
	}
	if scoped.NotifiableID == "" {
		scoped.NotifiableID = user.ID
	}
	if scoped.NotifiableType == "" {
		scoped.NotifiableType = "user"
	}
	if scoped.Email != nil && scoped.Email.To == "" {
		emailOpts := *scoped.Email
		emailOpts.To = user.Email
		scoped.Email = &emailOpts
	}
	if scoped.Push != nil && len(scoped.Push.Tokens) == 0 {
		pushOpts := *scoped.Push
		pushOpts.Tokens = user.DeviceTokens
		scoped.Push = &pushOpts
	}
	if scoped.SMS != nil && scoped.SMS.To == "" {
		smsOpts := *scoped.SMS
		smsOpts.To = user.PhoneNumber
		scoped.SMS = &smsOpts
	}

	return c.Dispatch(ctx, &scoped)
}

// NotifyMany fans one intent out to many recipients. Dispatches run
// concurrently with no ordering guarantee; results are indexed by recipient
// ID. Per-recipient errors are collected, not short-circuited.
func (c *Center) NotifyMany(ctx context.Context, users []*Recipient, in *Intent) map[string]*DispatchResult {
	results := make(map[string]*DispatchResult, len(users))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, user := range users {
		wg.Add(1)
		go func(u *Recipient) {
			defer wg.Done()
			res, err := c.NotifyUser(ctx, u, in)
			if err != nil {
				slog.Error("fan-out dispatch failed", "recipient", u.ID, "error", err)
				res = &DispatchResult{}
			}
			mu.Lock()
			results[u.ID] = res
			mu.Unlock()
		}(user)
	}
	wg.Wait()

	return results
}

// deliveryStatus flattens an outcome into a metrics label.
func deliveryStatus(o *ChannelOutcome) string {
	switch {
	case o == nil:
		return "none"
	case o.Skipped:
		return "skipped"
	case o.OK:
		return "sent"
	default:
		return "failed"
	}
}

// recordStatus computes the aggregate record status from sync outcomes.
func recordStatus(result *DispatchResult) RecordStatus {
	var sent, failed int
	for _, ch := range Channels {
		o := result.Outcome(ch)
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
		return StatusSent
	case sent > 0:
		return StatusPartial
	case failed > 0:
		return StatusFailed
	default:
		return StatusSkipped
	}
}
