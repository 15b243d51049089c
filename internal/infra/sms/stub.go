package sms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// StubProvider accepts every message and records it in memory. It is the
// default in development environments where no SMS credentials exist.
type StubProvider struct {
	mu      sync.Mutex
	sent    []StubMessage
	counter atomic.Int64
}

// StubMessage is one message captured by the stub.
type StubMessage struct {
	To   string
	Body string
}

// NewStubProvider creates an in-memory SMS provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

func (p *StubProvider) Name() string { return "stub" }

func (p *StubProvider) Send(ctx context.Context, to, body string) (string, error) {
	p.mu.Lock()
	p.sent = append(p.sent, StubMessage{To: to, Body: body})
	p.mu.Unlock()

	id := fmt.Sprintf("stub-%d", p.counter.Add(1))
	slog.Debug("stub sms accepted", "to", to, "message_id", id)
	return id, nil
}

// Sent returns a copy of every message the stub has accepted.
func (p *StubProvider) Sent() []StubMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StubMessage, len(p.sent))
	copy(out, p.sent)
	return out
}
