package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockDelivery struct {
	mock.Mock
}

func (m *MockDelivery) SendCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	args := m.Called(ctx, email, code, expiresAt)
	return args.Error(0)
}

type SentCode struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

// RecordingDelivery keeps every code it is asked to send.
type RecordingDelivery struct {
	mu   sync.Mutex
	sent []SentCode
	Err  error
}

func (r *RecordingDelivery) SendCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentCode{Email: email, Code: code, ExpiresAt: expiresAt})
	return r.Err
}

func (r *RecordingDelivery) Sent() []SentCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentCode, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *RecordingDelivery) Last() (SentCode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return SentCode{}, false
	}
	return r.sent[len(r.sent)-1], true
}
