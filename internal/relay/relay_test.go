package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mail-relay/internal/email"
	"github.com/shineum/mail-relay/internal/provider"
)

// fakeProvider records calls and returns a fixed error.
type fakeProvider struct {
	err   error
	calls int
	last  *email.Message
}

func (f *fakeProvider) Send(_ context.Context, msg *email.Message) error {
	f.calls++
	f.last = msg
	return f.err
}

func (f *fakeProvider) Name() string { return "fake" }

type sendObservation struct {
	provider string
	outcome  string
}

type recordingRecorder struct {
	mu  sync.Mutex
	got []sendObservation
}

func (r *recordingRecorder) ObserveSend(provider, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, sendObservation{provider: provider, outcome: outcome})
}

func TestSend_Success(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	rec := &recordingRecorder{}
	svc := NewService(p, nil, rec)

	msg := &email.Message{Subject: "s", Body: "b", Recipients: []string{"a@example.com", "b@example.com"}}
	res, err := svc.Send(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, res.Recipients)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "fake", res.Provider)
	assert.Equal(t, []sendObservation{{provider: "fake", outcome: OutcomeSuccess}}, rec.got)
}

func TestSend_NoRecipientsNeverReachesProvider(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	rec := &recordingRecorder{}
	svc := NewService(p, nil, rec)

	_, err := svc.Send(context.Background(), &email.Message{Subject: "s", Body: "b"})
	require.ErrorIs(t, err, ErrNoRecipients)

	_, err = svc.Send(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoRecipients)

	assert.Zero(t, p.calls)
	assert.Len(t, rec.got, 2)
	assert.Equal(t, OutcomeInvalid, rec.got[0].outcome)
}

func TestSend_ProviderErrorsPassThrough(t *testing.T) {
	t.Parallel()

	authErr := fmt.Errorf("%w: 535 bad credentials", provider.ErrTransportAuth)
	p := &fakeProvider{err: authErr}
	rec := &recordingRecorder{}
	svc := NewService(p, nil, rec)

	res, err := svc.Send(context.Background(), &email.Message{Recipients: []string{"a@example.com"}})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, provider.ErrTransportAuth)
	assert.Equal(t, OutcomeAuthError, rec.got[0].outcome)
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: OutcomeSuccess},
		{name: "attachment", err: &email.ValidationError{Filename: "x", Err: errors.New("bad")}, want: OutcomeInvalid},
		{name: "no recipients", err: ErrNoRecipients, want: OutcomeInvalid},
		{name: "auth", err: fmt.Errorf("%w: x", provider.ErrTransportAuth), want: OutcomeAuthError},
		{name: "protocol", err: fmt.Errorf("%w: x", provider.ErrTransportProtocol), want: OutcomeProtocolError},
		{name: "other", err: errors.New("boom"), want: OutcomeError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}
