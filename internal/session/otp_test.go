package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingsync/internal/config"
	"bookingsync/internal/logger"
	"bookingsync/internal/mailbox"
	"bookingsync/pkg/errors"
)

type fakeOTPMailbox struct {
	mu       sync.Mutex
	polls    int
	readyAt  int // poll count at which the code mail appears
	body     string
	seenUIDs []uint32
}

func (f *fakeOTPMailbox) SearchEnvelopes(ctx context.Context, q mailbox.Query) ([]mailbox.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.polls < f.readyAt {
		return nil, nil
	}
	return []mailbox.Envelope{{UID: 101, Subject: q.Subject}}, nil
}

func (f *fakeOTPMailbox) FetchBody(ctx context.Context, uid uint32) (string, error) {
	return f.body, nil
}

func (f *fakeOTPMailbox) AddKeyword(ctx context.Context, uid uint32, kw string) error    { return nil }
func (f *fakeOTPMailbox) RemoveKeyword(ctx context.Context, uid uint32, kw string) error { return nil }
func (f *fakeOTPMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seenUIDs = append(f.seenUIDs, uid)
	return nil
}
func (f *fakeOTPMailbox) Ping(ctx context.Context) error { return nil }
func (f *fakeOTPMailbox) Close() error                   { return nil }

func otpConfig() config.OTPConfig {
	return config.OTPConfig{
		Enabled:      true,
		Subject:      "KKday Login Verification Code",
		Pattern:      `verification code is (\d{6})`,
		PollInterval: 10 * time.Millisecond,
		MaxWait:      500 * time.Millisecond,
	}
}

func TestWaitForCode(t *testing.T) {
	box := &fakeOTPMailbox{readyAt: 3, body: "Your verification code is 482913. It expires in 5 minutes."}
	r, err := NewOTPRetriever("kkday", otpConfig(), box, logger.NopLogger())
	require.NoError(t, err)

	code, err := r.WaitForCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "482913", code)
	assert.GreaterOrEqual(t, box.polls, 3)
	assert.Equal(t, []uint32{101}, box.seenUIDs)
}

func TestWaitForCodeTimeout(t *testing.T) {
	box := &fakeOTPMailbox{readyAt: 1000}
	r, err := NewOTPRetriever("kkday", otpConfig(), box, logger.NopLogger())
	require.NoError(t, err)

	_, err = r.WaitForCode(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsOTPTimeout(err))
}

func TestWaitForCodeIgnoresNonMatchingBody(t *testing.T) {
	box := &fakeOTPMailbox{readyAt: 1, body: "Welcome to the newsletter"}
	r, err := NewOTPRetriever("kkday", otpConfig(), box, logger.NopLogger())
	require.NoError(t, err)

	_, err = r.WaitForCode(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsOTPTimeout(err))
	assert.Empty(t, box.seenUIDs)
}

func TestNewOTPRetrieverRequiresCaptureGroup(t *testing.T) {
	cfg := otpConfig()
	cfg.Pattern = `\d{6}`
	_, err := NewOTPRetriever("kkday", cfg, &fakeOTPMailbox{}, logger.NopLogger())
	assert.Error(t, err)
}
