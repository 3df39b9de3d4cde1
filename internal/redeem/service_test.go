package redeem

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flor3z/redeem-bot/internal/storage"
)

// recordingNotifier captures notifier calls for assertions.
type recordingNotifier struct {
	mu      sync.Mutex
	created []int64
	changed []int64
}

func (n *recordingNotifier) OnCreated(_ context.Context, req *storage.RedeemRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, req.ID)
}

func (n *recordingNotifier) OnStatusChanged(_ context.Context, req *storage.RedeemRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, req.ID)
}

func defaultPolicy() Policy {
	return Policy{
		SubmitCooldown: 10 * time.Minute,
		OriginWindow:   15 * time.Minute,
		OriginMax:      3,
	}
}

func newTestService(t *testing.T, notifier Notifier) (*Service, *time.Time) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc := NewService(repo, notifier, defaultPolicy(), "support@example.com")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func validDraft(key string) Draft {
	return Draft{
		Name:       "Alice",
		RedeemKey:  key,
		InviteLink: "https://discord.gg/xyz",
	}
}

func TestSubmitHappyPath(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _ := newTestService(t, notifier)
	ctx := context.Background()

	req, err := svc.Submit(ctx, validDraft("AAA-111"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), req.ID)
	assert.Equal(t, storage.StatusPending, req.Status)
	assert.Equal(t, "support@example.com", req.ContactEmail)
	assert.Equal(t, []int64{1}, notifier.created)
}

func TestSubmitRejectsDuplicateKey(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, validDraft("AAA-111"))
	require.NoError(t, err)

	draft := validDraft("AAA-111")
	draft.Name = "Bob"
	_, err = svc.Submit(ctx, draft)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestKeyStaysBurnedAfterRejection(t *testing.T) {
	// A rejected request does not free its key: the submitter cannot retry
	// with a corrected invite link under the same key. Deliberate behavior.
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	req, err := svc.Submit(ctx, validDraft("AAA-111"))
	require.NoError(t, err)
	require.NoError(t, svc.Decide(ctx, req.ID, storage.StatusRejected))

	_, err = svc.Submit(ctx, validDraft("AAA-111"))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestSubmitValidationListsEveryViolation(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Submit(context.Background(), Draft{
		Name:       "",
		RedeemKey:  "has spaces!",
		InviteLink: "http://discord.gg/abc123",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 3)
}

func TestInviteLinkShape(t *testing.T) {
	cases := []struct {
		invite string
		ok     bool
	}{
		{"https://discord.gg/abc123", true},
		{"https://discord.gg/XyZ", true},
		{"http://discord.gg/abc123", false},
		{"https://discordapp.com/invite/abc123", false},
		{"https://discord.gg/", false},
		{"https://discord.gg/abc 123", false},
		{"discord.gg/abc123", false},
	}

	for i, tc := range cases {
		t.Run(tc.invite, func(t *testing.T) {
			svc, _ := newTestService(t, nil)
			draft := validDraft(fmt.Sprintf("KEY-%d", i))
			draft.InviteLink = tc.invite

			_, err := svc.Submit(context.Background(), draft)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
			}
		})
	}
}

func TestDecideIsTerminal(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _ := newTestService(t, notifier)
	ctx := context.Background()

	req, err := svc.Submit(ctx, validDraft("AAA-111"))
	require.NoError(t, err)

	require.NoError(t, svc.Decide(ctx, req.ID, storage.StatusApproved))

	got, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusApproved, got.Status)

	// Second decision fails no matter the direction.
	assert.ErrorIs(t, svc.Decide(ctx, req.ID, storage.StatusRejected), ErrAlreadyDecided)
	assert.Equal(t, []int64{req.ID}, notifier.changed)

	assert.ErrorIs(t, svc.Decide(ctx, 99, storage.StatusApproved), ErrNotFound)
}

func TestListPendingExcludesDecided(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.Submit(ctx, validDraft("KEY-1"))
	require.NoError(t, err)

	draft := validDraft("KEY-2")
	draft.Origin = "203.0.113.7"
	second, err := svc.Submit(ctx, draft)
	require.NoError(t, err)

	require.NoError(t, svc.Decide(ctx, first.ID, storage.StatusApproved))

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestSubmitterCooldownWindow(t *testing.T) {
	svc, now := newTestService(t, nil)
	ctx := context.Background()

	draft := validDraft("KEY-1")
	draft.SubmitterID = "user-42"
	_, err := svc.Submit(ctx, draft)
	require.NoError(t, err)

	// 5 minutes later: still inside the 10-minute window.
	*now = now.Add(5 * time.Minute)
	draft = validDraft("KEY-2")
	draft.SubmitterID = "user-42"
	_, err = svc.Submit(ctx, draft)
	assert.ErrorIs(t, err, ErrRateLimited)

	// A different submitter is unaffected.
	draft = validDraft("KEY-3")
	draft.SubmitterID = "user-99"
	_, err = svc.Submit(ctx, draft)
	assert.NoError(t, err)

	// 11 minutes after the first submission the window has passed.
	*now = now.Add(6 * time.Minute)
	draft = validDraft("KEY-4")
	draft.SubmitterID = "user-42"
	_, err = svc.Submit(ctx, draft)
	assert.NoError(t, err)
}

func TestOriginWindowCapsAcceptedRequests(t *testing.T) {
	svc, now := newTestService(t, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		draft := validDraft(fmt.Sprintf("KEY-%d", i))
		draft.Origin = "203.0.113.7"
		_, err := svc.Submit(ctx, draft)
		require.NoError(t, err, "submission %d should be accepted", i)
		*now = now.Add(time.Minute)
	}

	// Fourth from the same origin inside 15 minutes is rejected.
	draft := validDraft("KEY-4")
	draft.Origin = "203.0.113.7"
	_, err := svc.Submit(ctx, draft)
	assert.ErrorIs(t, err, ErrRateLimited)

	// A different origin is unaffected.
	draft = validDraft("KEY-5")
	draft.Origin = "198.51.100.1"
	_, err = svc.Submit(ctx, draft)
	assert.NoError(t, err)

	// Once the lookback window has drained, the origin may submit again.
	*now = now.Add(16 * time.Minute)
	draft = validDraft("KEY-6")
	draft.Origin = "203.0.113.7"
	_, err = svc.Submit(ctx, draft)
	assert.NoError(t, err)
}

func TestThrottlePoliciesAreIndependent(t *testing.T) {
	svc, now := newTestService(t, nil)
	ctx := context.Background()

	// A command submission does not count toward any origin window.
	draft := validDraft("KEY-1")
	draft.SubmitterID = "user-42"
	_, err := svc.Submit(ctx, draft)
	require.NoError(t, err)

	*now = now.Add(time.Minute)

	// A form submission from some origin is not blocked by the user's
	// cooldown and vice versa.
	draft = validDraft("KEY-2")
	draft.Origin = "203.0.113.7"
	_, err = svc.Submit(ctx, draft)
	assert.NoError(t, err)
}
