package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flor3z/redeem-bot/internal/redeem"
	"github.com/flor3z/redeem-bot/internal/storage"
)

func TestParseDecisionID(t *testing.T) {
	decision, id, err := parseDecisionID("decide:approve:42")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusApproved, decision)
	assert.Equal(t, int64(42), id)

	decision, id, err = parseDecisionID("decide:reject:7")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusRejected, decision)
	assert.Equal(t, int64(7), id)

	for _, bad := range []string{"decide:approve", "decide:banana:1", "decide:approve:x", "other:approve:1:2"} {
		_, _, err := parseDecisionID(bad)
		assert.Error(t, err, bad)
	}
}

func TestSubmitFailureMessage(t *testing.T) {
	msg := submitFailureMessage(&redeem.ValidationError{
		Violations: []string{"name must be 1-100 characters", "invite link must look like https://discord.gg/yourInvite"},
	})
	assert.Contains(t, msg, "name must be")
	assert.Contains(t, msg, "invite link")

	assert.Contains(t, submitFailureMessage(redeem.ErrDuplicateKey), "already been used")
	assert.Contains(t, submitFailureMessage(redeem.ErrRateLimited), "wait")
}
