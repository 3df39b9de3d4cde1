package redeem

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

const maxFieldLen = 100

// Both intake surfaces validate through these, so the rules cannot drift
// between the web form and the slash command.
var (
	keyPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	invitePattern = regexp.MustCompile(`^https://discord\.gg/[A-Za-z0-9]+$`)
)

// validateDraft checks syntax only. Business state (key usage, cooldowns) is
// checked later by the service. Returns a ValidationError listing every
// violated rule, or nil.
func validateDraft(d Draft) error {
	var violations []string

	if n := utf8.RuneCountInString(d.Name); n < 1 || n > maxFieldLen {
		violations = append(violations, fmt.Sprintf("name must be 1-%d characters", maxFieldLen))
	}

	if n := len(d.RedeemKey); n < 1 || n > maxFieldLen {
		violations = append(violations, fmt.Sprintf("redeem key must be 1-%d characters", maxFieldLen))
	} else if !keyPattern.MatchString(d.RedeemKey) {
		violations = append(violations, "redeem key may only contain letters, digits, hyphens and underscores")
	}

	if !invitePattern.MatchString(d.InviteLink) {
		violations = append(violations, "invite link must look like https://discord.gg/yourInvite")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
