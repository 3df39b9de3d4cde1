package redeem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flor3z/redeem-bot/internal/storage"
)

// Notifier surfaces new and updated requests to a human reviewer. Both hooks
// are fire-and-forget from the service's point of view: a notifier failure
// never fails the submission or decision that triggered it.
type Notifier interface {
	OnCreated(ctx context.Context, req *storage.RedeemRequest)
	OnStatusChanged(ctx context.Context, req *storage.RedeemRequest)
}

// NopNotifier ignores all notifications. Used in tests and when running the
// web surface without Discord.
type NopNotifier struct{}

func (NopNotifier) OnCreated(context.Context, *storage.RedeemRequest)       {}
func (NopNotifier) OnStatusChanged(context.Context, *storage.RedeemRequest) {}

// Policy holds the throttling knobs for both intake paths. The two windows
// guard different identity keys and are applied independently.
type Policy struct {
	// SubmitCooldown is the minimum gap between accepted submissions from
	// the same submitter identity (command path).
	SubmitCooldown time.Duration
	// OriginWindow and OriginMax cap accepted requests per network origin:
	// once OriginMax requests from one origin exist inside the window, the
	// next one is rejected (form path).
	OriginWindow time.Duration
	OriginMax    int
}

// Draft is a submission before validation. SubmitterID and Origin select
// which cooldown policies apply: the slash command sets SubmitterID, the web
// form sets Origin.
type Draft struct {
	Name       string
	RedeemKey  string
	InviteLink string

	SubmitterID    string
	Origin         string
	SubmitterAgent string
	OrderID        string
}

// Service is the single lifecycle entrypoint shared by every intake surface
// and by the reviewer-facing notifier.
type Service struct {
	repo         *storage.Repository
	notifier     Notifier
	policy       Policy
	contactEmail string

	now func() time.Time // overridable in tests
}

// NewService creates the request lifecycle service. A nil notifier is
// replaced with NopNotifier.
func NewService(repo *storage.Repository, notifier Notifier, policy Policy, contactEmail string) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		repo:         repo,
		notifier:     notifier,
		policy:       policy,
		contactEmail: contactEmail,
		now:          time.Now,
	}
}

// SetNotifier replaces the notifier. Called once at startup when the Discord
// surface comes up after the service is built.
func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = NopNotifier{}
	}
	s.notifier = n
}

// Submit validates and persists a redeem request, burning its key. The key
// stays burned even if the request is later rejected.
func (s *Service) Submit(ctx context.Context, draft Draft) (*storage.RedeemRequest, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	used, err := s.repo.IsKeyUsed(draft.RedeemKey)
	if err != nil {
		return nil, fmt.Errorf("check key: %w", err)
	}
	if used {
		return nil, ErrDuplicateKey
	}

	if err := s.checkThrottles(draft); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req := &storage.RedeemRequest{
		Name:             draft.Name,
		RedeemKey:        draft.RedeemKey,
		InviteLink:       draft.InviteLink,
		ContactEmail:     s.contactEmail,
		SubmittedAt:      now,
		SubmitterAddress: draft.Origin,
		SubmitterAgent:   draft.SubmitterAgent,
		OrderID:          draft.OrderID,
	}

	// Request row and used-key ledger entry go in together; a concurrent
	// double-submission of the same key loses on the unique constraint.
	if err := s.repo.CreateRequest(req); err != nil {
		if errors.Is(err, storage.ErrKeyUsed) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	if draft.SubmitterID != "" {
		if err := s.repo.RecordAttempt(draft.SubmitterID, now); err != nil {
			slog.Warn("Failed to record cooldown attempt", "submitter", draft.SubmitterID, "error", err)
		}
	}

	slog.Info("Redeem request submitted", "id", req.ID, "name", req.Name)
	s.notifier.OnCreated(ctx, req)
	return req, nil
}

// checkThrottles applies the submitter cooldown and the origin window cap.
func (s *Service) checkThrottles(draft Draft) error {
	now := s.now().UTC()

	if draft.SubmitterID != "" && s.policy.SubmitCooldown > 0 {
		last, ok, err := s.repo.LastAttempt(draft.SubmitterID)
		if err != nil {
			return fmt.Errorf("check cooldown: %w", err)
		}
		if ok && now.Sub(last) < s.policy.SubmitCooldown {
			return ErrRateLimited
		}
	}

	if draft.Origin != "" && s.policy.OriginMax > 0 {
		recent, err := s.repo.RecentByOrigin(draft.Origin, now.Add(-s.policy.OriginWindow))
		if err != nil {
			return fmt.Errorf("check origin window: %w", err)
		}
		if len(recent) >= s.policy.OriginMax {
			return ErrRateLimited
		}
	}

	return nil
}

// Decide applies a reviewer decision to a pending request. The second
// decision for the same request fails with ErrAlreadyDecided no matter what
// it was.
func (s *Service) Decide(ctx context.Context, id int64, decision storage.Status) error {
	if err := s.repo.SetRequestStatus(id, decision); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, storage.ErrAlreadyDecided):
			return ErrAlreadyDecided
		default:
			return fmt.Errorf("set status: %w", err)
		}
	}

	req, err := s.repo.GetRequest(id)
	if err != nil {
		return fmt.Errorf("reload request: %w", err)
	}

	slog.Info("Redeem request decided", "id", id, "status", req.Status)
	s.notifier.OnStatusChanged(ctx, req)
	return nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id int64) (*storage.RedeemRequest, error) {
	req, err := s.repo.GetRequest(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return req, err
}

// ListPending returns undecided requests, newest first. Polling notifiers
// use it to discover requests they have not surfaced yet.
func (s *Service) ListPending(ctx context.Context) ([]*storage.RedeemRequest, error) {
	return s.repo.ListRequests(storage.StatusPending)
}

// PurgeCooldowns drops cooldown rows older than the submitter window.
func (s *Service) PurgeCooldowns() error {
	if s.policy.SubmitCooldown <= 0 {
		return nil
	}
	return s.repo.PurgeCooldowns(s.now().UTC().Add(-s.policy.SubmitCooldown))
}
