package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"careline/internal/conversations"
	"careline/internal/users"
	"careline/pkg/logger"
	"careline/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("call not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// errSidTaken signals that a concurrent creator won the insert race.
var errSidTaken = errors.New("calls: provider sid already taken")

// CallControl asks the telephony provider to end a live call. Failure
// is best-effort at every call site: the local completed record wins
// even if the remote hang-up fails.
type CallControl interface {
	CompleteCall(ctx context.Context, callSid string) error
}

// Service owns the call lifecycle: idempotent creation on first
// contact, terminal transitions from provider status callbacks, and
// explicit termination from the API surface.
type Service struct {
	db      *sql.DB
	control CallControl
	clock   func() time.Time
}

func NewService(db *sql.DB, control CallControl) *Service {
	return &Service{db: db, control: control, clock: time.Now}
}

// FindOrCreateForInbound resolves the call for a provider sid, minting
// user (upsert by phone), conversation and call as one transaction on
// first contact. Duplicate or concurrent deliveries for the same sid
// collapse to the single surviving row.
func (s *Service) FindOrCreateForInbound(ctx context.Context, callSid, callerPhone string) (Call, error) {
	if callSid == "" || callerPhone == "" {
		return Call{}, ErrInvalidArgument
	}

	existing, err := getBySid(ctx, s.db, callSid)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Call{}, err
	}

	now := s.clock().UTC()
	var out Call
	err = utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		u, err := users.UpsertByPhoneTx(ctx, tx, callerPhone, now)
		if err != nil {
			return err
		}
		conv, err := conversations.CreateTx(ctx, tx, u.ID, now)
		if err != nil {
			return err
		}
		c := Call{
			ID:              uuid.NewString(),
			UserID:          u.ID,
			ProviderCallSid: callSid,
			Status:          StatusAIHandling,
			ConversationID:  conv.ID,
			StartedAt:       now,
		}
		inserted, err := insertCall(ctx, tx, c)
		if err != nil {
			return err
		}
		if !inserted {
			// Abort so the stray user/conversation inserts roll back.
			return errSidTaken
		}
		out = c
		return nil
	})
	if errors.Is(err, errSidTaken) {
		return getBySid(ctx, s.db, callSid)
	}
	if err != nil {
		return Call{}, err
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, callID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrInvalidArgument
	}
	return getByID(ctx, s.db, callID)
}

func (s *Service) GetBySid(ctx context.Context, callSid string) (Call, error) {
	if callSid == "" {
		return Call{}, ErrInvalidArgument
	}
	return getBySid(ctx, s.db, callSid)
}

// ActiveCall returns the most recent call still being handled by the
// assistant, if any.
func (s *Service) ActiveCall(ctx context.Context) (Call, bool, error) {
	c, err := latestActive(ctx, s.db, StatusAIHandling)
	if errors.Is(err, ErrNotFound) {
		return Call{}, false, nil
	}
	if err != nil {
		return Call{}, false, err
	}
	return c, true, nil
}

// CompleteBySid handles a terminal provider status callback. The
// transition is idempotent: replays of the same terminal status find
// the row already completed and change nothing, and the counselor is
// released at most once.
func (s *Service) CompleteBySid(ctx context.Context, callSid string) error {
	if callSid == "" {
		return ErrInvalidArgument
	}
	now := s.clock().UTC()
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		call, err := getBySidForUpdate(ctx, tx, callSid)
		if err != nil {
			return err
		}
		return s.completeLocked(ctx, tx, call, now)
	})
}

// Terminate ends a call by internal identifier. The provider hang-up
// is best-effort; local state always transitions.
func (s *Service) Terminate(ctx context.Context, callID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrInvalidArgument
	}
	call, err := getByID(ctx, s.db, callID)
	if err != nil {
		return Call{}, err
	}
	return s.terminate(ctx, call)
}

// TerminateBySid ends a call by provider identifier, falling back to
// the most recent ai_handling call when no exact match exists. The
// fallback is deliberately permissive for operational convenience.
func (s *Service) TerminateBySid(ctx context.Context, callSid string) (Call, error) {
	if callSid == "" {
		return Call{}, ErrInvalidArgument
	}
	call, err := getBySid(ctx, s.db, callSid)
	if errors.Is(err, ErrNotFound) {
		call, err = latestActive(ctx, s.db, StatusAIHandling)
	}
	if err != nil {
		return Call{}, err
	}
	return s.terminate(ctx, call)
}

func (s *Service) terminate(ctx context.Context, call Call) (Call, error) {
	if call.ProviderCallSid != "" && s.control != nil {
		if err := s.control.CompleteCall(ctx, call.ProviderCallSid); err != nil {
			// Logged, not fatal: the local record of completed wins.
			logger.From(ctx).Warn("provider hang-up failed",
				"call_id", call.ID, "call_sid", call.ProviderCallSid, "err", err)
		}
	}

	now := s.clock().UTC()
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		locked, err := getByIDForUpdate(ctx, tx, call.ID)
		if err != nil {
			return err
		}
		return s.completeLocked(ctx, tx, locked, now)
	})
	if err != nil {
		return Call{}, err
	}
	return getByID(ctx, s.db, call.ID)
}

// completeLocked applies the terminal transition to a row already
// locked in tx. Already-completed calls are a no-op.
func (s *Service) completeLocked(ctx context.Context, tx *sql.Tx, call Call, now time.Time) error {
	transitioned, err := markCompleted(ctx, tx, call.ID, now)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}
	if call.AssignedCounselorID != "" {
		return releaseCounselor(ctx, tx, call.AssignedCounselorID, now)
	}
	return nil
}
