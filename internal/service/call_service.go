package service

import (
	"errors"
	"fmt"
	"time"

	"soko/internal/domain"
	"soko/internal/models"
	"soko/internal/ws"
)

// CallLedger is the durable record of call attempts. The in-memory session
// state is derived from it; implementations must refuse status updates on
// rows already in a terminal state.
type CallLedger interface {
	Create(rec *models.CallRecord) error
	GetByID(id uint) (*models.CallRecord, error)
	SetStatus(id uint, status string) error
	MarkAnswered(id uint, at time.Time) error
	MarkDeclined(id uint, at time.Time) error
	MarkEnded(id uint, at time.Time, durationSec *int) error
}

// EntitlementChecker answers whether a user holds an active, unexpired paid
// entitlement at the given instant.
type EntitlementChecker interface {
	IsActive(userID uint, at time.Time) (bool, error)
}

var (
	ErrNotRegistered        = errors.New("register before placing calls")
	ErrSubscriptionRequired = errors.New("an active subscription is required to place calls")
	ErrInvalidRequest       = errors.New("invalid request")
)

// CallService drives the lifecycle of call attempts:
//
//	initiated -> ringing -> answered -> ended
//	          \-> missed            \-> declined
//
// and relays signaling messages between the two peers of a call. A target
// being unreachable is a normal outcome on every path, never a failure;
// only ledger errors are surfaced to the caller.
type CallService struct {
	ledger       CallLedger
	entitlements EntitlementChecker
	hub          *ws.PresenceHub
	now          func() time.Time
}

func NewCallService(ledger CallLedger, entitlements EntitlementChecker, hub *ws.PresenceHub) *CallService {
	return &CallService{
		ledger:       ledger,
		entitlements: entitlements,
		hub:          hub,
		now:          time.Now,
	}
}

// CallUser admits and starts a call attempt from caller to p.TargetUserID.
// The entitlement is re-checked on every attempt, before any ledger row
// exists. An unreachable target marks the attempt missed immediately; there
// is no retry or queueing, and a ringing call never expires on its own.
func (s *CallService) CallUser(caller *ws.Client, p ws.CallUserPayload) error {
	if caller.UserID == 0 {
		return ErrNotRegistered
	}
	if p.TargetUserID == 0 {
		return fmt.Errorf("%w: targetUserId is required", ErrInvalidRequest)
	}
	if !domain.ValidCallType(p.CallType) {
		return fmt.Errorf("%w: unsupported call type %q", ErrInvalidRequest, p.CallType)
	}
	active, err := s.entitlements.IsActive(caller.UserID, s.now())
	if err != nil {
		return err
	}
	if !active {
		return ErrSubscriptionRequired
	}
	rec := &models.CallRecord{
		CallerID:   caller.UserID,
		ReceiverID: p.TargetUserID,
		CallType:   p.CallType,
		Status:     domain.CallStatusInitiated,
	}
	if err := s.ledger.Create(rec); err != nil {
		return err
	}
	delivered := s.hub.SendToUser(p.TargetUserID, ws.EvIncomingCall, ws.IncomingCallPayload{
		CallID:   rec.ID,
		CallerID: caller.UserID,
		Offer:    p.Offer,
		CallType: p.CallType,
	})
	if !delivered {
		if err := s.ledger.SetStatus(rec.ID, domain.CallStatusMissed); err != nil {
			return err
		}
		caller.Enqueue(ws.EvUserOffline, ws.UserOfflinePayload{CallID: rec.ID, TargetUserID: p.TargetUserID})
		return nil
	}
	return s.ledger.SetStatus(rec.ID, domain.CallStatusRinging)
}

// AnswerCall records the answer with the server clock and relays it to the
// caller. The ledger update stands even if the caller dropped in the
// meantime; the relay is simply skipped.
func (s *CallService) AnswerCall(p ws.AnswerCallPayload) error {
	if err := s.ledger.MarkAnswered(p.CallID, s.now()); err != nil {
		return err
	}
	s.hub.SendToUser(p.CallerID, ws.EvCallAnswered, ws.CallAnsweredPayload{CallID: p.CallID, Answer: p.Answer})
	return nil
}

func (s *CallService) DeclineCall(p ws.DeclineCallPayload) error {
	if err := s.ledger.MarkDeclined(p.CallID, s.now()); err != nil {
		return err
	}
	s.hub.SendToUser(p.CallerID, ws.EvCallDeclined, ws.CallDeclinedPayload{CallID: p.CallID})
	return nil
}

// EndCall finalizes the call. Duration is whole seconds since the recorded
// start; a call that was never answered ends with no duration at all.
func (s *CallService) EndCall(p ws.EndCallPayload) error {
	rec, err := s.ledger.GetByID(p.CallID)
	if err != nil {
		return err
	}
	now := s.now()
	var durationSec *int
	if rec.StartedAt != nil {
		d := int(now.Sub(*rec.StartedAt).Seconds())
		durationSec = &d
	}
	if err := s.ledger.MarkEnded(p.CallID, now, durationSec); err != nil {
		return err
	}
	s.hub.SendToUser(p.TargetUserID, ws.EvCallEnded, ws.CallEndedPayload{CallID: p.CallID, DurationSec: durationSec})
	return nil
}

// RelayCandidate forwards one ICE candidate to the target, tagged with the
// sender, and silently drops it when the target is offline. Candidates are
// not session-scoped and carry no ledger state.
func (s *CallService) RelayCandidate(sender *ws.Client, p ws.IceCandidatePayload) {
	s.hub.SendToUser(p.TargetUserID, ws.EvIceCandidate, ws.IceCandidateOut{
		Candidate: p.Candidate,
		SenderID:  sender.UserID,
	})
}
