package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"soko/internal/domain"
	"soko/internal/models"
	"soko/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLedgerDown = errors.New("ledger down")

type fakeLedger struct {
	nextID  uint
	records map[uint]*models.CallRecord
	fail    bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[uint]*models.CallRecord)}
}

func (f *fakeLedger) Create(rec *models.CallRecord) error {
	if f.fail {
		return errLedgerDown
	}
	f.nextID++
	rec.ID = f.nextID
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeLedger) GetByID(id uint) (*models.CallRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, errLedgerDown
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeLedger) terminal(id uint) bool {
	rec, ok := f.records[id]
	if !ok {
		return true
	}
	for _, s := range domain.TerminalCallStatuses {
		if rec.Status == s {
			return true
		}
	}
	return false
}

func (f *fakeLedger) SetStatus(id uint, status string) error {
	if f.fail {
		return errLedgerDown
	}
	if f.terminal(id) {
		return nil
	}
	f.records[id].Status = status
	return nil
}

func (f *fakeLedger) MarkAnswered(id uint, at time.Time) error {
	if f.fail {
		return errLedgerDown
	}
	if f.terminal(id) {
		return nil
	}
	f.records[id].Status = domain.CallStatusAnswered
	f.records[id].StartedAt = &at
	return nil
}

func (f *fakeLedger) MarkDeclined(id uint, at time.Time) error {
	if f.fail {
		return errLedgerDown
	}
	if f.terminal(id) {
		return nil
	}
	f.records[id].Status = domain.CallStatusDeclined
	f.records[id].EndedAt = &at
	return nil
}

func (f *fakeLedger) MarkEnded(id uint, at time.Time, durationSec *int) error {
	if f.fail {
		return errLedgerDown
	}
	if f.terminal(id) {
		return nil
	}
	f.records[id].Status = domain.CallStatusEnded
	f.records[id].EndedAt = &at
	f.records[id].DurationSec = durationSec
	return nil
}

type fakeEntitlements struct {
	active bool
	err    error
	checks int
}

func (f *fakeEntitlements) IsActive(userID uint, at time.Time) (bool, error) {
	f.checks++
	return f.active, f.err
}

type rig struct {
	hub    *ws.PresenceHub
	ledger *fakeLedger
	ent    *fakeEntitlements
	svc    *CallService
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		hub:    ws.NewPresenceHub(),
		ledger: newFakeLedger(),
		ent:    &fakeEntitlements{active: true},
	}
	r.svc = NewCallService(r.ledger, r.ent, r.hub)
	return r
}

func (r *rig) connect(userID uint) *ws.Client {
	c := ws.NewClient(16)
	r.hub.AddConn(c)
	r.hub.Register(c, userID)
	c.UserID = userID
	return c
}

func recv(t *testing.T, c *ws.Client) ws.Envelope {
	t.Helper()
	select {
	case frame := <-c.Send:
		var env ws.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatal("expected a queued frame, got none")
		return ws.Envelope{}
	}
}

func requireSilent(t *testing.T, c *ws.Client) {
	t.Helper()
	select {
	case frame := <-c.Send:
		t.Fatalf("expected no frame, got %s", frame)
	default:
	}
}

func rawOffer() json.RawMessage {
	return json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
}

func TestCallUserRequiresRegistration(t *testing.T) {
	r := newRig(t)
	anonymous := ws.NewClient(16)
	r.hub.AddConn(anonymous)

	err := r.svc.CallUser(anonymous, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeVideo})
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Empty(t, r.ledger.records)
}

func TestCallUserValidatesPayload(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)

	err := r.svc.CallUser(alice, ws.CallUserPayload{Offer: rawOffer(), CallType: domain.CallTypeVideo})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: "screenshare"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, r.ledger.records)
}

// Scenario: caller without an active subscription is rejected before any
// ledger row exists and the target hears nothing.
func TestCallUserWithoutSubscription(t *testing.T) {
	r := newRig(t)
	r.ent.active = false
	alice := r.connect(1)
	bob := r.connect(2)

	err := r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeVideo})
	assert.ErrorIs(t, err, ErrSubscriptionRequired)
	assert.Empty(t, r.ledger.records)
	requireSilent(t, bob)
}

func TestEntitlementRecheckedPerAttempt(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)
	r.connect(2)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeAudio}))
	}
	assert.Equal(t, 3, r.ent.checks)
}

// Scenario: target never registered, so the attempt is classified missed
// right away and the caller gets a user-offline reply.
func TestCallUserTargetOffline(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)

	require.NoError(t, r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeVideo}))

	env := recv(t, alice)
	assert.Equal(t, ws.EvUserOffline, env.Event)
	var p ws.UserOfflinePayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, uint(1), p.CallID)
	assert.Equal(t, uint(2), p.TargetUserID)

	assert.Equal(t, domain.CallStatusMissed, r.ledger.records[1].Status)
}

// Scenario: full happy path. Call rings, is answered at T0, ends at T0+42s;
// the recorded duration is exactly 42 whole seconds.
func TestCallLifecycle(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)
	bob := r.connect(2)

	t0 := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	r.svc.now = func() time.Time { return t0 }

	require.NoError(t, r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeVideo}))

	env := recv(t, bob)
	assert.Equal(t, ws.EvIncomingCall, env.Event)
	var incoming ws.IncomingCallPayload
	require.NoError(t, json.Unmarshal(env.Data, &incoming))
	assert.Equal(t, uint(1), incoming.CallID)
	assert.Equal(t, uint(1), incoming.CallerID)
	assert.Equal(t, domain.CallTypeVideo, incoming.CallType)
	assert.JSONEq(t, string(rawOffer()), string(incoming.Offer))
	assert.Equal(t, domain.CallStatusRinging, r.ledger.records[1].Status)
	requireSilent(t, alice)

	require.NoError(t, r.svc.AnswerCall(ws.AnswerCallPayload{CallID: 1, CallerID: 1, Answer: json.RawMessage(`{"type":"answer"}`)}))
	env = recv(t, alice)
	assert.Equal(t, ws.EvCallAnswered, env.Event)
	rec := r.ledger.records[1]
	assert.Equal(t, domain.CallStatusAnswered, rec.Status)
	require.NotNil(t, rec.StartedAt)
	assert.True(t, rec.StartedAt.Equal(t0))

	r.svc.now = func() time.Time { return t0.Add(42*time.Second + 700*time.Millisecond) }
	require.NoError(t, r.svc.EndCall(ws.EndCallPayload{CallID: 1, TargetUserID: 1}))

	env = recv(t, alice)
	assert.Equal(t, ws.EvCallEnded, env.Event)
	var ended ws.CallEndedPayload
	require.NoError(t, json.Unmarshal(env.Data, &ended))
	require.NotNil(t, ended.DurationSec)
	assert.Equal(t, 42, *ended.DurationSec)

	rec = r.ledger.records[1]
	assert.Equal(t, domain.CallStatusEnded, rec.Status)
	require.NotNil(t, rec.DurationSec)
	assert.Equal(t, 42, *rec.DurationSec)
	require.NotNil(t, rec.EndedAt)
}

func TestDeclineCall(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)
	r.connect(2)

	require.NoError(t, r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeAudio}))
	require.NoError(t, r.svc.DeclineCall(ws.DeclineCallPayload{CallID: 1, CallerID: 1}))

	env := recv(t, alice)
	assert.Equal(t, ws.EvCallDeclined, env.Event)
	rec := r.ledger.records[1]
	assert.Equal(t, domain.CallStatusDeclined, rec.Status)
	require.NotNil(t, rec.EndedAt)
	assert.Nil(t, rec.StartedAt)
}

// Ending a call that was never answered leaves duration NULL, not zero.
func TestEndCallWithoutAnswerLeavesDurationUnset(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)
	r.connect(2)

	require.NoError(t, r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeVideo}))
	require.NoError(t, r.svc.EndCall(ws.EndCallPayload{CallID: 1, TargetUserID: 2}))

	rec := r.ledger.records[1]
	assert.Equal(t, domain.CallStatusEnded, rec.Status)
	assert.Nil(t, rec.DurationSec)
	require.NotNil(t, rec.EndedAt)
}

// The ledger update on answer stands even when the caller dropped in the
// interim; only the relay is skipped.
func TestAnswerAfterCallerDisconnect(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)
	bob := r.connect(2)

	require.NoError(t, r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeVideo}))
	recv(t, bob) // incoming-call
	r.hub.RemoveConn(alice)

	require.NoError(t, r.svc.AnswerCall(ws.AnswerCallPayload{CallID: 1, CallerID: 1, Answer: json.RawMessage(`{}`)}))
	assert.Equal(t, domain.CallStatusAnswered, r.ledger.records[1].Status)
	requireSilent(t, bob)
}

func TestTerminalStateIsFinal(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)
	r.connect(2)

	require.NoError(t, r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeAudio}))
	require.NoError(t, r.svc.EndCall(ws.EndCallPayload{CallID: 1, TargetUserID: 2}))
	require.NoError(t, r.svc.DeclineCall(ws.DeclineCallPayload{CallID: 1, CallerID: 1}))

	assert.Equal(t, domain.CallStatusEnded, r.ledger.records[1].Status)
}

func TestRelayCandidate(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)
	bob := r.connect(2)

	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 192.0.2.1 54400 typ host"}`)
	r.svc.RelayCandidate(alice, ws.IceCandidatePayload{TargetUserID: 2, Candidate: candidate})

	env := recv(t, bob)
	assert.Equal(t, ws.EvIceCandidate, env.Event)
	var out ws.IceCandidateOut
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, uint(1), out.SenderID)
	assert.JSONEq(t, string(candidate), string(out.Candidate))

	// Offline target: silent drop, no error, no buffering.
	r.svc.RelayCandidate(bob, ws.IceCandidatePayload{TargetUserID: 99, Candidate: candidate})
	requireSilent(t, alice)
}

func TestLedgerFailureSurfacesOnce(t *testing.T) {
	r := newRig(t)
	alice := r.connect(1)
	r.connect(2)
	r.ledger.fail = true

	err := r.svc.CallUser(alice, ws.CallUserPayload{TargetUserID: 2, Offer: rawOffer(), CallType: domain.CallTypeVideo})
	assert.ErrorIs(t, err, errLedgerDown)
}
