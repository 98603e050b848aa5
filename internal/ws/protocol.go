package ws

import (
	"encoding/json"
	"time"
)

// Every frame is one JSON envelope: {"event": "...", "data": {...}}.
// Inbound events form a closed set; frames with an unknown event are ignored
// without a reply.

const (
	EvRegister          = "register"
	EvCheckSubscription = "check-subscription"
	EvCallUser          = "call-user"
	EvAnswerCall        = "answer-call"
	EvDeclineCall       = "decline-call"
	EvEndCall           = "end-call"
	EvIceCandidate      = "ice-candidate"
	EvGetOnlineUsers    = "get-online-users"
)

const (
	EvRegistered         = "registered"
	EvError              = "error"
	EvUserStatus         = "user-status"
	EvSubscriptionStatus = "subscription-status"
	EvIncomingCall       = "incoming-call"
	EvUserOffline        = "user-offline"
	EvCallAnswered       = "call-answered"
	EvCallDeclined       = "call-declined"
	EvCallEnded          = "call-ended"
	EvOnlineUsers        = "online-users"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type RegisterPayload struct {
	UserID      uint   `json:"userId"`
	AccessToken string `json:"accessToken"`
}

type CheckSubscriptionPayload struct {
	UserID      uint   `json:"userId"`
	AccessToken string `json:"accessToken"`
}

// Offer, answer and candidate bodies are opaque to the server; they are
// relayed between peers byte for byte.
type CallUserPayload struct {
	TargetUserID uint            `json:"targetUserId"`
	Offer        json.RawMessage `json:"offer"`
	CallType     string          `json:"callType"`
}

type AnswerCallPayload struct {
	CallID   uint            `json:"callId"`
	Answer   json.RawMessage `json:"answer"`
	CallerID uint            `json:"callerId"`
}

type DeclineCallPayload struct {
	CallID   uint `json:"callId"`
	CallerID uint `json:"callerId"`
}

type EndCallPayload struct {
	CallID       uint `json:"callId"`
	TargetUserID uint `json:"targetUserId"`
}

type IceCandidatePayload struct {
	TargetUserID uint            `json:"targetUserId"`
	Candidate    json.RawMessage `json:"candidate"`
}

type RegisteredPayload struct {
	UserID uint `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type UserStatusPayload struct {
	UserID uint   `json:"userId"`
	Status string `json:"status"` // online | offline
}

type SubscriptionStatusPayload struct {
	UserID    uint       `json:"userId"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type IncomingCallPayload struct {
	CallID   uint            `json:"callId"`
	CallerID uint            `json:"callerId"`
	Offer    json.RawMessage `json:"offer"`
	CallType string          `json:"callType"`
}

type UserOfflinePayload struct {
	CallID       uint `json:"callId"`
	TargetUserID uint `json:"targetUserId"`
}

type CallAnsweredPayload struct {
	CallID uint            `json:"callId"`
	Answer json.RawMessage `json:"answer"`
}

type CallDeclinedPayload struct {
	CallID uint `json:"callId"`
}

type CallEndedPayload struct {
	CallID      uint `json:"callId"`
	DurationSec *int `json:"durationSec,omitempty"`
}

type IceCandidateOut struct {
	Candidate json.RawMessage `json:"candidate"`
	SenderID  uint            `json:"senderId"`
}

type OnlineUsersPayload struct {
	Users []uint `json:"users"`
}
