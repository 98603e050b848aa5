package domain

const (
	RoleAdmin  = "ADMIN"
	RoleBuyer  = "BUYER"
	RoleVendor = "VENDOR"
)

const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

const (
	CallStatusInitiated = "initiated"
	CallStatusRinging   = "ringing"
	CallStatusAnswered  = "answered"
	CallStatusDeclined  = "declined"
	CallStatusEnded     = "ended"
	CallStatusMissed    = "missed"
)

// TerminalCallStatuses are final; a call record in one of these never
// transitions again.
var TerminalCallStatuses = []string{CallStatusEnded, CallStatusDeclined, CallStatusMissed}

const (
	SubscriptionStatusActive   = "ACTIVE"
	SubscriptionStatusCanceled = "CANCELED"
	SubscriptionStatusExpired  = "EXPIRED"
)

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Machine-readable codes carried on error events so clients can branch on them.
const (
	CodeNoSubscription = "NO_SUBSCRIPTION"
)

func ValidCallType(t string) bool {
	return t == CallTypeAudio || t == CallTypeVideo
}
