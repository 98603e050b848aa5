package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"soko/config"
	"soko/internal/auth"
	"soko/internal/domain"
	"soko/internal/models"
	"soko/internal/service"
	"soko/internal/ws"
	"soko/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	signalWriteWait  = 10 * time.Second
	signalPongWait   = 60 * time.Second
	signalPingPeriod = (signalPongWait * 9) / 10
	signalSendBuffer = 64
)

var signalUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SubscriptionReader exposes the entitlement snapshot used by the
// check-subscription event.
type SubscriptionReader interface {
	GetByUserID(userID uint) (*models.Subscription, error)
}

// SignalHandler owns the set of live signaling connections: it accepts
// them, demultiplexes inbound events to the presence directory and the call
// service, and tears down presence state exactly once on disconnect.
type SignalHandler struct {
	jwt   *config.JWTConfig
	hub   *ws.PresenceHub
	calls *service.CallService
	subs  SubscriptionReader
}

func NewSignalHandler(jwt *config.JWTConfig, hub *ws.PresenceHub, calls *service.CallService, subs SubscriptionReader) *SignalHandler {
	return &SignalHandler{jwt: jwt, hub: hub, calls: calls, subs: subs}
}

// Upgrade accepts a signaling connection. No authentication is needed to
// open the socket, only to register a user id on it.
func (h *SignalHandler) Upgrade() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := signalUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := ws.NewClient(signalSendBuffer)
		h.hub.AddConn(client)
		go writePump(conn, client)
		defer func() {
			// Runs exactly once per connection, client- or server-initiated.
			if userID, ok := h.hub.RemoveConn(client); ok {
				h.hub.BroadcastAll(ws.EvUserStatus, ws.UserStatusPayload{UserID: userID, Status: domain.PresenceOffline})
				logger.Log.WithField("user_id", userID).Info("signaling peer disconnected")
			}
			client.Close()
			conn.Close()
		}()
		conn.SetReadDeadline(time.Now().Add(signalPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(signalPongWait))
			return nil
		})
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var env ws.Envelope
			if json.Unmarshal(raw, &env) != nil || env.Event == "" {
				continue
			}
			h.dispatch(client, env)
		}
	}
}

func (h *SignalHandler) dispatch(client *ws.Client, env ws.Envelope) {
	switch env.Event {
	case ws.EvRegister:
		var p ws.RegisterPayload
		if decode(client, env.Data, &p) {
			h.register(client, p)
		}
	case ws.EvCheckSubscription:
		var p ws.CheckSubscriptionPayload
		if decode(client, env.Data, &p) {
			h.checkSubscription(client, p)
		}
	case ws.EvCallUser:
		var p ws.CallUserPayload
		if decode(client, env.Data, &p) {
			h.reply(client, h.calls.CallUser(client, p))
		}
	case ws.EvAnswerCall:
		var p ws.AnswerCallPayload
		if decode(client, env.Data, &p) {
			h.reply(client, h.calls.AnswerCall(p))
		}
	case ws.EvDeclineCall:
		var p ws.DeclineCallPayload
		if decode(client, env.Data, &p) {
			h.reply(client, h.calls.DeclineCall(p))
		}
	case ws.EvEndCall:
		var p ws.EndCallPayload
		if decode(client, env.Data, &p) {
			h.reply(client, h.calls.EndCall(p))
		}
	case ws.EvIceCandidate:
		var p ws.IceCandidatePayload
		if decode(client, env.Data, &p) {
			h.calls.RelayCandidate(client, p)
		}
	case ws.EvGetOnlineUsers:
		client.Enqueue(ws.EvOnlineUsers, ws.OnlineUsersPayload{Users: h.hub.Online()})
	default:
		// Unknown events are ignored without a reply.
	}
}

// register authenticates the connection and records it in the presence
// directory. The verified identity must match the claimed user id; a
// mismatch is treated the same as a bad token.
func (h *SignalHandler) register(client *ws.Client, p ws.RegisterPayload) {
	claims, err := auth.ParseAccessToken(h.jwt, p.AccessToken)
	if err != nil || claims.UserID != p.UserID {
		client.Enqueue(ws.EvError, ws.ErrorPayload{Message: "authentication failed"})
		return
	}
	h.hub.Register(client, claims.UserID)
	client.UserID = claims.UserID
	client.Enqueue(ws.EvRegistered, ws.RegisteredPayload{UserID: claims.UserID})
	h.hub.BroadcastAll(ws.EvUserStatus, ws.UserStatusPayload{UserID: claims.UserID, Status: domain.PresenceOnline})
}

// checkSubscription is reachable before registration, so it authenticates
// from its own payload rather than from connection state.
func (h *SignalHandler) checkSubscription(client *ws.Client, p ws.CheckSubscriptionPayload) {
	claims, err := auth.ParseAccessToken(h.jwt, p.AccessToken)
	if err != nil || claims.UserID != p.UserID {
		client.Enqueue(ws.EvError, ws.ErrorPayload{Message: "authentication failed"})
		return
	}
	sub, err := h.subs.GetByUserID(p.UserID)
	if err != nil {
		logger.Log.WithError(err).Error("subscription lookup failed")
		client.Enqueue(ws.EvError, ws.ErrorPayload{Message: "could not check subscription"})
		return
	}
	status := ws.SubscriptionStatusPayload{UserID: p.UserID}
	if sub != nil {
		status.Active = sub.ActiveAt(time.Now())
		status.ExpiresAt = &sub.ExpiresAt
	}
	client.Enqueue(ws.EvSubscriptionStatus, status)
}

// reply converts a handler outcome into at most one terminal event on the
// originating connection. nil means the operation already produced its own
// replies (or legitimately none).
func (h *SignalHandler) reply(client *ws.Client, err error) {
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotRegistered), errors.Is(err, service.ErrInvalidRequest):
		client.Enqueue(ws.EvError, ws.ErrorPayload{Message: err.Error()})
	case errors.Is(err, service.ErrSubscriptionRequired):
		client.Enqueue(ws.EvError, ws.ErrorPayload{Message: err.Error(), Code: domain.CodeNoSubscription})
	default:
		logger.Log.WithError(err).Error("call signaling failed")
		client.Enqueue(ws.EvError, ws.ErrorPayload{Message: "something went wrong, try again"})
	}
}

func decode(client *ws.Client, data json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(data, v); err != nil {
		client.Enqueue(ws.EvError, ws.ErrorPayload{Message: "malformed payload"})
		return false
	}
	return true
}

// writePump copies frames from the client's send queue to the socket and
// keeps the connection alive with pings.
func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(signalPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(signalWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(signalWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
