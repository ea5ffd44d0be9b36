// ABOUTME: Websocket endpoint delivering realtime envelopes to clients.
// ABOUTME: Authenticates the upgrade and pipes one channel subscription out.

package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/chat"
	"github.com/shoutbox/shoutbox/internal/fanout"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pings and the occasional close frame.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Credentials gate the connection, not the origin: the embeddable
	// widget runs on arbitrary tenant domains.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscriber hands out a stream of envelopes for one channel. Both the
// in-process broadcaster and the Redis subscriber satisfy it; the stream
// ends when the context is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *fanout.Envelope, string)
}

// Handler upgrades authenticated requests and forwards their channel's
// events until the peer goes away.
type Handler struct {
	chain      *auth.Chain
	svc        *chat.Service
	subscriber Subscriber
	logger     *slog.Logger
}

func NewHandler(chain *auth.Chain, svc *chat.Service, subscriber Subscriber, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		chain:      chain,
		svc:        svc,
		subscriber: subscriber,
		logger:     logger.With("component", "ws"),
	}
}

// channelFor picks the one channel an actor listens on. People get their
// person channel, which receives events for every chat they are in; chat
// actors get the chat's own channel.
func channelFor(id *auth.Identity) string {
	switch id.Actor.Kind {
	case auth.ActorPerson:
		return fanout.PersonChannel(id.Actor.Person.ID)
	case auth.ActorChat:
		return fanout.ChatChannel(id.Actor.Chat.ID)
	default:
		return ""
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	creds := auth.CredentialsFromRequest(r)
	creds.MergeQuery(r.URL.Query())

	id, err := h.chain.Authenticate(r.Context(), creds)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
		return
	}
	channel := channelFor(id)
	if channel == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "forbidden"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, _ := h.subscriber.Subscribe(ctx, channel)

	if err := h.svc.SetOnline(ctx, id, true); err != nil {
		h.logger.Warn("marking person online failed", "actor", id.Actor.String(), "error", err)
	}
	h.logger.Debug("client connected", "actor", id.Actor.String(), "channel", channel)

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, events)

	cancel()
	if err := h.svc.SetOnline(context.Background(), id, false); err != nil {
		h.logger.Warn("marking person offline failed", "actor", id.Actor.String(), "error", err)
	}
	h.logger.Debug("client disconnected", "actor", id.Actor.String(), "channel", channel)
}

// readPump drains the connection so close frames and pongs are processed.
// Inbound data frames are ignored; all writes go through the REST API.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read error", "error", err)
			}
			return
		}
	}
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, events <-chan *fanout.Envelope) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case env, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
