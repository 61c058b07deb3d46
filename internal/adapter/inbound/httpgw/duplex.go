package httpgw

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xReLogic/Tunly/internal/domain/credential"
	"github.com/0xReLogic/Tunly/internal/domain/frame"
	"github.com/0xReLogic/Tunly/internal/domain/session"
	"github.com/0xReLogic/Tunly/internal/netaddr"
)

// readLimit bounds a single frame: a 2 MiB request/response body plus
// base64 expansion and header overhead.
const readLimit = 4 << 20

// pongWait is how long the gateway tolerates silence from an agent before
// considering the connection dead. The agent heartbeats every 20s, so 3x
// that gives ample margin for one missed beat.
const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// DuplexHandler upgrades GET /ws?sid=... into the bidirectional frame
// channel, validating the bearer credential before the upgrade and
// registering the resulting session.
type DuplexHandler struct {
	sessions    *session.Manager
	credentials *credential.Service
	allowQuery  bool
	logger      *slog.Logger
}

// NewDuplexHandler constructs a DuplexHandler. allowTokenQuery permits a
// ?token= query parameter as a fallback to the Authorization header when
// operator-enabled; the header is always preferred.
func NewDuplexHandler(sessions *session.Manager, credentials *credential.Service, allowTokenQuery bool, logger *slog.Logger) *DuplexHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuplexHandler{
		sessions:    sessions,
		credentials: credentials,
		allowQuery:  allowTokenQuery,
		logger:      logger,
	}
}

func (h *DuplexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		http.Error(w, "missing sid", http.StatusBadRequest)
		return
	}

	address := netaddr.Extract(r)
	token := h.bearerToken(r)
	if err := h.credentials.Validate(token, sid, address); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "sid", sid, "error", err)
		return
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// The agent's heartbeat arrives as pings, so each one also extends the
	// read deadline before answering with a pong.
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	sess := h.sessions.Create(sid)
	h.logger.Info("tunnel upgraded", "sid", sid, "address", address)

	done := make(chan struct{})
	go h.writeLoop(conn, sess, done)

	h.readLoop(conn, sess)

	close(done)
	h.sessions.Remove(sess)
	_ = conn.Close()
	h.logger.Info("tunnel closed", "sid", sid)
}

// bearerToken extracts the bearer credential from the Authorization
// header, falling back to a ?token= query parameter only when the
// gateway has opted into that (weaker) source.
func (h *DuplexHandler) bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if h.allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// writeLoop is the session's writer task: it drains the
// session's outbound channel and transmits each envelope as a JSON text
// frame, touching last-activity on every successful send. It terminates
// when done is closed (reader exited) or the outbound channel is gone.
func (h *DuplexHandler) writeLoop(conn *websocket.Conn, sess *session.Session, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case req, ok := <-sess.Outbound:
			if !ok {
				return
			}
			if err := conn.WriteJSON(req); err != nil {
				return
			}
			sess.Touch()
		}
	}
}

// readLoop is the session's reader task: it receives frames
// from the duplex channel, updates last-activity on any inbound frame,
// and completes the pending slot for each response envelope's id.
// Malformed frames are logged and dropped; the channel remains open.
func (h *DuplexHandler) readLoop(conn *websocket.Conn, sess *session.Session) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("duplex read error", "sid", sess.ID, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		sess.Touch()

		var resp frame.ResponseEnvelope
		if err := json.Unmarshal(data, &resp); err != nil {
			h.logger.Warn("malformed frame dropped", "sid", sess.ID, "error", err)
			continue
		}
		sess.CompletePending(resp)
	}
}
