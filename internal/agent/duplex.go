package agent

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xReLogic/Tunly/internal/domain/frame"
)

// wireKind discriminates what a writer-task message actually puts on the
// wire: a JSON response envelope, or a raw control frame. The heartbeat
// and response paths share one channel and one writer goroutine so all
// writes to the connection are serialized.
type wireKind int

const (
	kindResponse wireKind = iota
	kindPing
)

type wireMessage struct {
	kind wireKind
	resp frame.ResponseEnvelope
}

// writeLoop is the agent's single writer task.
func (c *Client) writeLoop(conn *websocket.Conn, outbound <-chan wireMessage, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg, ok := <-outbound:
			if !ok {
				return
			}
			var err error
			switch msg.kind {
			case kindPing:
				err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteWait))
			default:
				err = conn.WriteJSON(msg.resp)
			}
			if err != nil {
				return
			}
		}
	}
}

// heartbeatLoop enqueues a ping frame every heartbeatInterval and
// terminates when the outbound channel refuses it (full, meaning the
// writer has stopped draining it).
func (c *Client) heartbeatLoop(outbound chan<- wireMessage, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			select {
			case outbound <- wireMessage{kind: kindPing}:
			default:
				return
			}
		}
	}
}

// readLoop is the agent's main loop: it decodes text
// frames as request envelopes and dispatches each to the local target in
// its own goroutine so one slow upstream call never blocks the others.
// gorilla/websocket's default ping handler already answers inbound pings
// with a pong before ReadMessage returns, so no explicit handling is
// needed here.
func (c *Client) readLoop(conn *websocket.Conn, outbound chan<- wireMessage) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req frame.RequestEnvelope
		if err := json.Unmarshal(data, &req); err != nil {
			c.logger.Warn("malformed request envelope dropped", "error", err)
			continue
		}

		go c.handleRequest(req, outbound)
	}
}

func (c *Client) handleRequest(req frame.RequestEnvelope, outbound chan<- wireMessage) {
	resp := c.dispatchLocal(req)
	select {
	case outbound <- wireMessage{kind: kindResponse, resp: resp}:
	default:
		c.logger.Warn("outbound queue full, dropping response", "id", req.ID)
	}
}
