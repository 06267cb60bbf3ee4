package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcosnunesmbs/smith/internal/protocol"
	"github.com/marcosnunesmbs/smith/internal/stats"
)

// Connection is one accepted controller session. It owns the read loop;
// writes are serialized through writeMu since gorilla/websocket forbids
// concurrent writers on the same *websocket.Conn.
type Connection struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	server     *Server

	writeMu sync.Mutex

	lastActivity atomic.Int64 // unix nanos
	closed       atomic.Bool
}

func newConnection(id, remoteAddr string, conn *websocket.Conn, s *Server) *Connection {
	c := &Connection{id: id, remoteAddr: remoteAddr, conn: conn, server: s}
	c.touch()
	return c
}

func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Connection) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

// CloseGoingAway sends a normal "going away" close frame, used by the
// hub's shutdown broadcast and by the idle sweeper.
func (c *Connection) CloseGoingAway() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(2 * time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
	_ = c.conn.Close()
}

func (c *Connection) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// run drives the message loop until the connection closes, by error,
// client disconnect, or CloseGoingAway. Task dispatch runs in its own
// goroutine so a long-running tool does not block the next ping or
// config_query arriving on the same connection.
func (c *Connection) run(ctx context.Context) {
	defer func() {
		c.closed.Store(true)
		_ = c.conn.Close()
		c.server.hub.Unregister(c.id)
		c.server.logger.Info("connection closed", "remote_addr", c.remoteAddr)
	}()

	c.conn.SetReadLimit(protocol.MaxFrameBytes)

	if err := c.writeJSON(protocol.NewRegisterFrame(c.server.cfg.Name, c.server.toolNames())); err != nil {
		c.server.logger.Warn("failed to send register frame", "error", err)
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.touch()

		if len(raw) > protocol.MaxFrameBytes {
			c.server.logger.Warn("dropped oversized inbound frame", "remote_addr", c.remoteAddr, "bytes", len(raw))
			continue
		}

		typ, err := protocol.DecodeType(raw)
		if err != nil {
			c.server.logger.Warn("dropped unparseable frame", "remote_addr", c.remoteAddr, "error", err)
			continue
		}

		switch typ {
		case "task":
			var msg protocol.TaskMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				c.server.logger.Warn("dropped malformed task frame", "error", err)
				continue
			}
			go c.handleTask(ctx, msg)

		case "ping":
			go c.handlePing(ctx)

		case "config_query":
			go c.handleConfigQuery()

		default:
			c.server.logger.Warn("unknown inbound message type", "type", typ, "remote_addr", c.remoteAddr)
		}
	}
}

func (c *Connection) handleTask(ctx context.Context, msg protocol.TaskMessage) {
	if !c.server.limiter.Acquire() {
		_ = c.writeJSON(protocol.NewTaskResultFrame(msg.ID, protocol.ResultBody{
			Success: false,
			Error:   "busy: max_concurrent_tasks reached",
		}))
		return
	}
	defer c.server.limiter.Release()

	_ = c.writeJSON(protocol.NewTaskProgressFrame(msg.ID, "dispatched"))

	tracedCtx, span := c.server.telemetry.StartTask(ctx, msg.ID)
	defer span.End()

	toolCtx := c.server.newToolContext(tracedCtx)
	env := c.server.executor.Execute(toolCtx, msg.Payload.Tool, msg.Payload.Args, c.server.cfg.TaskTimeout(), c.remoteAddr)

	_ = c.writeJSON(protocol.NewTaskResultFrame(msg.ID, protocol.ResultBody{
		Success:    env.Success,
		Data:       env.Data,
		Error:      env.Error,
		DurationMs: env.DurationMs,
	}))
}

func (c *Connection) handlePing(ctx context.Context) {
	snap, err := stats.Collect(ctx)
	if err != nil {
		c.server.logger.Warn("failed to collect stats for pong", "error", err)
		return
	}
	_ = c.writeJSON(protocol.NewPongFrame(snap))
}

func (c *Connection) handleConfigQuery() {
	frame := protocol.NewConfigReportFrame(
		c.server.cfg.SandboxDir,
		c.server.cfg.ReadonlyMode,
		c.server.enabledCategoryNames(),
	)
	_ = c.writeJSON(frame)
}
