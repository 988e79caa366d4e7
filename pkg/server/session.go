package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/replay/pkg/contract"
	"github.com/vango-dev/replay/pkg/dispatch"
	"github.com/vango-dev/replay/pkg/wire"
)

// session is one WebSocket connection feeding one application instance.
type session struct {
	srv    *Server
	conn   *websocket.Conn
	logger *slog.Logger

	// writeMu serializes frame writes: hydrated pushes arrive from
	// coordinator goroutines while the read loop sends acks and errors.
	writeMu sync.Mutex

	app *dispatch.App
}

func newSession(srv *Server, conn *websocket.Conn) *session {
	return &session{
		srv:    srv,
		conn:   conn,
		logger: srv.logger.With("remote_addr", conn.RemoteAddr().String()),
	}
}

// run performs the handshake and then reads frames until the connection
// closes or an error occurs.
func (s *session) run(ctx context.Context) {
	defer s.conn.Close()

	cfg := s.srv.config
	s.conn.SetReadLimit(cfg.MaxMessageSize)

	if err := s.handshake(ctx); err != nil {
		s.logger.Error("handshake failed", "error", err)
		return
	}

	for {
		s.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		frame, err := wire.DecodeFrame(msg)
		if err != nil {
			s.logger.Error("frame decode error", "error", err)
			s.sendError(wire.ErrCodeProtocol, "malformed frame")
			continue
		}

		switch frame.Type {
		case wire.FrameEvents:
			s.handleEvents(frame.Payload)

		case wire.FrameControl:
			s.handleControl(frame.Payload)

		case wire.FrameAck:
			if seq, err := wire.DecodeAck(frame.Payload); err == nil {
				s.logger.Debug("client ack", "seq", seq)
			}

		default:
			s.logger.Warn("unknown frame type", "type", frame.Type)
		}
	}
}

// handshake reads the hello frame, stores any carried bundle, builds the
// application, initializes replay, and acknowledges.
func (s *session) handshake(ctx context.Context) error {
	cfg := s.srv.config
	s.conn.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout))

	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}

	frame, err := wire.DecodeFrame(msg)
	if err != nil {
		s.sendError(wire.ErrCodeProtocol, "malformed frame")
		return fmt.Errorf("decode hello frame: %w", err)
	}
	if frame.Type != wire.FrameHello {
		s.sendError(wire.ErrCodeProtocol, "expected hello frame")
		return fmt.Errorf("unexpected frame type %s, want %s", frame.Type, wire.FrameHello)
	}

	hello, err := wire.DecodeHello(frame.Payload)
	if err != nil {
		s.sendError(wire.ErrCodeProtocol, "malformed hello")
		return fmt.Errorf("decode hello: %w", err)
	}
	s.logger = s.logger.With("app_id", hello.AppID)

	if len(hello.Bundle) > 0 {
		bundle, err := contract.DecodeBundle(string(hello.Bundle))
		if err != nil {
			s.sendError(wire.ErrCodeProtocol, "malformed replay state bundle")
			return fmt.Errorf("decode bundle: %w", err)
		}
		if bundle.Descriptor.AppID != hello.AppID {
			s.sendError(wire.ErrCodeProtocol, "bundle application id mismatch")
			return fmt.Errorf("bundle app id %q does not match hello app id %q",
				bundle.Descriptor.AppID, hello.AppID)
		}
		s.srv.store.Put(bundle)
	}

	app, err := s.srv.factory(ctx, hello.AppID)
	if err != nil {
		s.sendError(wire.ErrCodeApp, "application unavailable")
		return fmt.Errorf("build app %q: %w", hello.AppID, err)
	}
	app.AddDrainedHook(s.pushHydrated)

	if err := s.srv.dispatcher.Init(ctx, app); err != nil {
		s.sendError(wire.ErrCodeApp, "application init failed")
		return fmt.Errorf("init app %q: %w", hello.AppID, err)
	}
	s.app = app

	if err := s.writeFrame(wire.NewFrame(wire.FrameAck, wire.EncodeAck(0))); err != nil {
		return fmt.Errorf("ack hello: %w", err)
	}
	s.logger.Info("session established")
	return nil
}

// handleEvents decodes an event batch and dispatches each event through the
// application contract.
func (s *session) handleEvents(payload []byte) {
	events, err := wire.DecodeEvents(payload)
	if err != nil {
		s.logger.Error("events decode error", "error", err)
		s.sendError(wire.ErrCodeProtocol, "invalid events payload")
		return
	}

	for i := range events {
		ev := eventFromWire(&events[i])
		if err := s.app.HandleEvent(ev); err != nil {
			s.logger.Debug("event not dispatched",
				"event_type", ev.Type,
				"hid", ev.TargetID,
				"error", err)
			s.sendError(wire.ErrCodeDispatch, err.Error())
		}
	}
}

// handleControl responds to pings; other control ops are ignored.
func (s *session) handleControl(payload []byte) {
	op, err := wire.DecodeControl(payload)
	if err != nil {
		s.logger.Error("control decode error", "error", err)
		return
	}
	if op == wire.ControlPing {
		s.writeFrame(wire.NewFrame(wire.FrameControl, wire.EncodeControl(wire.ControlPong)))
	}
}

// pushHydrated notifies the client that a fragment batch drained.
func (s *session) pushHydrated(fragmentIDs []string) {
	f := wire.NewFrame(wire.FrameHydrated, wire.EncodeHydrated(fragmentIDs))
	if err := s.writeFrame(f); err != nil {
		return
	}
	s.logger.Debug("hydrated push", "fragments", len(fragmentIDs))
}

func (s *session) writeFrame(f *wire.Frame) error {
	if len(f.Payload) > wire.MaxPayloadSize {
		return wire.ErrFrameTooLarge
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.srv.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
		s.logger.Error("write error", "type", f.Type, "error", err)
		return err
	}
	return nil
}

// sendError writes an error frame, best effort.
func (s *session) sendError(code uint16, message string) {
	s.writeFrame(wire.NewFrame(wire.FrameError, wire.EncodeError(code, message)))
}

func eventFromWire(we *wire.Event) *contract.Event {
	phase := contract.PhaseLive
	if we.Phase == 1 {
		phase = contract.PhaseReplay
	}
	captured := time.Now()
	if we.TS > 0 {
		captured = time.UnixMilli(we.TS)
	}
	return &contract.Event{
		Seq:      we.Seq,
		Type:     we.Type,
		TargetID: we.TargetID,
		Phase:    phase,
		Data:     we.Data,
		Time:     captured,
	}
}
