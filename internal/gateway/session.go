package gateway

import (
	"context"
	"errors"
	"sync"

	ws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/message"
	"github.com/parley-chat/parley-server/internal/wire"
)

// Conn is the slice of a WebSocket connection the session needs. Satisfied by *websocket.Conn; tests substitute an
// in-memory pipe.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// MessagePoster persists an inbound message and fans it out. Implemented by the message service.
type MessagePoster interface {
	Post(ctx context.Context, chatID, senderID uuid.UUID, content string) (*message.Message, error)
}

// StreamSession serves one live connection bound to one authenticated user and one room. The inbound direction reads
// text frames and persists them through the message service before any broadcast; the outbound direction forwards the
// room subscription and the user's direct subscription to the transport. Both run concurrently so a silent reader
// never starves delivery.
type StreamSession struct {
	registry *Registry
	messages MessagePoster
	conn     Conn
	chatID   uuid.UUID
	userID   uuid.UUID
	username string
	log      zerolog.Logger

	writeMu sync.Mutex
}

// NewStreamSession creates a session for an already-authorized connection.
func NewStreamSession(registry *Registry, messages MessagePoster, conn Conn, chatID, userID uuid.UUID, username string, logger zerolog.Logger) *StreamSession {
	return &StreamSession{
		registry: registry,
		messages: messages,
		conn:     conn,
		chatID:   chatID,
		userID:   userID,
		username: username,
		log: logger.With().
			Str("chat_id", chatID.String()).
			Str("user_id", userID.String()).
			Logger(),
	}
}

// Run drives the session until the transport closes, either side errors, or ctx is cancelled. Cleanup is idempotent
// and executes on every exit path, including panics, so one misbehaving session cannot leak registry state or take
// down its neighbours.
func (s *StreamSession) Run(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Any("panic", rec).Msg("Stream session panicked")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	roomSub := s.registry.JoinRoom(s.chatID, s.userID)
	directSub := s.registry.RegisterConnection(s.userID, s.username)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			// Announce the departure before tearing down, so remaining members observe the transition. Background
			// context: the session context is already cancelled on this path.
			s.registry.UpdateUserStatus(context.Background(), s.chatID, s.userID, wire.StatusOffline)
			if frame, err := wire.NewStatusFrame(s.chatID, s.userID, wire.StatusOffline); err == nil {
				s.registry.BroadcastToRoom(s.chatID, s.userID, frame)
			}

			roomSub.Close()
			directSub.Close()
			s.registry.LeaveRoom(s.chatID, s.userID)
			s.registry.UnregisterConnection(s.userID)
			_ = s.conn.Close()
		})
	}
	defer cleanup()

	if frame, err := wire.NewStatusFrame(s.chatID, s.userID, wire.StatusOnline); err == nil {
		s.registry.BroadcastToRoom(s.chatID, s.userID, frame)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go s.forward(ctx, cancel, &wg, roomSub)
	go s.forward(ctx, cancel, &wg, directSub)

	s.readLoop(ctx)

	cancel()
	cleanup()
	wg.Wait()
}

// readLoop consumes transport frames until the first read error, which is always terminal. Text frames become
// persisted chat messages; the message service broadcasts them after commit, so this session sees its own messages
// echoed back through its room subscription.
func (s *StreamSession) readLoop(ctx context.Context) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("Stream read error")
			}
			return
		}
		if messageType != ws.TextMessage {
			continue
		}

		if _, err := s.messages.Post(ctx, s.chatID, s.userID, string(data)); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.sendPostError(err)
		}
	}
}

// forward pumps one subscription onto the transport. Lag is logged and skipped; a closed subscription or a write
// error terminates the whole session via cancel.
func (s *StreamSession) forward(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, sub *Subscription) {
	defer wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Any("panic", rec).Msg("Stream forwarder panicked")
			cancel()
		}
	}()

	for {
		frame, err := sub.Recv(ctx)
		if err != nil {
			var lagged *LaggedError
			if errors.As(err, &lagged) {
				s.log.Warn().Uint64("missed", lagged.Missed).Msg("Subscription lagged, continuing")
				continue
			}
			if !errors.Is(err, context.Canceled) {
				s.log.Debug().Err(err).Msg("Subscription ended")
			}
			cancel()
			return
		}

		if err := s.writeFrame(frame); err != nil {
			s.log.Debug().Err(err).Msg("Stream write error")
			cancel()
			return
		}
	}
}

// writeFrame serializes the envelope and writes it as one text frame. Writes are serialized because both forwarders
// share the transport.
func (s *StreamSession) writeFrame(frame wire.Frame) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(ws.TextMessage, data)
}

// sendPostError reports a failed message post back to the sender without tearing the session down.
func (s *StreamSession) sendPostError(postErr error) {
	code := "INTERNAL_ERROR"
	switch {
	case errors.Is(postErr, message.ErrNotMember):
		code = "FORBIDDEN"
	case errors.Is(postErr, message.ErrEmptyContent), errors.Is(postErr, message.ErrTooLong):
		code = "VALIDATION_ERROR"
	}

	frame, err := wire.NewErrorFrame(code, postErr.Error())
	if err != nil {
		s.log.Error().Err(err).Msg("Building error frame failed")
		return
	}
	if err := s.writeFrame(frame); err != nil {
		s.log.Debug().Err(err).Msg("Error frame write failed")
	}
}
