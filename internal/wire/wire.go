// Package wire defines the JSON frame vocabulary exchanged over streaming connections. Frames are a tagged union: a
// discriminant "type" field plus a "data" payload object.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FrameType discriminates the payload carried by a Frame.
type FrameType string

// Frame types.
const (
	FrameChat       FrameType = "chat"
	FrameStatus     FrameType = "status"
	FrameInvitation FrameType = "invitation"
	FrameError      FrameType = "error"
	FrameResponse   FrameType = "response"
)

// UserStatus describes a member's presence inside a room.
type UserStatus string

// Presence states broadcast in Status frames.
const (
	StatusOnline  UserStatus = "Online"
	StatusOffline UserStatus = "Offline"
	StatusTyping  UserStatus = "Typing"
	StatusIdle    UserStatus = "Idle"
	StatusJoined  UserStatus = "Joined"
)

// Valid reports whether s is one of the recognized presence states.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusTyping, StatusIdle, StatusJoined:
		return true
	}
	return false
}

// Frame is the envelope for every streamed message.
type Frame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ChatPayload carries one persisted chat message.
type ChatPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusPayload announces a presence change inside a room.
type StatusPayload struct {
	ChatID    uuid.UUID  `json:"chat_id"`
	UserID    uuid.UUID  `json:"user_id"`
	Status    UserStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// InvitationPayload is pushed to an invitee's direct channel when they are invited to a chat.
type InvitationPayload struct {
	InvitationID    uuid.UUID `json:"invitation_id"`
	ChatID          uuid.UUID `json:"chat_id"`
	InviterUsername string    `json:"inviter_username"`
	Timestamp       time.Time `json:"timestamp"`
}

// ErrorPayload reports a stream-level failure to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewChatFrame builds a chat Frame from the payload.
func NewChatFrame(p ChatPayload) (Frame, error) {
	return newFrame(FrameChat, p)
}

// NewStatusFrame builds a status Frame announcing the given presence change.
func NewStatusFrame(chatID, userID uuid.UUID, status UserStatus) (Frame, error) {
	return newFrame(FrameStatus, StatusPayload{
		ChatID:    chatID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

// NewInvitationFrame builds an invitation Frame for direct delivery.
func NewInvitationFrame(p InvitationPayload) (Frame, error) {
	return newFrame(FrameInvitation, p)
}

// NewErrorFrame builds an error Frame with the given code and message.
func NewErrorFrame(code, message string) (Frame, error) {
	return newFrame(FrameError, ErrorPayload{Code: code, Message: message})
}

func newFrame(t FrameType, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshaling %s payload: %w", t, err)
	}
	return Frame{Type: t, Data: data}, nil
}

// Encode serializes the frame for transmission.
func (f Frame) Encode() ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", f.Type, err)
	}
	return b, nil
}

// Decode parses raw bytes into a Frame.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	return f, nil
}

// Chat extracts the chat payload; the frame must have type "chat".
func (f Frame) Chat() (ChatPayload, error) {
	var p ChatPayload
	if f.Type != FrameChat {
		return p, fmt.Errorf("frame type is %q, not %q", f.Type, FrameChat)
	}
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return p, fmt.Errorf("decoding chat payload: %w", err)
	}
	return p, nil
}

// Status extracts the status payload; the frame must have type "status".
func (f Frame) Status() (StatusPayload, error) {
	var p StatusPayload
	if f.Type != FrameStatus {
		return p, fmt.Errorf("frame type is %q, not %q", f.Type, FrameStatus)
	}
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return p, fmt.Errorf("decoding status payload: %w", err)
	}
	return p, nil
}

// Invitation extracts the invitation payload; the frame must have type "invitation".
func (f Frame) Invitation() (InvitationPayload, error) {
	var p InvitationPayload
	if f.Type != FrameInvitation {
		return p, fmt.Errorf("frame type is %q, not %q", f.Type, FrameInvitation)
	}
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return p, fmt.Errorf("decoding invitation payload: %w", err)
	}
	return p, nil
}
