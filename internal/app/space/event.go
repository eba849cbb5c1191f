/*
Package space contains the core logic of the shared-space relay: presence
tracking, message broadcasting, and the per-connection session lifecycle.

This file defines the duplex event protocol. Every frame in either direction
is an Envelope carrying a typed event name and a JSON payload, giving a closed
set of protocol variants dispatched through a single switch.
*/
package space

import (
	"encoding/json"

	"hiroba/internal/app/user"
)

// EventType names one event of the duplex protocol.
type EventType string

// Inbound events (client to server).
const (
	EventLogin         EventType = "login"
	EventMessageSend   EventType = "message:send"
	EventMove          EventType = "move"
	EventTyping        EventType = "typing"
	EventCheckName     EventType = "check_name"
	EventHistoryFetch  EventType = "history:fetch"
	EventReactionAdd   EventType = "reaction:add"
	EventReactionDel   EventType = "reaction:remove"
	EventMessageDelete EventType = "message:delete"
	EventHistoryClear  EventType = "history:clear"
)

// Outbound events (server to client).
const (
	EventMessageNew       EventType = "message:new"
	EventUsersUpdate      EventType = "users:update"
	EventUserTyping       EventType = "user:typing"
	EventNameAvailability EventType = "name:availability"
	EventHistoryPage      EventType = "history:page"
	EventMessageReactions EventType = "message:reactions"
	EventMessageDeleted   EventType = "message:deleted"
	EventHistoryCleared   EventType = "history:cleared"
	EventError            EventType = "error"
)

// Envelope is the wire frame shared by both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LoginPayload is the inbound payload that turns a connection into a
// registered participant. Any client-supplied connection id is ignored; the
// server-assigned id is authoritative.
type LoginPayload struct {
	DisplayName string        `json:"displayName"`
	Status      user.Status   `json:"status,omitempty"`
	Position    user.Position `json:"position"`
	Color       string        `json:"color,omitempty"`
	AvatarRef   string        `json:"avatarRef,omitempty"`

	// AdminKey grants admin privileges when it matches the configured key.
	AdminKey string `json:"adminKey,omitempty"`
}

// SendPayload is the inbound payload for message:send.
type SendPayload struct {
	Content string `json:"content"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// MovePayload is the inbound payload for move.
type MovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TypingPayload is the inbound payload for typing. The wire form is either a
// bare boolean or an {"isTyping": bool} object; both decode here.
type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

// UnmarshalJSON accepts both wire forms of the typing payload.
func (t *TypingPayload) UnmarshalJSON(data []byte) error {
	var bare bool
	if err := json.Unmarshal(data, &bare); err == nil {
		t.IsTyping = bare
		return nil
	}

	type alias TypingPayload
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	t.IsTyping = obj.IsTyping
	return nil
}

// CheckNamePayload is the inbound payload for check_name.
type CheckNamePayload struct {
	DisplayName string `json:"displayName"`
}

// HistoryFetchPayload is the inbound payload for history:fetch. Before is the
// cursor returned by a previous page; zero means "latest page".
type HistoryFetchPayload struct {
	Before int64 `json:"before,omitempty"`
	Limit  int   `json:"limit,omitempty"`
}

// ReactionPayload is the inbound payload for reaction:add and reaction:remove.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// MessageDeletePayload is the inbound payload for message:delete.
type MessageDeletePayload struct {
	MessageID string `json:"messageId"`
}

// TypingEvent is the outbound payload for user:typing, relayed to every
// connection except the one typing.
type TypingEvent struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	IsTyping     bool   `json:"isTyping"`
}

// NameAvailability is the outbound reply to check_name, sent only to the
// requesting connection.
type NameAvailability struct {
	DisplayName string `json:"displayName"`
	Available   bool   `json:"available"`
	Reason      string `json:"reason,omitempty"`
}

// HistoryPage is the outbound reply to history:fetch. NextCursor is valid
// only when HasMore is true.
type HistoryPage struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"hasMore"`
	NextCursor int64     `json:"nextCursor,omitempty"`
}

// ReactionsEvent is the outbound payload broadcast after a reaction mutation.
// Reactions is the complete updated map for the message, so observers replace
// rather than patch.
type ReactionsEvent struct {
	MessageID string              `json:"messageId"`
	Reactions map[string][]string `json:"reactions"`
}

// MessageDeletedEvent is the outbound payload broadcast after a deletion.
type MessageDeletedEvent struct {
	MessageID string `json:"messageId"`
}

// ErrorPayload is the outbound payload of an error event.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// unmarshalPayload decodes an inbound payload into dst. A missing payload
// leaves dst at its zero value.
func unmarshalPayload(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// encodeEvent marshals an event name and payload into a wire frame.
func encodeEvent(eventType EventType, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{
		Type:    eventType,
		Payload: payloadBytes,
	})
}
