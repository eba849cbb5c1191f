/*
Package space contains the core logic of the shared-space relay.

This file defines the Message model. Messages are transient: they live in the
in-memory history store for the lifetime of the process and are never written
to durable storage.
*/
package space

import (
	"time"

	"hiroba/internal/pkg/randx"
)

// MessageKind distinguishes participant chat from server-synthesized notices.
type MessageKind string

const (
	// KindUser marks a message sent by a participant.
	KindUser MessageKind = "user"

	// KindSystem marks a server-synthesized notice, such as a join or leave
	// announcement. Clients cannot send system messages.
	KindSystem MessageKind = "system"
)

// ReplyContext is a denormalized snapshot of the replied-to message, carried
// on the reply so observers can render it without a second lookup.
type ReplyContext struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Message is a chat message as broadcast to every observer. The id and
// timestamp are always server-assigned; the sender's own UI renders from this
// authoritative copy rather than an optimistic local one.
type Message struct {
	ID           string              `json:"id"`
	Kind         MessageKind         `json:"kind"`
	Sender       string              `json:"sender"`
	SenderID     string              `json:"senderId,omitempty"`
	Content      string              `json:"content"`
	Timestamp    string              `json:"timestamp"`
	Reactions    map[string][]string `json:"reactions,omitempty"`
	ReplyTo      string              `json:"replyTo,omitempty"`
	ReplyContext *ReplyContext       `json:"replyContext,omitempty"`
}

// newUserMessage builds a participant message with a fresh id and timestamp.
func newUserMessage(sender, senderID, content string) Message {
	return Message{
		ID:        randx.MessageID(),
		Kind:      KindUser,
		Sender:    sender,
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// newSystemMessage builds a server-synthesized notice.
func newSystemMessage(content string) Message {
	return Message{
		ID:        randx.MessageID(),
		Kind:      KindSystem,
		Sender:    "system",
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
