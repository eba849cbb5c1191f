/*
Package randx provides generation of unique identifiers and fallback display names.

This file contains the identifier generators for connections and messages.
*/
package randx

import "github.com/google/uuid"

// ConnectionID generates the opaque identifier assigned to each accepted
// connection. Identifiers are never reused.
func ConnectionID() string {
	return uuid.New().String()
}

// MessageID generates a unique identifier for a chat message.
func MessageID() string {
	return uuid.New().String()
}
