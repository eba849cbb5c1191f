/*
Package user contains the core data structures describing a participant in the shared space.

A User is the authoritative presence record for one live, logged-in connection.
It exists only between a successful login and the owning connection's disconnect.
*/
package user

// Status describes a participant's availability.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// IsValid reports whether s is one of the defined status values.
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline:
		return true
	}
	return false
}

// Position is a participant's 2D coordinate within the space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// User represents one logged-in participant. Fields carry JSON tags for
// serialization in WebSocket presence snapshots.
type User struct {
	// ConnectionID is the server-assigned identifier of the owning
	// connection. It always overrides any client-supplied id.
	ConnectionID string `json:"connectionId"`

	// DisplayName is the name shown to other participants.
	DisplayName string `json:"displayName"`

	// Status is the participant's availability.
	Status Status `json:"status"`

	// Position is the participant's current location in the space.
	Position Position `json:"position"`

	// Color is a display hint chosen by the client.
	Color string `json:"color,omitempty"`

	// AvatarRef is an opaque reference to the participant's avatar,
	// typically an object key in avatar storage.
	AvatarRef string `json:"avatarRef,omitempty"`
}
