/*
Package space contains the core logic of the shared-space relay.

This file defines the Registry, the single authoritative store mapping a
connection identifier to its presence record. The Registry carries no lock of
its own: every call happens on the Hub's run goroutine, which serializes all
mutation (see hub.go). No other component may write it, and snapshots are
copies, so no caller can hold a reference into its internals across an event
dispatch.
*/
package space

import (
	"github.com/rs/zerolog"

	"hiroba/internal/app/user"
	"hiroba/internal/pkg/logx"
)

// Registry holds the authoritative set of logged-in participants, keyed by
// connection identifier. Snapshot order is join order.
type Registry struct {
	users map[string]user.User

	// order preserves insertion order of live connection ids so every
	// snapshot broadcast lists participants deterministically.
	order []string

	logger zerolog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]user.User),
		logger: logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// Upsert inserts or replaces the record for the given connection id and
// reports whether the record already existed. Replacing an existing record
// keeps its position in snapshot order, which makes a repeated login for the
// same connection invisible to observers.
func (r *Registry) Upsert(connectionID string, u user.User) (existed bool) {
	_, existed = r.users[connectionID]
	r.users[connectionID] = u

	if !existed {
		r.order = append(r.order, connectionID)
	}

	return existed
}

// Mutate applies fn to the record for the given connection id. A mutate for
// an unknown id is the common, expected race of an event arriving after the
// disconnect was processed; it is logged and dropped.
func (r *Registry) Mutate(connectionID string, fn func(*user.User)) bool {
	u, ok := r.users[connectionID]
	if !ok {
		r.logger.Debug().
			Str("connection_id", connectionID).
			Msg("Mutate for unknown connection id dropped.")
		return false
	}

	fn(&u)
	r.users[connectionID] = u
	return true
}

// Get returns the record for the given connection id, if present.
func (r *Registry) Get(connectionID string) (user.User, bool) {
	u, ok := r.users[connectionID]
	return u, ok
}

// Remove deletes the record for the given connection id and returns it.
// Removing an unknown id returns nil.
func (r *Registry) Remove(connectionID string) *user.User {
	u, ok := r.users[connectionID]
	if !ok {
		return nil
	}

	delete(r.users, connectionID)

	for i, id := range r.order {
		if id == connectionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return &u
}

// NameInUse reports whether any live record other than excludeConnectionID
// holds the given display name.
func (r *Registry) NameInUse(displayName, excludeConnectionID string) bool {
	for id, u := range r.users {
		if id != excludeConnectionID && u.DisplayName == displayName {
			return true
		}
	}
	return false
}

// Len returns the number of logged-in participants.
func (r *Registry) Len() int {
	return len(r.users)
}

// Snapshot returns a copy of all current records in join order. Every
// presence broadcast sends this full list so observers replace their local
// state instead of applying deltas.
func (r *Registry) Snapshot() []user.User {
	snapshot := make([]user.User, 0, len(r.users))
	for _, id := range r.order {
		snapshot = append(snapshot, r.users[id])
	}
	return snapshot
}
