package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Role distinguishes the two sides of the relay protocol.
type Role string

const (
	RoleStreamer Role = "streamer"
	RoleViewer   Role = "viewer"
)

// Identity identifies one client session on the signaling server.
// Immutable for the lifetime of the session.
type Identity struct {
	ID   string
	Role Role
}

// NewIdentity mints a session identity. IDs are UUID-based; a wall-clock
// derived id collides under concurrent sessions.
func NewIdentity(role Role) Identity {
	return Identity{
		ID:   fmt.Sprintf("%s_%s", role, uuid.NewString()),
		Role: role,
	}
}
