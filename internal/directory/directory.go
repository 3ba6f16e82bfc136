// Package directory grants and revokes roles in an external community directory.
package directory

import (
	"context"
	"errors"
	"strings"

	"holder-roles/internal/domain"
)

// ErrNotFound is returned when a server, member or role does not exist.
var ErrNotFound = errors.New("directory: not found")

// ErrNotConfigured is returned when a project lacks directory credentials.
var ErrNotConfigured = errors.New("directory: not configured")

// Member is a resolved member handle.
type Member struct {
	ID            string
	Username      string
	Discriminator string
}

// Role is a resolved role handle.
type Role struct {
	ID   string
	Name string
}

// RoleDirectory is the external directory roles are granted in.
// Implementations never retry; the caller decides what a failure means.
type RoleDirectory interface {
	// ResolveMember finds the member of serverID named by identity ("username#discriminator").
	ResolveMember(ctx context.Context, serverID, identity string) (*Member, error)

	// ResolveRole finds roleID on serverID.
	ResolveRole(ctx context.Context, serverID, roleID string) (*Role, error)

	// AddRole grants role to member.
	AddRole(ctx context.Context, serverID string, member *Member, role *Role) error

	// RemoveRole revokes role from member.
	RemoveRole(ctx context.Context, serverID string, member *Member, role *Role) error
}

// Factory builds the directory client of one project.
type Factory interface {
	For(cfg *domain.ProjectConfig) (RoleDirectory, error)
}

// SplitIdentity splits "username#discriminator". Identities without a
// discriminator get "0", the value used by accounts on unique usernames.
func SplitIdentity(identity string) (username, discriminator string) {
	username, discriminator, found := strings.Cut(identity, "#")
	if !found || discriminator == "" {
		discriminator = "0"
	}
	return username, discriminator
}
