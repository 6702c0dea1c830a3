// Package workspace defines the capability surface this system requires from
// the remote workspace platform. The platform itself (category/channel/role
// CRUD, overwrite storage, member mutation) is an external collaborator; all
// calls are assumed eventually consistent and rate-limited, and pacing is the
// caller's responsibility.
package workspace

import (
	"context"
	"errors"
)

type ChannelType int

const (
	ChannelText ChannelType = iota
	ChannelVoice
	ChannelCategory
)

// Permission is a bit set mirroring the platform's permission flags.
type Permission uint64

const (
	PermViewChannel Permission = 1 << iota
	PermSendMessages
	PermAddReactions
	PermConnect
	PermSpeak
	PermManageChannels
	PermManageMessages
	PermMuteMembers
	PermMoveMembers
	PermDeafenMembers
)

// NicknameMaxLength is the platform's display-name length limit.
const NicknameMaxLength = 32

// Overwrite grants and/or denies permissions to a role on a container.
// The organization's default role shares its id with the organization.
type Overwrite struct {
	TargetID string
	Allow    Permission
	Deny     Permission
}

type ChannelSpec struct {
	Name       string
	Type       ChannelType
	ParentID   string
	Overwrites []Overwrite
}

type Channel struct {
	ID       string
	Name     string
	Type     ChannelType
	ParentID string
}

type RoleSpec struct {
	Name        string
	Color       string
	Permissions Permission
}

type Role struct {
	ID    string
	Name  string
	Color string
}

type Member struct {
	ID       string
	Nickname string
	RoleIDs  []string
	// Manageable reports whether the bot may mutate this member's
	// nickname and roles (false for the owner and higher-ranked members).
	Manageable bool
}

var ErrNotFound = errors.New("workspace: not found")

type Client interface {
	CreateChannel(ctx context.Context, orgID string, spec ChannelSpec) (*Channel, error)
	DeleteChannel(ctx context.Context, orgID, channelID string) error
	Channel(ctx context.Context, orgID, channelID string) (*Channel, error)
	Channels(ctx context.Context, orgID string) ([]Channel, error)
	RenameChannel(ctx context.Context, orgID, channelID, name string) error

	// EditOverwrite merges the given overwrite into the container's
	// existing overwrites: allow/deny bits for the target role are updated,
	// other targets are untouched.
	EditOverwrite(ctx context.Context, orgID, channelID string, ow Overwrite) error

	CreateRole(ctx context.Context, orgID string, spec RoleSpec) (*Role, error)
	DeleteRole(ctx context.Context, orgID, roleID string) error
	Roles(ctx context.Context, orgID string) ([]Role, error)

	Member(ctx context.Context, orgID, userID string) (*Member, error)
	Members(ctx context.Context, orgID string) ([]Member, error)
	AddMemberRole(ctx context.Context, orgID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, orgID, userID, roleID string) error
	SetNickname(ctx context.Context, orgID, userID, nickname string) error

	BulkDeleteMessages(ctx context.Context, orgID, channelID string, limit int) error
}
