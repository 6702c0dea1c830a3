// Package testkit provides in-memory fakes for the external collaborators:
// the workspace platform, the graph and registration stores, and the
// extraction service. Services under test run against these unchanged.
package testkit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agencyhq/warroom/internal/workspace"
)

// FakeWorkspace is an in-memory workspace.Client. It records every mutation
// so tests can assert on call order and overwrite state.
type FakeWorkspace struct {
	mu     sync.Mutex
	nextID int

	channels  map[string]workspace.Channel
	roles     map[string]workspace.Role
	members   map[string]workspace.Member
	nicknames map[string]string

	// overwrites[channelID][targetID], merge semantics like the platform.
	overwrites map[string]map[string]workspace.Overwrite

	CreatedChannels []string
	Renames         []string
	Deleted         []string

	// FailDeletes makes every DeleteChannel call fail, for wipe tests.
	FailDeletes bool

	// FailChannelList makes Channels fail, for enumeration-failure tests.
	FailChannelList bool
}

func NewFakeWorkspace() *FakeWorkspace {
	return &FakeWorkspace{
		channels:   make(map[string]workspace.Channel),
		roles:      make(map[string]workspace.Role),
		members:    make(map[string]workspace.Member),
		nicknames:  make(map[string]string),
		overwrites: make(map[string]map[string]workspace.Overwrite),
	}
}

func (f *FakeWorkspace) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// AddMember seeds a member for registration and badge tests.
func (f *FakeWorkspace) AddMember(m workspace.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[m.ID] = m
}

// Nickname reports the last nickname set for the user, if any.
func (f *FakeWorkspace) Nickname(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nicknames[userID]
}

// OverwriteFor reports the overwrite a role holds on a channel.
func (f *FakeWorkspace) OverwriteFor(channelID, targetID string) (workspace.Overwrite, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ow, ok := f.overwrites[channelID][targetID]
	return ow, ok
}

// ChannelByName finds the first channel with the given name.
func (f *FakeWorkspace) ChannelByName(name string) (workspace.Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return workspace.Channel{}, false
}

// SeedChannel inserts a channel with a fixed id, for reconcile tests.
func (f *FakeWorkspace) SeedChannel(ch workspace.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[ch.ID] = ch
}

func (f *FakeWorkspace) CreateChannel(_ context.Context, _ string, spec workspace.ChannelSpec) (*workspace.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := workspace.Channel{
		ID:       f.newID("ch"),
		Name:     spec.Name,
		Type:     spec.Type,
		ParentID: spec.ParentID,
	}
	f.channels[ch.ID] = ch
	f.CreatedChannels = append(f.CreatedChannels, spec.Name)
	for _, ow := range spec.Overwrites {
		f.mergeOverwrite(ch.ID, ow)
	}
	return &ch, nil
}

func (f *FakeWorkspace) DeleteChannel(_ context.Context, _ string, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailDeletes {
		return errors.New("fake workspace: delete refused")
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return workspace.ErrNotFound
	}
	delete(f.channels, channelID)
	delete(f.overwrites, channelID)
	f.Deleted = append(f.Deleted, ch.Name)
	return nil
}

func (f *FakeWorkspace) Channel(_ context.Context, _ string, channelID string) (*workspace.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, workspace.ErrNotFound
	}
	return &ch, nil
}

func (f *FakeWorkspace) Channels(_ context.Context, _ string) ([]workspace.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailChannelList {
		return nil, errors.New("fake workspace: channel list refused")
	}
	out := make([]workspace.Channel, 0, len(f.channels))
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (f *FakeWorkspace) RenameChannel(_ context.Context, _ string, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return workspace.ErrNotFound
	}
	f.Renames = append(f.Renames, ch.Name+" -> "+name)
	ch.Name = name
	f.channels[channelID] = ch
	return nil
}

func (f *FakeWorkspace) EditOverwrite(_ context.Context, _ string, channelID string, ow workspace.Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return workspace.ErrNotFound
	}
	f.mergeOverwrite(channelID, ow)
	return nil
}

func (f *FakeWorkspace) mergeOverwrite(channelID string, ow workspace.Overwrite) {
	if f.overwrites[channelID] == nil {
		f.overwrites[channelID] = make(map[string]workspace.Overwrite)
	}
	existing := f.overwrites[channelID][ow.TargetID]
	existing.TargetID = ow.TargetID
	existing.Allow |= ow.Allow
	existing.Deny |= ow.Deny
	existing.Allow &^= ow.Deny
	existing.Deny &^= ow.Allow
	f.overwrites[channelID][ow.TargetID] = existing
}

func (f *FakeWorkspace) CreateRole(_ context.Context, _ string, spec workspace.RoleSpec) (*workspace.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role := workspace.Role{ID: f.newID("role"), Name: spec.Name, Color: spec.Color}
	f.roles[role.ID] = role
	return &role, nil
}

func (f *FakeWorkspace) DeleteRole(_ context.Context, _ string, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[roleID]; !ok {
		return workspace.ErrNotFound
	}
	delete(f.roles, roleID)
	return nil
}

func (f *FakeWorkspace) Roles(_ context.Context, _ string) ([]workspace.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]workspace.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *FakeWorkspace) Member(_ context.Context, _ string, userID string) (*workspace.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return nil, workspace.ErrNotFound
	}
	return &m, nil
}

func (f *FakeWorkspace) Members(_ context.Context, _ string) ([]workspace.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]workspace.Member, 0, len(f.members))
	for _, m := range f.members {
		out = append(out, m)
	}
	return out, nil
}

func (f *FakeWorkspace) AddMemberRole(_ context.Context, _ string, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return workspace.ErrNotFound
	}
	for _, id := range m.RoleIDs {
		if id == roleID {
			return nil
		}
	}
	m.RoleIDs = append(m.RoleIDs, roleID)
	f.members[userID] = m
	return nil
}

func (f *FakeWorkspace) RemoveMemberRole(_ context.Context, _ string, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return workspace.ErrNotFound
	}
	kept := m.RoleIDs[:0]
	for _, id := range m.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.RoleIDs = kept
	f.members[userID] = m
	return nil
}

func (f *FakeWorkspace) SetNickname(_ context.Context, _ string, userID, nickname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[userID]; !ok {
		return workspace.ErrNotFound
	}
	f.nicknames[userID] = nickname
	return nil
}

func (f *FakeWorkspace) BulkDeleteMessages(_ context.Context, _ string, _ string, _ int) error {
	return nil
}

var _ workspace.Client = (*FakeWorkspace)(nil)
