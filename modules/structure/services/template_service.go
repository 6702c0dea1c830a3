package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agencyhq/warroom/internal/workspace"
	"github.com/agencyhq/warroom/modules/hierarchy/domain/agency"
	"github.com/agencyhq/warroom/modules/structure/domain/action"
	"github.com/agencyhq/warroom/pkg/composables"
	"github.com/agencyhq/warroom/pkg/eventbus"
	"github.com/agencyhq/warroom/pkg/serrors"
)

// HierarchyStore is the slice of the graph store this module writes and reads.
type HierarchyStore interface {
	InsertAgency(ctx context.Context, a agency.Agency) (int64, error)
	SetMainAgency(ctx context.Context, orgID string, id int64) error
	SetMainAgencyPointer(ctx context.Context, orgID string, agencyID int64) error
	SetStartHere(ctx context.Context, orgID, orgName, categoryID string) error
	Agencies(ctx context.Context, orgID string) ([]agency.Agency, error)
}

const (
	leaderRoleColor = "#FFD700"
	agentRoleColor  = "#3498DB"

	startHereSection = "START HERE ✅"
)

type channelTemplate struct {
	name string
	typ  workspace.ChannelType
}

type sectionTemplate struct {
	name     string
	channels []channelTemplate
	// Overwrite applied to the org's default role at category creation.
	allow workspace.Permission
	deny  workspace.Permission
}

// mainSections is the fixed base skeleton, provisioned in this order.
var mainSections = []sectionTemplate{
	{
		name: "ADMIN ⚔️",
		channels: []channelTemplate{
			{"admin-chat ⚔️", workspace.ChannelText},
			{"admin-logs", workspace.ChannelText},
			{"internal", workspace.ChannelText},
			{"Admins", workspace.ChannelVoice},
			{"Agency Admins", workspace.ChannelVoice},
		},
		deny: workspace.PermViewChannel,
	},
	{
		name: startHereSection,
		channels: []channelTemplate{
			{"start-here ✅", workspace.ChannelText},
			{"announcements 📣", workspace.ChannelText},
		},
		allow: workspace.PermViewChannel | workspace.PermAddReactions,
		deny:  workspace.PermSendMessages,
	},
	{
		name: "LEADERBOARDS 🏆",
		channels: []channelTemplate{
			{"daily-leaderboard", workspace.ChannelText},
			{"weekly-leaderboard", workspace.ChannelText},
			{"monthly-leaderboard", workspace.ChannelText},
			{"agent-spotlight", workspace.ChannelText},
			{"hall-of-fame", workspace.ChannelText},
		},
		allow: workspace.PermViewChannel,
		deny:  workspace.PermSendMessages,
	},
	{
		name: "LIVE 🔴",
		channels: []channelTemplate{
			{"live-wins", workspace.ChannelText},
		},
		allow: workspace.PermViewChannel,
		deny:  workspace.PermSendMessages,
	},
	{
		name: "CARRIER RESOURCE HUB 📄",
		channels: []channelTemplate{
			{"carrier-resources 🟥", workspace.ChannelText},
			{"carrier-contact ☎️", workspace.ChannelText},
		},
		allow: workspace.PermViewChannel,
		deny:  workspace.PermSendMessages,
	},
	{
		name: "SALES OPS 💎",
		channels: []channelTemplate{
			{"comp 💵", workspace.ChannelText},
			{"lead-vendors 💻", workspace.ChannelText},
		},
		allow: workspace.PermViewChannel,
		deny:  workspace.PermSendMessages,
	},
	{
		name: "SUPPORT & QUESTIONS ❓",
		channels: []channelTemplate{
			{"help-chat ❓", workspace.ChannelText},
			{"underwriting-questions 📝", workspace.ChannelText},
		},
		allow: workspace.PermViewChannel | workspace.PermSendMessages,
	},
}

// TemplateService runs the two deterministic provisioning recipes. All
// platform mutations are sequential with a pacing delay between channel
// creates; the platform's rate-limit contract forbids batching them.
type TemplateService struct {
	ws     workspace.Client
	store  HierarchyStore
	bus    eventbus.EventBus
	log    *logrus.Logger
	pacing time.Duration
	sleep  func(ctx context.Context, d time.Duration)
}

func NewTemplateService(ws workspace.Client, store HierarchyStore, bus eventbus.EventBus, log *logrus.Logger, pacing time.Duration) *TemplateService {
	return &TemplateService{
		ws:     ws,
		store:  store,
		bus:    bus,
		log:    log,
		pacing: pacing,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// BuildMainStructure provisions the fixed base skeleton and records the
// START HERE category into the org config.
func (s *TemplateService) BuildMainStructure(ctx context.Context, orgID, orgName string) error {
	s.log.WithField("org_id", orgID).Info("structure: building main structure")

	var startHereID string
	channelCount := 0
	for _, section := range mainSections {
		cat, err := s.ws.CreateChannel(ctx, orgID, workspace.ChannelSpec{
			Name: section.name,
			Type: workspace.ChannelCategory,
			Overwrites: []workspace.Overwrite{
				{TargetID: orgID, Allow: section.allow, Deny: section.deny},
			},
		})
		if err != nil {
			return serrors.New(502, "TPL_CREATE_CATEGORY", "failed to create category "+section.name, err)
		}
		if section.name == startHereSection {
			startHereID = cat.ID
		}

		for _, ch := range section.channels {
			if _, err := s.ws.CreateChannel(ctx, orgID, workspace.ChannelSpec{
				Name:     ch.name,
				Type:     ch.typ,
				ParentID: cat.ID,
			}); err != nil {
				return serrors.New(502, "TPL_CREATE_CHANNEL", "failed to create channel "+ch.name, err)
			}
			channelCount++
			s.sleep(ctx, s.pacing)
		}
	}

	if startHereID != "" {
		if err := s.store.SetStartHere(ctx, orgID, orgName, startHereID); err != nil {
			return serrors.New(500, "TPL_PERSIST", "failed to record start-here category", err)
		}
	}

	s.bus.Publish(MainStructureBuilt{OrgID: orgID, Categories: len(mainSections), Channels: channelCount})
	return nil
}

// InitializeAgency provisions one agency: role pair, category, four text
// channels, six voice channels, then the persisted row. Not idempotent-safe;
// callers wanting skip-existing semantics use AddAgencies.
func (s *TemplateService) InitializeAgency(ctx context.Context, orgID string, spec action.AgencySpec) (*agency.Agency, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, serrors.New(400, "TPL_EMPTY_NAME", "agency name is required", nil)
	}

	leaderRole, err := s.ws.CreateRole(ctx, orgID, workspace.RoleSpec{Name: name + " Leader", Color: leaderRoleColor})
	if err != nil {
		return nil, serrors.New(502, "TPL_CREATE_ROLE", "failed to create leader role for "+name, err)
	}
	agentRole, err := s.ws.CreateRole(ctx, orgID, workspace.RoleSpec{Name: name, Color: agentRoleColor})
	if err != nil {
		return nil, serrors.New(502, "TPL_CREATE_ROLE", "failed to create agent role for "+name, err)
	}

	categoryOverwrites := []workspace.Overwrite{
		{TargetID: orgID, Deny: workspace.PermViewChannel},
		{TargetID: agentRole.ID, Allow: workspace.PermViewChannel | workspace.PermSendMessages},
		{TargetID: leaderRole.ID, Allow: workspace.PermViewChannel |
			workspace.PermManageChannels |
			workspace.PermManageMessages |
			workspace.PermMuteMembers |
			workspace.PermMoveMembers |
			workspace.PermDeafenMembers},
	}

	categoryName := name
	if spec.Emoji != "" {
		categoryName = name + " " + spec.Emoji
	}
	category, err := s.ws.CreateChannel(ctx, orgID, workspace.ChannelSpec{
		Name:       categoryName,
		Type:       workspace.ChannelCategory,
		Overwrites: categoryOverwrites,
	})
	if err != nil {
		return nil, serrors.New(502, "TPL_CREATE_CATEGORY", "failed to create category for "+name, err)
	}

	slug := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	textChannels := []struct {
		name    string
		private bool
	}{
		{slug + "-general", false},
		{slug + "-wins", false},
		{slug + "-digest", true},
		{slug + "-resources", false},
	}
	for _, ch := range textChannels {
		overwrites := append([]workspace.Overwrite(nil), categoryOverwrites...)
		if ch.private {
			// Digest is leaders only.
			overwrites = append(overwrites, workspace.Overwrite{TargetID: agentRole.ID, Deny: workspace.PermViewChannel})
		}
		if _, err := s.ws.CreateChannel(ctx, orgID, workspace.ChannelSpec{
			Name:       ch.name,
			Type:       workspace.ChannelText,
			ParentID:   category.ID,
			Overwrites: overwrites,
		}); err != nil {
			return nil, serrors.New(502, "TPL_CREATE_CHANNEL", "failed to create channel "+ch.name, err)
		}
		s.sleep(ctx, s.pacing)
	}

	voiceChannels := []string{
		name + " Meeting Room",
		name + " Dial Room 1",
		name + " Dial Room 2",
		name + " Dial Room 3",
		name + " Dial Room 4",
		name + " Dial Room 5",
	}
	for _, vc := range voiceChannels {
		if _, err := s.ws.CreateChannel(ctx, orgID, workspace.ChannelSpec{
			Name:     vc,
			Type:     workspace.ChannelVoice,
			ParentID: category.ID,
			Overwrites: []workspace.Overwrite{
				{TargetID: orgID, Allow: workspace.PermViewChannel | workspace.PermConnect | workspace.PermSpeak},
			},
		}); err != nil {
			return nil, serrors.New(502, "TPL_CREATE_CHANNEL", "failed to create channel "+vc, err)
		}
		s.sleep(ctx, s.pacing)
	}

	record := agency.Agency{
		OrgID:        orgID,
		Name:         name,
		Emoji:        spec.Emoji,
		AgentRoleID:  agentRole.ID,
		LeaderRoleID: leaderRole.ID,
		CategoryID:   category.ID,
		IsMain:       spec.IsMain,
	}
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		id, err := s.store.InsertAgency(txCtx, record)
		if err != nil {
			return err
		}
		record.ID = id
		if spec.IsMain {
			if err := s.store.SetMainAgency(txCtx, orgID, id); err != nil {
				return err
			}
			return s.store.SetMainAgencyPointer(txCtx, orgID, id)
		}
		return nil
	})
	if err != nil {
		return nil, serrors.New(500, "TPL_PERSIST", "failed to persist agency "+name, err)
	}

	s.bus.Publish(AgencyProvisioned{OrgID: orgID, AgencyID: record.ID, Name: record.Name, IsMain: record.IsMain})
	return &record, nil
}

func (s *TemplateService) InitializeAgencies(ctx context.Context, orgID string, specs []action.AgencySpec) ([]agency.Agency, error) {
	out := make([]agency.Agency, 0, len(specs))
	for _, spec := range specs {
		a, err := s.InitializeAgency(ctx, orgID, spec)
		if err != nil {
			return out, err
		}
		out = append(out, *a)
	}
	return out, nil
}

type AddOptions struct {
	// SkipExisting skips a spec when a role with the exact name or a
	// category containing the name already exists. Best effort: the check
	// and the create are not transactional, a concurrent create can race.
	SkipExisting bool
}

// AddAgencies is the non-destructive variant of InitializeAgencies.
func (s *TemplateService) AddAgencies(ctx context.Context, orgID string, specs []action.AgencySpec, opts AddOptions) (created []agency.Agency, skipped []string, err error) {
	var roles []workspace.Role
	var channels []workspace.Channel
	if opts.SkipExisting {
		roles, err = s.ws.Roles(ctx, orgID)
		if err != nil {
			return nil, nil, serrors.New(502, "TPL_LIST_ROLES", "failed to list roles", err)
		}
		channels, err = s.ws.Channels(ctx, orgID)
		if err != nil {
			return nil, nil, serrors.New(502, "TPL_LIST_CHANNELS", "failed to list channels", err)
		}
	}

	for _, spec := range specs {
		if opts.SkipExisting && s.exists(spec.Name, roles, channels) {
			s.log.WithFields(logrus.Fields{"org_id": orgID, "agency": spec.Name}).Info("structure: skipping existing agency")
			skipped = append(skipped, spec.Name)
			continue
		}
		a, err := s.InitializeAgency(ctx, orgID, spec)
		if err != nil {
			return created, skipped, err
		}
		created = append(created, *a)
	}
	return created, skipped, nil
}

func (s *TemplateService) exists(name string, roles []workspace.Role, channels []workspace.Channel) bool {
	for _, r := range roles {
		if r.Name == name {
			return true
		}
	}
	for _, c := range channels {
		if c.Type == workspace.ChannelCategory && strings.Contains(c.Name, name) {
			return true
		}
	}
	return false
}
