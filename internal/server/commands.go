package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agencyhq/warroom/internal/extract"
	regservices "github.com/agencyhq/warroom/modules/registration/services"
	"github.com/agencyhq/warroom/modules/structure/domain/action"
	structservices "github.com/agencyhq/warroom/modules/structure/services"
	wizardservices "github.com/agencyhq/warroom/modules/wizard/services"
	"github.com/agencyhq/warroom/pkg/commands"
)

const couldNotParse = "Could not parse instructions."

// registerCommands binds every command name the gateway dispatches. The
// admin gate mirrors the production setup: structure and configuration
// commands belong to the configured owner.
func (s *Server) registerCommands(opts *Options) {
	admin := func(name string, h commands.Handler) { s.Commands.Register(name, true, h) }
	open := func(name string, h commands.Handler) { s.Commands.Register(name, false, h) }

	admin("wipe-structure", s.wipeStructure)
	admin("war-room", s.warRoom)
	admin("setup-server", s.setupServer)
	admin("initialize-agencies", s.initializeAgencies)
	admin("organize-channels", s.organizeChannels)
	admin("add-leader-code", s.addLeaderCode)
	admin("list-leader-codes", s.listLeaderCodes)
	admin("remove-leader-code", s.removeLeaderCode)

	open("add-agency-structure", s.addAgencyStructure)
	open("map-hierarchy", s.mapHierarchy)
	open("deploy-onboarding-portal", s.deployOnboardingPortal)
	open("clear-channel", s.clearChannel)
	open("export-member-ids", s.exportMemberIDs)
	open("list-webhooks", s.listWebhooks)
	open("register-agent", s.registerAgent)
	open("redeem-leader-code", s.redeemLeaderCode)
	open("wizard-build", s.wizardBuild)
	open("wizard-cancel", s.wizardCancel)
}

func (s *Server) wipeStructure(ctx context.Context, inv commands.Invocation) (string, error) {
	report := s.interpreter.Execute(ctx, inv.OrgID, inv.OrgName, inv.ChannelID, []action.Action{action.Wipe{}})
	return report.Summary(), nil
}

func (s *Server) warRoom(ctx context.Context, inv commands.Invocation) (string, error) {
	prompt := inv.Arg("prompt", "")
	if prompt == "" {
		return s.Wizard.Start(inv.OrgID, inv.UserID), nil
	}

	list, err := s.extractor.ParseBuildCommand(ctx, prompt)
	if err != nil {
		if errors.Is(err, extract.ErrUnparsable) {
			return couldNotParse, nil
		}
		return "", err
	}
	report := s.interpreter.Execute(ctx, inv.OrgID, inv.OrgName, inv.ChannelID, list)
	return "🚀 **Executing Build...**\n" + report.Summary(), nil
}

func (s *Server) setupServer(ctx context.Context, inv commands.Invocation) (string, error) {
	err := s.store.SetOrgSettings(ctx, inv.OrgID, inv.OrgName, inv.Arg("unassigned-role", ""), inv.Arg("owner", ""))
	if err != nil {
		return "", err
	}
	return "Server config updated.", nil
}

func parseAgencyList(raw string) []action.AgencySpec {
	parts := strings.Split(raw, ",")
	specs := make([]action.AgencySpec, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name != "" {
			specs = append(specs, action.AgencySpec{Name: name})
		}
	}
	return specs
}

func (s *Server) initializeAgencies(ctx context.Context, inv commands.Invocation) (string, error) {
	specs := parseAgencyList(inv.Arg("agencies", ""))
	if len(specs) == 0 {
		return "No agencies given.", nil
	}
	created, err := s.templates.InitializeAgencies(ctx, inv.OrgID, specs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Initialized %d agencies.", len(created)), nil
}

func (s *Server) addAgencyStructure(ctx context.Context, inv commands.Invocation) (string, error) {
	specs := parseAgencyList(inv.Arg("agencies", ""))
	if len(specs) == 0 {
		return "No agencies given.", nil
	}
	opts := structservices.AddOptions{SkipExisting: inv.Arg("skip-existing", "true") == "true"}
	created, skipped, err := s.templates.AddAgencies(ctx, inv.OrgID, specs, opts)
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("✅ Added %d agencies.", len(created))
	if len(skipped) > 0 {
		reply += " Skipped existing: " + strings.Join(skipped, ", ")
	}
	return reply, nil
}

func (s *Server) mapHierarchy(ctx context.Context, inv commands.Invocation) (string, error) {
	outcome, err := s.hierarchy.MapEdge(ctx, inv.OrgID, inv.Arg("downline", ""), inv.Arg("upline", ""))
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("✅ Mapped %s -> %s.", outcome.Downline.Name, outcome.Upline.Name)
	if !outcome.Inserted {
		reply += " (already mapped)"
	}
	if outcome.CascadeErr != nil {
		reply += " View grant failed, edge recorded."
	}
	return reply, nil
}

func (s *Server) organizeChannels(ctx context.Context, inv commands.Invocation) (string, error) {
	agencies, err := s.store.Agencies(ctx, inv.OrgID)
	if err != nil {
		return "", err
	}
	targets := make([]structservices.RenameTarget, 0, len(agencies))
	for _, a := range agencies {
		targets = append(targets, structservices.RenameTarget{Name: a.Name, Emoji: a.Emoji})
	}
	results, err := s.reconcile.OrganizeAgencies(ctx, inv.OrgID, targets)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No changes needed.", nil
	}
	return strings.Join(results, "\n"), nil
}

func (s *Server) deployOnboardingPortal(ctx context.Context, inv commands.Invocation) (string, error) {
	report := s.interpreter.Execute(ctx, inv.OrgID, inv.OrgName, inv.ChannelID, []action.Action{action.DeployOnboarding{}})
	if report.Portal == nil {
		return report.Summary(), nil
	}
	var b strings.Builder
	b.WriteString("Portal deployed.\n")
	for _, entry := range report.Portal.Entries {
		fmt.Fprintf(&b, "• %s -> role %s\n", entry.Name, entry.RoleID)
	}
	return b.String(), nil
}

func (s *Server) addLeaderCode(ctx context.Context, inv commands.Invocation) (string, error) {
	code := inv.Arg("code", "")
	err := s.registration.AddLeaderCode(ctx, regservices.LeaderCode{
		OrgID:        inv.OrgID,
		Code:         code,
		LeaderRoleID: inv.Arg("leader-role", ""),
		AgencyRoleID: inv.Arg("agency-role", ""),
		Description:  inv.Arg("description", ""),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Leader code %q added.", code), nil
}

func (s *Server) listLeaderCodes(ctx context.Context, inv commands.Invocation) (string, error) {
	codes, err := s.registration.LeaderCodes(ctx, inv.OrgID)
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return "No leader codes configured.", nil
	}
	var b strings.Builder
	b.WriteString("### Leader Access Codes\n")
	for _, lc := range codes {
		desc := lc.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&b, "• **%s**: role %s - %s\n", lc.Code, lc.LeaderRoleID, desc)
	}
	return b.String(), nil
}

func (s *Server) removeLeaderCode(ctx context.Context, inv commands.Invocation) (string, error) {
	code := inv.Arg("code", "")
	if err := s.registration.RemoveLeaderCode(ctx, inv.OrgID, code); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Leader code %q removed.", code), nil
}

func (s *Server) clearChannel(ctx context.Context, inv commands.Invocation) (string, error) {
	amount, err := strconv.Atoi(inv.Arg("amount", "100"))
	if err != nil || amount < 1 {
		amount = 100
	}
	if amount > 100 {
		amount = 100
	}
	if err := s.ws.BulkDeleteMessages(ctx, inv.OrgID, inv.ChannelID, amount); err != nil {
		return "", err
	}
	return fmt.Sprintf("Cleared %d messages.", amount), nil
}

func (s *Server) exportMemberIDs(ctx context.Context, inv commands.Invocation) (string, error) {
	members, err := s.ws.Members(ctx, inv.OrgID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("### Member IDs\n")
	for _, m := range members {
		fmt.Fprintf(&b, "**%s**: %s\n", m.Nickname, m.ID)
	}
	return b.String(), nil
}

func (s *Server) listWebhooks(_ context.Context, _ commands.Invocation) (string, error) {
	return strings.Join([]string{
		"### Webhook Channel Structure",
		"#live-wins: real-time deal notifications",
		"#daily-leaderboard: daily production updates",
		"#weekly-leaderboard: weekly production updates",
		"#monthly-leaderboard: monthly production updates",
		"#agent-spotlight: top producers",
		"#hall-of-fame: weekly/monthly champions",
		"#[agency]-wins: agency-specific wins",
		"#[agency]-digest: private leader daily digest",
	}, "\n"), nil
}

func (s *Server) registerAgent(ctx context.Context, inv commands.Invocation) (string, error) {
	name := inv.Arg("name", "")
	if err := s.registration.RegisterAgent(ctx, inv.OrgID, inv.UserID, name, inv.Arg("role-id", "")); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Registered as **%s**! Your nickname badges will sync automatically.", name), nil
}

func (s *Server) redeemLeaderCode(ctx context.Context, inv commands.Invocation) (string, error) {
	lc, err := s.registration.RedeemLeaderCode(ctx, inv.OrgID, inv.UserID, inv.Arg("code", ""))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Leader access granted (role %s).", lc.LeaderRoleID), nil
}

func (s *Server) wizardBuild(ctx context.Context, inv commands.Invocation) (string, error) {
	list, err := s.Wizard.Materialize(inv.UserID)
	if err != nil {
		if errors.Is(err, wizardservices.ErrSessionExpired) {
			return "Session expired.", nil
		}
		return "", err
	}
	report := s.interpreter.Execute(ctx, inv.OrgID, inv.OrgName, inv.ChannelID, list)
	s.Wizard.Complete(inv.UserID)
	return "✅ **Setup Complete!**\n" + report.Summary(), nil
}

func (s *Server) wizardCancel(_ context.Context, inv commands.Invocation) (string, error) {
	s.Wizard.Cancel(inv.UserID)
	return "Build cancelled.", nil
}

// HandleWizardMessage feeds a free-text message into the user's wizard
// session. Parse failures keep the session on its current step.
func (s *Server) HandleWizardMessage(ctx context.Context, userID, text string) (string, error) {
	turn, err := s.Wizard.HandleTurn(ctx, userID, text)
	if err != nil {
		if errors.Is(err, extract.ErrUnparsable) {
			return "Could not parse that, please try again.", nil
		}
		return "", err
	}
	reply := turn.Reply
	if turn.Ready {
		reply += "\n\nBuild or cancel to continue."
	}
	return reply, nil
}
