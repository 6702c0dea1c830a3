package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/agencyhq/warroom/internal/workspace"
	"github.com/agencyhq/warroom/modules/registration/services"
	"github.com/agencyhq/warroom/modules/testkit"
	"github.com/agencyhq/warroom/pkg/eventbus"
	"github.com/agencyhq/warroom/pkg/logging"
	"github.com/agencyhq/warroom/pkg/serrors"
)

const orgID = "org-1"

type fixture struct {
	repo   *testkit.InMemoryRegistrationRepo
	config *testkit.InMemoryHierarchyRepo
	ws     *testkit.FakeWorkspace
	svc    *services.RegistrationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.ConsoleLogger(logrus.PanicLevel)
	f := &fixture{
		repo:   testkit.NewInMemoryRegistrationRepo(),
		config: testkit.NewInMemoryHierarchyRepo(),
		ws:     testkit.NewFakeWorkspace(),
	}
	f.svc = services.NewRegistrationService(f.repo, f.config, f.ws, eventbus.NewEventPublisher(log), log)
	return f
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var se *serrors.ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, status, se.Status)
}

func TestRegisterAgent_RoleHandoff(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.config.SetOrgSettings(context.Background(), orgID, "Reflect HQ", "role-unassigned", "owner"))
	f.ws.AddMember(workspace.Member{ID: "u1", RoleIDs: []string{"role-unassigned"}})

	err := f.svc.RegisterAgent(testkit.Context(), orgID, "u1", "John Smith", "role-team-a")
	require.NoError(t, err)

	m, err := f.ws.Member(context.Background(), orgID, "u1")
	require.NoError(t, err)
	require.Contains(t, m.RoleIDs, "role-team-a")
	require.NotContains(t, m.RoleIDs, "role-unassigned")

	mapping, ok := f.repo.Mapping(orgID, "u1")
	require.True(t, ok)
	require.Equal(t, "John Smith", mapping.AgentName)

	require.Len(t, f.repo.Onboardings, 1)
	require.Equal(t, "role-team-a", f.repo.Onboardings[0].RoleID)
}

func TestRegisterAgent_NameOnly(t *testing.T) {
	f := newFixture(t)
	f.ws.AddMember(workspace.Member{ID: "u1"})

	err := f.svc.RegisterAgent(testkit.Context(), orgID, "u1", "Jane Doe", "")
	require.NoError(t, err)

	_, ok := f.repo.Mapping(orgID, "u1")
	require.True(t, ok)
	require.Empty(t, f.repo.Onboardings)
}

func TestRegisterAgent_EmptyName(t *testing.T) {
	f := newFixture(t)
	err := f.svc.RegisterAgent(testkit.Context(), orgID, "u1", "  ", "")
	requireStatus(t, err, 400)
}

func TestRegisterAgent_RenameKeepsBadges(t *testing.T) {
	f := newFixture(t)
	f.ws.AddMember(workspace.Member{ID: "u1", Manageable: true})
	require.NoError(t, f.svc.RegisterAgent(testkit.Context(), orgID, "u1", "John Smith", ""))
	require.NoError(t, f.svc.SyncBadges(context.Background(), orgID, "John Smith", "🔥"))

	// Re-registering under a new name must not wipe earned badges.
	require.NoError(t, f.svc.RegisterAgent(testkit.Context(), orgID, "u1", "Johnny Smith", ""))
	mapping, ok := f.repo.Mapping(orgID, "u1")
	require.True(t, ok)
	require.Equal(t, "Johnny Smith", mapping.AgentName)
	require.Equal(t, "🔥", mapping.Badges)
}

func TestOnJoin_GrantsUnassignedRole(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.config.SetOrgSettings(context.Background(), orgID, "Reflect HQ", "role-unassigned", "owner"))
	f.ws.AddMember(workspace.Member{ID: "u1"})

	f.svc.OnJoin(context.Background(), orgID, "u1")

	m, err := f.ws.Member(context.Background(), orgID, "u1")
	require.NoError(t, err)
	require.Contains(t, m.RoleIDs, "role-unassigned")
}

func TestSyncBadges(t *testing.T) {
	f := newFixture(t)
	f.ws.AddMember(workspace.Member{ID: "u1", Manageable: true})
	require.NoError(t, f.svc.RegisterAgent(testkit.Context(), orgID, "u1", "John Smith", ""))

	err := f.svc.SyncBadges(context.Background(), orgID, "John Smith", "🔥💎")
	require.NoError(t, err)
	require.Equal(t, "John Smith 🔥💎", f.ws.Nickname("u1"))

	mapping, _ := f.repo.Mapping(orgID, "u1")
	require.Equal(t, "🔥💎", mapping.Badges)
}

func TestSyncBadges_TruncatesNickname(t *testing.T) {
	f := newFixture(t)
	name := strings.Repeat("a", 30)
	f.ws.AddMember(workspace.Member{ID: "u1", Manageable: true})
	require.NoError(t, f.svc.RegisterAgent(testkit.Context(), orgID, "u1", name, ""))

	err := f.svc.SyncBadges(context.Background(), orgID, name, "🔥💎🏆")
	require.NoError(t, err)
	require.Len(t, []rune(f.ws.Nickname("u1")), workspace.NicknameMaxLength)
}

func TestSyncBadges_UnknownAgent(t *testing.T) {
	f := newFixture(t)
	err := f.svc.SyncBadges(context.Background(), orgID, "Nobody", "🔥")
	requireStatus(t, err, 404)
}

func TestSyncBadges_UnmanageableMember(t *testing.T) {
	f := newFixture(t)
	f.ws.AddMember(workspace.Member{ID: "u1", Manageable: false})
	require.NoError(t, f.svc.RegisterAgent(testkit.Context(), orgID, "u1", "John Smith", ""))

	err := f.svc.SyncBadges(context.Background(), orgID, "John Smith", "🔥")
	require.NoError(t, err)
	require.Empty(t, f.ws.Nickname("u1"))

	// The badge string still persists.
	mapping, _ := f.repo.Mapping(orgID, "u1")
	require.Equal(t, "🔥", mapping.Badges)
}

func TestLeaderCodes(t *testing.T) {
	f := newFixture(t)
	f.ws.AddMember(workspace.Member{ID: "u1"})

	err := f.svc.AddLeaderCode(context.Background(), services.LeaderCode{
		OrgID:        orgID,
		Code:         "ALPHA-2026",
		LeaderRoleID: "role-leader",
		AgencyRoleID: "role-team-a",
	})
	require.NoError(t, err)

	lc, err := f.svc.RedeemLeaderCode(context.Background(), orgID, "u1", "ALPHA-2026")
	require.NoError(t, err)
	require.Equal(t, "role-leader", lc.LeaderRoleID)

	m, err := f.ws.Member(context.Background(), orgID, "u1")
	require.NoError(t, err)
	require.Contains(t, m.RoleIDs, "role-leader")
	require.Contains(t, m.RoleIDs, "role-team-a")

	require.NoError(t, f.svc.RemoveLeaderCode(context.Background(), orgID, "ALPHA-2026"))
	_, err = f.svc.RedeemLeaderCode(context.Background(), orgID, "u1", "ALPHA-2026")
	requireStatus(t, err, 404)
}

func TestAddLeaderCode_Invalid(t *testing.T) {
	f := newFixture(t)
	err := f.svc.AddLeaderCode(context.Background(), services.LeaderCode{OrgID: orgID, Code: "  "})
	requireStatus(t, err, 400)
}
