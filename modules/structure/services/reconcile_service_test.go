package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/agencyhq/warroom/internal/workspace"
	"github.com/agencyhq/warroom/modules/testkit"
	"github.com/agencyhq/warroom/pkg/logging"
)

func newReconcileFixture() (*testkit.FakeWorkspace, *ReconcileService) {
	ws := testkit.NewFakeWorkspace()
	return ws, NewReconcileService(ws, logging.ConsoleLogger(logrus.WarnLevel))
}

func seedDriftedAgency(ws *testkit.FakeWorkspace) {
	ws.SeedChannel(workspace.Channel{ID: "cat-1", Name: "ALPHA TEAM hq", Type: workspace.ChannelCategory})
	ws.SeedChannel(workspace.Channel{ID: "ch-1", Name: "team-general", Type: workspace.ChannelText, ParentID: "cat-1"})
	ws.SeedChannel(workspace.Channel{ID: "ch-2", Name: "alpha-wins", Type: workspace.ChannelText, ParentID: "cat-1"})
	ws.SeedChannel(workspace.Channel{ID: "ch-3", Name: "Old Dial 3", Type: workspace.ChannelVoice, ParentID: "cat-1"})
	ws.SeedChannel(workspace.Channel{ID: "ch-4", Name: "Huddle meeting", Type: workspace.ChannelVoice, ParentID: "cat-1"})
}

func TestOrganizeAgencies_RenamesDrift(t *testing.T) {
	ws, svc := newReconcileFixture()
	seedDriftedAgency(ws)

	targets := []RenameTarget{{Name: "Alpha Team", Emoji: "💎"}}
	results, err := svc.OrganizeAgencies(context.Background(), orgID, targets)
	require.NoError(t, err)

	// Category, general, dial, and meeting drifted; wins was already
	// canonical and stays untouched.
	require.Len(t, results, 4)

	for _, name := range []string{
		"Alpha Team 💎", "alpha-general", "alpha-wins",
		"Alpha Team Dial Room 3", "Alpha Team Meeting Room",
	} {
		_, ok := ws.ChannelByName(name)
		require.True(t, ok, name)
	}
}

func TestOrganizeAgencies_SecondPassIsNoop(t *testing.T) {
	ws, svc := newReconcileFixture()
	seedDriftedAgency(ws)

	targets := []RenameTarget{{Name: "Alpha Team", Emoji: "💎"}}
	_, err := svc.OrganizeAgencies(context.Background(), orgID, targets)
	require.NoError(t, err)
	renames := len(ws.Renames)

	results, err := svc.OrganizeAgencies(context.Background(), orgID, targets)
	require.NoError(t, err)
	require.Empty(t, results)
	require.Len(t, ws.Renames, renames)
}

func TestOrganizeAgencies_SkipsBlankTargets(t *testing.T) {
	ws, svc := newReconcileFixture()
	seedDriftedAgency(ws)

	results, err := svc.OrganizeAgencies(context.Background(), orgID, []RenameTarget{
		{Name: ""},
		{Name: "   "},
	})
	require.NoError(t, err)
	require.Empty(t, results)
	require.Empty(t, ws.Renames)
}

func TestOrganizeAgencies_MissingCategoryReported(t *testing.T) {
	ws, svc := newReconcileFixture()
	seedDriftedAgency(ws)

	results, err := svc.OrganizeAgencies(context.Background(), orgID, []RenameTarget{
		{Name: "Zeta"},
		{Name: "Alpha Team", Emoji: "💎"},
	})
	require.NoError(t, err)
	require.Contains(t, results, "category not found for: Zeta")
	// The miss does not stop the remaining targets.
	_, ok := ws.ChannelByName("Alpha Team 💎")
	require.True(t, ok)
}
