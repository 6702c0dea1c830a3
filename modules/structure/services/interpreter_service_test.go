package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/agencyhq/warroom/internal/workspace"
	hierservices "github.com/agencyhq/warroom/modules/hierarchy/services"
	"github.com/agencyhq/warroom/modules/structure/domain/action"
	"github.com/agencyhq/warroom/modules/testkit"
	"github.com/agencyhq/warroom/pkg/eventbus"
	"github.com/agencyhq/warroom/pkg/logging"
)

type interpreterFixture struct {
	ws     *testkit.FakeWorkspace
	repo   *testkit.InMemoryHierarchyRepo
	interp *InterpreterService
}

func newInterpreterFixture(t *testing.T) *interpreterFixture {
	t.Helper()
	log := logging.ConsoleLogger(logrus.PanicLevel)
	bus := eventbus.NewEventPublisher(log)
	ws := testkit.NewFakeWorkspace()
	repo := testkit.NewInMemoryHierarchyRepo()

	templates := NewTemplateService(ws, repo, bus, log, time.Duration(0))
	templates.sleep = func(context.Context, time.Duration) {}
	mapper := hierservices.NewHierarchyService(repo, ws, bus, log)

	return &interpreterFixture{
		ws:     ws,
		repo:   repo,
		interp: NewInterpreterService(ws, templates, mapper, repo, log),
	}
}

func TestExecute_FaultContainment(t *testing.T) {
	f := newInterpreterFixture(t)

	report := f.interp.Execute(testkit.Context(), orgID, "Reflect HQ", "origin", []action.Action{
		action.InitializeAgencies{Agencies: []action.AgencySpec{{Name: "Team X", Emoji: "💎"}}},
		action.MapEdge{DownlineName: "Ghost", UplineName: "Team X"},
		action.DeployOnboarding{},
	})

	require.Len(t, report.Lines, 3)
	require.True(t, report.Lines[0].Ok)
	require.False(t, report.Lines[1].Ok)
	require.True(t, report.Lines[2].Ok)

	// The failed mapping did not abort execution: Team X exists and the
	// portal was still deployed.
	a, err := f.repo.AgencyByName(context.Background(), orgID, "Team X")
	require.NoError(t, err)
	require.NotNil(t, report.Portal)
	require.Equal(t, []PortalEntry{{Name: "Team X", RoleID: a.AgentRoleID}}, report.Portal.Entries)
}

func TestExecute_WipeSparesOrigin(t *testing.T) {
	f := newInterpreterFixture(t)
	f.ws.SeedChannel(workspace.Channel{ID: "origin", Name: "war-room", Type: workspace.ChannelText})
	f.ws.SeedChannel(workspace.Channel{ID: "ch-1", Name: "old-stuff", Type: workspace.ChannelText})
	f.ws.SeedChannel(workspace.Channel{ID: "ch-2", Name: "OLD CATEGORY", Type: workspace.ChannelCategory})

	report := f.interp.Execute(testkit.Context(), orgID, "Reflect HQ", "origin", []action.Action{action.Wipe{}})
	require.True(t, report.Lines[0].Ok)

	channels, err := f.ws.Channels(context.Background(), orgID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, "war-room", channels[0].Name)
}

func TestExecute_WipeListFailureReported(t *testing.T) {
	f := newInterpreterFixture(t)
	f.ws.SeedChannel(workspace.Channel{ID: "ch-1", Name: "doomed", Type: workspace.ChannelText})
	f.ws.FailChannelList = true

	report := f.interp.Execute(testkit.Context(), orgID, "Reflect HQ", "origin", []action.Action{
		action.Wipe{},
		action.InitializeAgencies{Agencies: []action.AgencySpec{{Name: "Team X", Emoji: "💎"}}},
	})

	// Nothing was deleted, so the report must not claim a wipe happened.
	require.Len(t, report.Lines, 2)
	require.False(t, report.Lines[0].Ok)
	require.Contains(t, report.Lines[0].Detail, "Wipe failed")
	_, ok := f.ws.ChannelByName("doomed")
	require.True(t, ok)

	// Execution still continues past the failed action.
	require.True(t, report.Lines[1].Ok)
	_, err := f.repo.AgencyByName(context.Background(), orgID, "Team X")
	require.NoError(t, err)
}

func TestExecute_WipeSwallowsDeleteFailures(t *testing.T) {
	f := newInterpreterFixture(t)
	f.ws.SeedChannel(workspace.Channel{ID: "ch-1", Name: "stuck", Type: workspace.ChannelText})
	f.ws.FailDeletes = true

	report := f.interp.Execute(testkit.Context(), orgID, "Reflect HQ", "origin", []action.Action{action.Wipe{}})
	require.True(t, report.Lines[0].Ok)

	_, ok := f.ws.ChannelByName("stuck")
	require.True(t, ok)
}

func TestExecute_FullBuild(t *testing.T) {
	f := newInterpreterFixture(t)

	report := f.interp.Execute(testkit.Context(), orgID, "Reflect HQ", "origin", []action.Action{
		action.Wipe{},
		action.BuildMainStructure{},
		action.InitializeAgencies{Agencies: []action.AgencySpec{
			{Name: "Reflect Agencies", Emoji: "🦁", IsMain: true},
			{Name: "Team A", Emoji: "💎"},
		}},
		action.MapEdge{DownlineName: "Team A", UplineName: "Reflect Agencies"},
	})

	require.Len(t, report.Lines, 4)
	for _, line := range report.Lines {
		require.True(t, line.Ok, line.Detail)
	}

	cfg, err := f.repo.Config(context.Background(), orgID)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.StartHereCategoryID)
	require.NotNil(t, cfg.MainAgencyID)

	main, err := f.repo.AgencyByName(context.Background(), orgID, "Reflect Agencies")
	require.NoError(t, err)
	require.True(t, main.IsMain)
	require.Equal(t, *cfg.MainAgencyID, main.ID)

	require.Equal(t, 1, f.repo.EdgeCount())
	require.Equal(t, 4, strings.Count(report.Summary(), "✅"))
}
