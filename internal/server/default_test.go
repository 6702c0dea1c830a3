package server

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/agencyhq/warroom/internal/extract"
	"github.com/agencyhq/warroom/modules/testkit"
	"github.com/agencyhq/warroom/pkg/commands"
	"github.com/agencyhq/warroom/pkg/configuration"
	"github.com/agencyhq/warroom/pkg/logging"
)

func newTestServer(t *testing.T, extractor extract.Extractor) (*Server, *testkit.FakeWorkspace) {
	t.Helper()
	ws := testkit.NewFakeWorkspace()
	s := Default(&Options{
		Configuration: &configuration.Configuration{
			OwnerUserID:      "owner-1",
			ProvisionPacing:  0,
			WizardSessionTTL: 5 * time.Minute,
		},
		Logger:            logging.ConsoleLogger(logrus.PanicLevel),
		Workspace:         ws,
		Extractor:         extractor,
		HierarchyStore:    testkit.NewInMemoryHierarchyRepo(),
		RegistrationStore: testkit.NewInMemoryRegistrationRepo(),
	})
	return s, ws
}

func TestDefault_RegistersAllCommands(t *testing.T) {
	s, _ := newTestServer(t, &testkit.StubExtractor{})

	expected := []string{
		"add-agency-structure",
		"add-leader-code",
		"clear-channel",
		"deploy-onboarding-portal",
		"export-member-ids",
		"initialize-agencies",
		"list-leader-codes",
		"list-webhooks",
		"map-hierarchy",
		"organize-channels",
		"redeem-leader-code",
		"register-agent",
		"remove-leader-code",
		"setup-server",
		"war-room",
		"wipe-structure",
		"wizard-build",
		"wizard-cancel",
	}
	require.Equal(t, expected, s.Commands.Names())
}

func TestDefault_AdminGate(t *testing.T) {
	s, _ := newTestServer(t, &testkit.StubExtractor{})

	inv := commands.Invocation{OrgID: "org-1", OrgName: "Reflect HQ", ChannelID: "origin", UserID: "intruder"}
	_, err := s.Commands.Dispatch(testkit.Context(), "wipe-structure", inv)
	require.ErrorIs(t, err, commands.ErrAccessDenied)
}

func TestWarRoom_EmptyPromptStartsWizard(t *testing.T) {
	s, _ := newTestServer(t, &testkit.StubExtractor{})

	inv := commands.Invocation{OrgID: "org-1", UserID: "owner-1"}
	reply, err := s.Commands.Dispatch(testkit.Context(), "war-room", inv)
	require.NoError(t, err)
	require.Contains(t, reply, "Agency Builder Wizard")
}

func TestWarRoom_UnparsablePrompt(t *testing.T) {
	s, _ := newTestServer(t, &testkit.StubExtractor{ActionsErr: extract.ErrUnparsable})

	inv := commands.Invocation{
		OrgID:   "org-1",
		UserID:  "owner-1",
		Args:    map[string]string{"prompt": "gibberish"},
		OrgName: "Reflect HQ",
	}
	reply, err := s.Commands.Dispatch(testkit.Context(), "war-room", inv)
	require.NoError(t, err)
	require.Equal(t, "Could not parse instructions.", reply)
}

func TestWizardEndToEnd(t *testing.T) {
	stub := &testkit.StubExtractor{
		Main: "Reflect Agencies",
		Subs: []string{"Team A"},
	}
	s, ws := newTestServer(t, stub)
	ctx := testkit.Context()

	inv := commands.Invocation{OrgID: "org-1", OrgName: "Reflect HQ", ChannelID: "origin", UserID: "owner-1"}
	_, err := s.Commands.Dispatch(ctx, "war-room", inv)
	require.NoError(t, err)

	for _, msg := range []string{"reflect agencies", "team a", "none"} {
		_, err = s.HandleWizardMessage(ctx, "owner-1", msg)
		require.NoError(t, err)
	}

	reply, err := s.Commands.Dispatch(ctx, "wizard-build", inv)
	require.NoError(t, err)
	require.Contains(t, reply, "Setup Complete")

	_, ok := ws.ChannelByName("Reflect Agencies 🦁")
	require.True(t, ok)
	_, ok = ws.ChannelByName("Team A 💎")
	require.True(t, ok)

	// The session is gone after a successful build.
	reply, err = s.Commands.Dispatch(ctx, "wizard-build", inv)
	require.NoError(t, err)
	require.Equal(t, "Session expired.", reply)
}

func TestHandleWizardMessage_Unparsable(t *testing.T) {
	s, _ := newTestServer(t, &testkit.StubExtractor{MainErr: extract.ErrUnparsable})
	ctx := testkit.Context()

	inv := commands.Invocation{OrgID: "org-1", UserID: "owner-1"}
	_, err := s.Commands.Dispatch(ctx, "war-room", inv)
	require.NoError(t, err)

	reply, err := s.HandleWizardMessage(ctx, "owner-1", "???")
	require.NoError(t, err)
	require.Contains(t, reply, "Could not parse")
}
