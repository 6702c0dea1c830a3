package controllers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/agencyhq/warroom/internal/workspace"
	"github.com/agencyhq/warroom/modules/registration/presentation/controllers"
	"github.com/agencyhq/warroom/modules/registration/services"
	"github.com/agencyhq/warroom/modules/testkit"
	"github.com/agencyhq/warroom/pkg/eventbus"
	"github.com/agencyhq/warroom/pkg/logging"
)

const orgID = "org-1"

type env struct {
	ws     *testkit.FakeWorkspace
	repo   *testkit.InMemoryRegistrationRepo
	svc    *services.RegistrationService
	router *mux.Router
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logging.ConsoleLogger(logrus.PanicLevel)
	e := &env{
		ws:   testkit.NewFakeWorkspace(),
		repo: testkit.NewInMemoryRegistrationRepo(),
	}
	e.svc = services.NewRegistrationService(e.repo, testkit.NewInMemoryHierarchyRepo(), e.ws, eventbus.NewEventPublisher(log), log)
	e.router = mux.NewRouter()
	controllers.NewBadgeAPIController(e.svc, log).Register(e.router)
	return e
}

func (e *env) registerAgent(t *testing.T, userID, name string) {
	t.Helper()
	e.ws.AddMember(workspace.Member{ID: userID, Manageable: true})
	require.NoError(t, e.svc.RegisterAgent(testkit.Context(), orgID, userID, name, ""))
}

func (e *env) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/badges", strings.NewReader(body))
	req = req.WithContext(context.Background())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestSyncBadges_ArrayPayload(t *testing.T) {
	e := newEnv(t)
	e.registerAgent(t, "u1", "John Smith")

	rec := e.post(`{"organizationId":"org-1","agentName":"John Smith","badges":["🔥","💎"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true}`, rec.Body.String())
	require.Equal(t, "John Smith 🔥💎", e.ws.Nickname("u1"))
}

func TestSyncBadges_StringPayload(t *testing.T) {
	e := newEnv(t)
	e.registerAgent(t, "u1", "John Smith")

	rec := e.post(`{"organizationId":"org-1","agentName":"John Smith","badges":"🏆"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "John Smith 🏆", e.ws.Nickname("u1"))
}

func TestSyncBadges_UnknownAgent(t *testing.T) {
	e := newEnv(t)
	e.registerAgent(t, "u1", "John Smith")

	rec := e.post(`{"organizationId":"org-1","agentName":"Nobody","badges":"🔥"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "REG_AGENT_NOT_FOUND")

	// A missed lookup performs no platform mutation.
	require.Empty(t, e.ws.Nickname("u1"))
}

func TestSyncBadges_BadBody(t *testing.T) {
	e := newEnv(t)

	rec := e.post(`{"agentName":"John Smith"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.post(`not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
