package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/agencyhq/warroom/modules/registration/services"
	"github.com/agencyhq/warroom/pkg/httpapi"
)

// BadgeList accepts either a JSON array of glyph strings or a single string,
// matching what the production sheet integration actually sends.
type BadgeList string

func (b *BadgeList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = BadgeList(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*b = BadgeList(strings.Join(list, ""))
	return nil
}

type badgeSyncRequest struct {
	OrganizationID string    `json:"organizationId"`
	AgentName      string    `json:"agentName"`
	Badges         BadgeList `json:"badges"`
}

type BadgeAPIController struct {
	registration *services.RegistrationService
	log          *logrus.Logger
}

func NewBadgeAPIController(registration *services.RegistrationService, log *logrus.Logger) *BadgeAPIController {
	return &BadgeAPIController{registration: registration, log: log}
}

func (c *BadgeAPIController) Key() string {
	return "/api/badges"
}

func (c *BadgeAPIController) Register(r *mux.Router) {
	r.HandleFunc("/api/badges", c.SyncBadges).Methods(http.MethodPost)
}

func (c *BadgeAPIController) SyncBadges(w http.ResponseWriter, r *http.Request) {
	var req badgeSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_BODY", "invalid request body")
		return
	}
	if req.OrganizationID == "" || req.AgentName == "" {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_BODY", "organizationId and agentName are required")
		return
	}

	if err := c.registration.SyncBadges(r.Context(), req.OrganizationID, req.AgentName, string(req.Badges)); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"org_id": req.OrganizationID,
			"agent":  req.AgentName,
		}).Error("badge sync failed")
		_ = httpapi.WriteServiceError(w, err)
		return
	}

	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
