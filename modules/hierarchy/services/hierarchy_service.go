package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/agencyhq/warroom/internal/workspace"
	"github.com/agencyhq/warroom/modules/hierarchy/domain/agency"
	"github.com/agencyhq/warroom/modules/hierarchy/domain/events"
	"github.com/agencyhq/warroom/pkg/eventbus"
	"github.com/agencyhq/warroom/pkg/serrors"
)

// ErrNotFound reports a missing agency or config row.
var ErrNotFound = errors.New("hierarchy: not found")

type HierarchyRepository interface {
	InsertAgency(ctx context.Context, a agency.Agency) (int64, error)
	AgencyByID(ctx context.Context, orgID string, id int64) (*agency.Agency, error)
	// AgencyByName resolves case-insensitively, falling back to a substring
	// match when no exact row exists. Extracted names are fuzzy.
	AgencyByName(ctx context.Context, orgID, name string) (*agency.Agency, error)
	Agencies(ctx context.Context, orgID string) ([]agency.Agency, error)
	SetMainAgency(ctx context.Context, orgID string, id int64) error

	// InsertEdge records one edge; returns false when the edge already
	// existed. Duplicate inserts are not an error.
	InsertEdge(ctx context.Context, e agency.Edge) (bool, error)
	AncestorsOf(ctx context.Context, orgID string, agencyID int64) ([]agency.Agency, error)

	// Config rows are written piecemeal: each writer owns its columns and
	// must not clobber the others'.
	SetStartHere(ctx context.Context, orgID, orgName, categoryID string) error
	SetMainAgencyPointer(ctx context.Context, orgID string, agencyID int64) error
	SetOrgSettings(ctx context.Context, orgID, orgName, unassignedRoleID, ownerUserID string) error
	Config(ctx context.Context, orgID string) (*agency.Config, error)
}

// MapOutcome reports what a single mapping did. CascadeErr carries a failed
// permission grant; the edge itself is still recorded when it is non-nil.
type MapOutcome struct {
	Downline   agency.Agency
	Upline     agency.Agency
	Inserted   bool
	CascadeErr error
}

type HierarchyService struct {
	repo HierarchyRepository
	ws   workspace.Client
	bus  eventbus.EventBus
	log  *logrus.Logger
}

func NewHierarchyService(repo HierarchyRepository, ws workspace.Client, bus eventbus.EventBus, log *logrus.Logger) *HierarchyService {
	return &HierarchyService{repo: repo, ws: ws, bus: bus, log: log}
}

// MapEdge records downline→upline and grants the upline's agent role view
// access on the downline's category. The grant covers exactly one hop: the
// transitive view a grand-upline needs comes from its own direct edges, never
// from walking the graph here.
func (s *HierarchyService) MapEdge(ctx context.Context, orgID, downlineName, uplineName string) (*MapOutcome, error) {
	downlineName = strings.TrimSpace(downlineName)
	uplineName = strings.TrimSpace(uplineName)
	if downlineName == "" || uplineName == "" {
		return nil, serrors.New(400, "HIER_EMPTY_NAME", "downline and upline names are required", nil)
	}

	downline, err := s.repo.AgencyByName(ctx, orgID, downlineName)
	if err != nil {
		return nil, mapLookupErr("downline", downlineName, err)
	}
	upline, err := s.repo.AgencyByName(ctx, orgID, uplineName)
	if err != nil {
		return nil, mapLookupErr("upline", uplineName, err)
	}
	if downline.ID == upline.ID {
		return nil, serrors.New(400, "HIER_SELF_EDGE", "an agency cannot be its own upline", nil)
	}

	inserted, err := s.repo.InsertEdge(ctx, agency.Edge{
		OrgID:      orgID,
		DownlineID: downline.ID,
		UplineID:   upline.ID,
	})
	if err != nil {
		return nil, serrors.New(500, "HIER_EDGE_INSERT", "failed to record hierarchy edge", err)
	}

	outcome := &MapOutcome{Downline: *downline, Upline: *upline, Inserted: inserted}
	outcome.CascadeErr = s.cascadeView(ctx, orgID, downline, upline)

	s.bus.Publish(events.EdgeMapped{
		OrgID:        orgID,
		DownlineID:   downline.ID,
		UplineID:     upline.ID,
		DownlineName: downline.Name,
		UplineName:   upline.Name,
		Inserted:     inserted,
	})
	return outcome, nil
}

// cascadeView is best effort: a missing category or a platform error leaves
// the recorded edge intact and is reported, not fatal.
func (s *HierarchyService) cascadeView(ctx context.Context, orgID string, downline, upline *agency.Agency) error {
	if downline.CategoryID == "" {
		s.log.WithFields(logrus.Fields{
			"org_id":   orgID,
			"downline": downline.Name,
		}).Warn("hierarchy: downline has no category, skipping view grant")
		return errors.New("downline agency has no category")
	}
	if upline.AgentRoleID == "" {
		s.log.WithFields(logrus.Fields{
			"org_id": orgID,
			"upline": upline.Name,
		}).Warn("hierarchy: upline has no agent role, skipping view grant")
		return errors.New("upline agency has no agent role")
	}

	err := s.ws.EditOverwrite(ctx, orgID, downline.CategoryID, workspace.Overwrite{
		TargetID: upline.AgentRoleID,
		Allow:    workspace.PermViewChannel,
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"org_id":   orgID,
			"downline": downline.Name,
			"upline":   upline.Name,
		}).Warn("hierarchy: view grant failed")
		return err
	}
	return nil
}

// AncestorsOf returns every transitive upline of the agency, deduplicated.
// Cycles in the stored graph terminate at query time and are not an error.
func (s *HierarchyService) AncestorsOf(ctx context.Context, orgID string, agencyID int64) ([]agency.Agency, error) {
	if _, err := s.repo.AgencyByID(ctx, orgID, agencyID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, serrors.New(404, "HIER_AGENCY_NOT_FOUND", "agency not found", err)
		}
		return nil, serrors.New(500, "HIER_LOOKUP", "failed to load agency", err)
	}
	ancestors, err := s.repo.AncestorsOf(ctx, orgID, agencyID)
	if err != nil {
		return nil, serrors.New(500, "HIER_ANCESTORS", "failed to walk hierarchy", err)
	}
	return ancestors, nil
}

func (s *HierarchyService) AgencyByName(ctx context.Context, orgID, name string) (*agency.Agency, error) {
	a, err := s.repo.AgencyByName(ctx, orgID, strings.TrimSpace(name))
	if err != nil {
		return nil, mapLookupErr("agency", name, err)
	}
	return a, nil
}

func (s *HierarchyService) Agencies(ctx context.Context, orgID string) ([]agency.Agency, error) {
	return s.repo.Agencies(ctx, orgID)
}

func (s *HierarchyService) Config(ctx context.Context, orgID string) (*agency.Config, error) {
	c, err := s.repo.Config(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, serrors.New(404, "HIER_CONFIG_NOT_FOUND", "organization is not provisioned", err)
		}
		return nil, serrors.New(500, "HIER_CONFIG", "failed to load org config", err)
	}
	return c, nil
}

func mapLookupErr(kind, name string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return serrors.New(404, "HIER_AGENCY_NOT_FOUND", fmt.Sprintf("%s agency %q not found", kind, name), err)
	}
	return serrors.New(500, "HIER_LOOKUP", "failed to resolve "+kind+" agency", err)
}
