package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agencyhq/warroom/internal/workspace"
	hierarchy "github.com/agencyhq/warroom/modules/hierarchy/services"
	"github.com/agencyhq/warroom/modules/structure/domain/action"
)

// EdgeMapper records a hierarchy edge and applies the permission cascade.
type EdgeMapper interface {
	MapEdge(ctx context.Context, orgID, downlineName, uplineName string) (*hierarchy.MapOutcome, error)
}

type ReportLine struct {
	Action string
	Ok     bool
	Detail string
}

// PortalEntry maps one agency name to the role the onboarding surface
// assigns on selection.
type PortalEntry struct {
	Name   string
	RoleID string
}

// OnboardingPortal is the payload handed to the external selection surface.
type OnboardingPortal struct {
	Entries []PortalEntry
}

// Report accumulates per-action outcomes of one ActionList execution.
type Report struct {
	ID     uuid.UUID
	Lines  []ReportLine
	Portal *OnboardingPortal
}

func (r *Report) add(kind string, ok bool, detail string) {
	r.Lines = append(r.Lines, ReportLine{Action: kind, Ok: ok, Detail: detail})
}

// Summary renders the report as user-facing text, one line per action.
func (r *Report) Summary() string {
	var b strings.Builder
	for _, line := range r.Lines {
		if line.Ok {
			b.WriteString("✅ ")
		} else {
			b.WriteString("❌ ")
		}
		b.WriteString(line.Detail)
		b.WriteString("\n")
	}
	return b.String()
}

// InterpreterService executes an ActionList strictly in order. One action's
// failure is captured into the report and never aborts the remaining actions;
// ordering contracts (wipe before build) belong to the list's producer.
type InterpreterService struct {
	ws        workspace.Client
	templates *TemplateService
	mapper    EdgeMapper
	store     HierarchyStore
	log       *logrus.Logger
}

func NewInterpreterService(ws workspace.Client, templates *TemplateService, mapper EdgeMapper, store HierarchyStore, log *logrus.Logger) *InterpreterService {
	return &InterpreterService{ws: ws, templates: templates, mapper: mapper, store: store, log: log}
}

// Execute runs the list for the given org. originChannelID is the channel the
// command came from; Wipe spares it. orgName feeds the org config when the
// main structure is built.
func (s *InterpreterService) Execute(ctx context.Context, orgID, orgName, originChannelID string, list []action.Action) *Report {
	report := &Report{ID: uuid.New()}

	for _, act := range list {
		switch a := act.(type) {
		case action.Wipe:
			if err := s.wipe(ctx, orgID, originChannelID); err != nil {
				report.add(a.Kind(), false, "Wipe failed: "+err.Error())
				continue
			}
			report.add(a.Kind(), true, "Wiped old structure")

		case action.BuildMainStructure:
			if err := s.templates.BuildMainStructure(ctx, orgID, orgName); err != nil {
				report.add(a.Kind(), false, "Main structure failed: "+err.Error())
				continue
			}
			report.add(a.Kind(), true, "Created main structure")

		case action.InitializeAgencies:
			created, err := s.templates.InitializeAgencies(ctx, orgID, a.Agencies)
			if err != nil {
				report.add(a.Kind(), false, fmt.Sprintf("Initialized %d of %d agencies: %v", len(created), len(a.Agencies), err))
				continue
			}
			report.add(a.Kind(), true, fmt.Sprintf("Initialized %d agencies", len(created)))

		case action.MapEdge:
			outcome, err := s.mapper.MapEdge(ctx, orgID, a.DownlineName, a.UplineName)
			if err != nil {
				report.add(a.Kind(), false, fmt.Sprintf("Skipped mapping %s -> %s: %v", a.DownlineName, a.UplineName, err))
				continue
			}
			detail := fmt.Sprintf("Mapped %s -> %s", outcome.Downline.Name, outcome.Upline.Name)
			if outcome.CascadeErr != nil {
				detail += " (view grant failed)"
			}
			report.add(a.Kind(), true, detail)

		case action.DeployOnboarding:
			portal, err := s.deployOnboarding(ctx, orgID)
			if err != nil {
				report.add(a.Kind(), false, "Onboarding portal failed: "+err.Error())
				continue
			}
			report.Portal = portal
			report.add(a.Kind(), true, fmt.Sprintf("Onboarding portal ready (%d agencies)", len(portal.Entries)))

		default:
			// The action set is sealed; a new variant must be handled here.
			panic(fmt.Sprintf("unhandled action kind %q", act.Kind()))
		}
	}
	return report
}

// wipe is best effort per item: every deletion failure is swallowed and a
// partial wipe is an accepted outcome. A failed enumeration means nothing was
// wiped at all, so that error does surface.
func (s *InterpreterService) wipe(ctx context.Context, orgID, originChannelID string) error {
	channels, err := s.ws.Channels(ctx, orgID)
	if err != nil {
		s.log.WithError(err).WithField("org_id", orgID).Warn("structure: wipe could not list channels")
		return err
	}
	for _, ch := range channels {
		if ch.ID == originChannelID {
			continue
		}
		if err := s.ws.DeleteChannel(ctx, orgID, ch.ID); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"org_id":  orgID,
				"channel": ch.Name,
			}).Debug("structure: wipe skipped channel")
		}
	}
	return nil
}

func (s *InterpreterService) deployOnboarding(ctx context.Context, orgID string) (*OnboardingPortal, error) {
	agencies, err := s.store.Agencies(ctx, orgID)
	if err != nil {
		return nil, err
	}
	portal := &OnboardingPortal{Entries: make([]PortalEntry, 0, len(agencies))}
	for _, a := range agencies {
		portal.Entries = append(portal.Entries, PortalEntry{Name: a.Name, RoleID: a.AgentRoleID})
	}
	return portal, nil
}
