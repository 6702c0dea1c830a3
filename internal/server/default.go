package server

import (
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/agencyhq/warroom/internal/extract"
	"github.com/agencyhq/warroom/internal/workspace"
	hierevents "github.com/agencyhq/warroom/modules/hierarchy/domain/events"
	hierpersistence "github.com/agencyhq/warroom/modules/hierarchy/infrastructure/persistence"
	hierservices "github.com/agencyhq/warroom/modules/hierarchy/services"
	regpersistence "github.com/agencyhq/warroom/modules/registration/infrastructure/persistence"
	regcontrollers "github.com/agencyhq/warroom/modules/registration/presentation/controllers"
	regservices "github.com/agencyhq/warroom/modules/registration/services"
	structservices "github.com/agencyhq/warroom/modules/structure/services"
	wizardservices "github.com/agencyhq/warroom/modules/wizard/services"
	"github.com/agencyhq/warroom/pkg/commands"
	"github.com/agencyhq/warroom/pkg/configuration"
	"github.com/agencyhq/warroom/pkg/constants"
	"github.com/agencyhq/warroom/pkg/eventbus"
	"github.com/agencyhq/warroom/pkg/middleware"
	"github.com/agencyhq/warroom/pkg/server"
)

type Options struct {
	Configuration *configuration.Configuration
	Logger        *logrus.Logger
	Pool          *pgxpool.Pool
	Workspace     workspace.Client
	Extractor     extract.Extractor

	// Store overrides. Left nil, the Postgres repositories are used.
	HierarchyStore    hierservices.HierarchyRepository
	RegistrationStore regservices.RegistrationRepository
}

// Server bundles the wired services behind the two inbound surfaces: the
// command registry (fed by the platform gateway) and the HTTP API.
type Server struct {
	HTTP     *server.HTTPServer
	Commands *commands.Registry
	Wizard   *wizardservices.Registry

	hierarchy    *hierservices.HierarchyService
	templates    *structservices.TemplateService
	reconcile    *structservices.ReconcileService
	interpreter  *structservices.InterpreterService
	registration *regservices.RegistrationService
	store        hierservices.HierarchyRepository
	ws           workspace.Client
	extractor    extract.Extractor
	log          *logrus.Logger
}

func Default(opts *Options) *Server {
	bus := eventbus.NewEventPublisher(opts.Logger)

	hierRepo := opts.HierarchyStore
	if hierRepo == nil {
		hierRepo = hierpersistence.NewHierarchyRepository()
	}
	regRepo := opts.RegistrationStore
	if regRepo == nil {
		regRepo = regpersistence.NewRegistrationRepository()
	}

	hierarchy := hierservices.NewHierarchyService(hierRepo, opts.Workspace, bus, opts.Logger)
	templates := structservices.NewTemplateService(opts.Workspace, hierRepo, bus, opts.Logger, opts.Configuration.ProvisionPacing)

	s := &Server{
		Commands:     commands.NewRegistry(opts.Configuration.OwnerUserID, opts.Logger),
		Wizard:       wizardservices.NewRegistry(opts.Extractor, opts.Configuration.WizardSessionTTL, opts.Logger),
		hierarchy:    hierarchy,
		templates:    templates,
		reconcile:    structservices.NewReconcileService(opts.Workspace, opts.Logger),
		interpreter:  structservices.NewInterpreterService(opts.Workspace, templates, hierarchy, hierRepo, opts.Logger),
		registration: regservices.NewRegistrationService(regRepo, hierRepo, opts.Workspace, bus, opts.Logger),
		store:        hierRepo,
		ws:           opts.Workspace,
		extractor:    opts.Extractor,
		log:          opts.Logger,
	}
	s.registerCommands(opts)
	registerEventLoggers(bus, opts.Logger)

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(opts.Logger),
		middleware.Provide(constants.PoolKey, opts.Pool),
	}
	controllers := []server.Controller{
		regcontrollers.NewBadgeAPIController(s.registration, opts.Logger),
	}
	s.HTTP = server.NewHTTPServer(controllers, middlewares)
	return s
}

// Registration hands the registration service to gateway event hooks (member
// joins, modal submissions) that do not come through the command registry.
func (s *Server) Registration() *regservices.RegistrationService {
	return s.registration
}

func registerEventLoggers(bus eventbus.EventBus, log *logrus.Logger) {
	bus.Subscribe(func(e hierevents.EdgeMapped) {
		log.WithFields(logrus.Fields{
			"org_id":   e.OrgID,
			"downline": e.DownlineName,
			"upline":   e.UplineName,
			"inserted": e.Inserted,
		}).Info("hierarchy edge mapped")
	})
	bus.Subscribe(func(e structservices.MainStructureBuilt) {
		log.WithFields(logrus.Fields{
			"org_id":     e.OrgID,
			"categories": e.Categories,
			"channels":   e.Channels,
		}).Info("main structure built")
	})
	bus.Subscribe(func(e structservices.AgencyProvisioned) {
		log.WithFields(logrus.Fields{
			"org_id":  e.OrgID,
			"agency":  e.Name,
			"is_main": e.IsMain,
		}).Info("agency provisioned")
	})
	bus.Subscribe(func(e regservices.AgentRegistered) {
		log.WithFields(logrus.Fields{
			"org_id": e.OrgID,
			"agent":  e.AgentName,
		}).Info("agent registered")
	})
}
