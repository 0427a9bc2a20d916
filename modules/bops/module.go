package bops

import (
	"embed"

	"github.com/bops-digital/bops/modules/bops/handlers"
	"github.com/bops-digital/bops/modules/bops/infrastructure/notify"
	"github.com/bops-digital/bops/modules/bops/infrastructure/persistence"
	"github.com/bops-digital/bops/modules/bops/presentation/controllers"
	"github.com/bops-digital/bops/modules/bops/services"
	"github.com/bops-digital/bops/pkg/application"
	"github.com/bops-digital/bops/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/bops-schema.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	conf := configuration.Use()
	apps := persistence.NewPlanningApplicationRepository()
	requests := persistence.NewValidationRequestRepository()
	recs := persistence.NewRecommendationRepository()
	appeals := persistence.NewAppealRepository()
	docs := persistence.NewDocumentRepository()
	audits := persistence.NewAuditRepository()
	bus := app.EventPublisher()

	app.RegisterServices(
		services.NewApplicationService(apps, requests, recs, docs, audits, bus, conf.CloningEnabled),
		services.NewValidationRequestService(apps, requests, docs, audits, bus, conf.RequestResponseDays),
		services.NewRecommendationService(apps, recs, requests, audits, bus),
		services.NewAppealService(apps, appeals, docs, audits),
	)

	app.RegisterControllers(
		controllers.NewBopsAPIController(app),
	)

	handlers.RegisterNotificationHandler(bus, notify.NewNotifier(conf, app.Logger()), app.Logger())

	return nil
}

func (m *Module) Name() string {
	return "bops"
}
