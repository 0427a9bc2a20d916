package modules

import (
	"github.com/bops-digital/bops/modules/bops"
	"github.com/bops-digital/bops/pkg/application"
)

var BuiltInModules = []application.Module{
	bops.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	return application.Load(app, append(BuiltInModules, externalModules...)...)
}
