package host

import (
	"github.com/smallbiznis/inventory/internal/host/dedup"
	"github.com/smallbiznis/inventory/internal/host/match"
	"github.com/smallbiznis/inventory/internal/host/repository"
	"github.com/smallbiznis/inventory/internal/host/service"
	"go.uber.org/fx"
)

var Module = fx.Module("host.service",
	fx.Provide(repository.Provide),
	fx.Provide(match.NewBuilder),
	fx.Provide(repository.NewStore),
	fx.Provide(
		dedup.New,
		func(r *dedup.Resolver) service.Resolver { return r },
	),
	fx.Provide(service.New),
)
