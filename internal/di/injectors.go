//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"hed/internal"
	"hed/internal/controllers"
	"hed/internal/export"
	"hed/internal/export/interfaces"
	"hed/internal/providers"
	"hed/internal/recordstore"
	"hed/internal/services"
	"hed/internal/structures"
	"hed/internal/warehouse"
)

var exportSet = wire.NewSet(
	recordstore.NewSQLStore,
	wire.Bind(new(interfaces.RecordStore), new(*recordstore.SQLStore)),
	warehouse.NewPostgresWarehouse,
	wire.Bind(new(interfaces.Warehouse), new(*warehouse.PostgresWarehouse)),
	wire.Bind(new(services.QueryRunner), new(*warehouse.PostgresWarehouse)),

	export.NewBlobStore,
	export.NewRetrier,
	export.NewAnonymizer,
	export.NewArchiveWriter,
	export.NewWarehouseLoader,
	export.NewZstdCompressor,
	export.NewManifestLedger,
	export.NewPipeline,

	services.NewAnalyticsService,
	wire.Bind(new(services.AnalyticsServiceInterface), new(*services.AnalyticsService)),
)

func InitApp(cfg *structures.CliFlags) (*internal.App, func(), error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		exportSet,
		export.NewScheduler,

		wire.Bind(new(controllers.RunReporter), new(*export.Pipeline)),
		wire.Bind(new(controllers.ManifestReader), new(*export.ManifestLedger)),
		controllers.NewExportController,
		controllers.NewTrendsController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil, nil
}

func InitExporter(cfg *structures.CliFlags) (*internal.Exporter, func(), error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,

		exportSet,
		internal.NewExporter,
	)

	return nil, nil, nil
}
