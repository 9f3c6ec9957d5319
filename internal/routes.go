package internal

import (
	"net/http"

	"hed/internal/controllers"
	"hed/internal/providers"
)

func InitRoutes(exportController *controllers.ExportController, trendsController *controllers.TrendsController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/exports/run", http.HandlerFunc(exportController.RunExport))
	routers.Get("/exports", http.HandlerFunc(exportController.GetManifest))
	routers.Get("/exports/latest", http.HandlerFunc(exportController.GetLatest))
	routers.Get("/trends/{kind}", http.HandlerFunc(trendsController.GetTrends))
	return routers
}
