package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dhoini/seatsync/internal/app"
	"github.com/Dhoini/seatsync/pkg/logger"
)

// SetupRoutes registers every API route on the Gin router.
func SetupRoutes(router *gin.Engine, app *app.App, log *logger.Logger) {
	router.Use(app.LoggerMiddleware)
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.GET("/health", app.HealthHandler.Health)

		webhooks := api.Group("/webhooks")
		webhooks.Use(app.CORSMiddleware)
		{
			webhooks.POST("/stripe", app.WebhookHandler.HandleStripeWebhook)
			webhooks.OPTIONS("/stripe", app.WebhookHandler.Preflight)
		}

		auth := api.Group("")
		auth.Use(app.AuthMiddleware.RequireAuth())

		orgs := auth.Group("/organizations/:organization_id")
		{
			orgs.GET("/billing", app.BillingHandler.GetBilling)
			orgs.GET("/invitations/eligibility", app.BillingHandler.GetInvitationEligibility)
		}
	}

	log.Infow("API routes configured")
}
