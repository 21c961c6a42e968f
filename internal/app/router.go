// internal/app/router.go
package app

import (
	"time"

	customerHandler "impriartex-service/internal/handlers/customer"
	equipmentHandler "impriartex-service/internal/handlers/equipment"
	exportHandler "impriartex-service/internal/handlers/export"
	projectionHandler "impriartex-service/internal/handlers/projection"
	sessionHandler "impriartex-service/internal/handlers/session"
	ticketHandler "impriartex-service/internal/handlers/ticket"
	wsHandler "impriartex-service/internal/handlers/websocket"
	"impriartex-service/internal/middleware"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	TicketHandler     *ticketHandler.TicketHandler
	EquipmentHandler  *equipmentHandler.EquipmentHandler
	CustomerHandler   *customerHandler.CustomerHandler
	ProjectionHandler *projectionHandler.ProjectionHandler
	ExportHandler     *exportHandler.ExportHandler
	SessionHandler    *sessionHandler.SessionHandler
	WSHandler         *wsHandler.WebSocketHandler
	AuthMiddleware    *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, origins []string, h *Handlers) {
	r.Use(
		ginzap.Ginzap(logger, time.RFC3339, true),
		middleware.RecoveryMiddleware(logger),
		cors.New(corsConfig(origins)),
	)

	// ==================== Metrics ====================
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== WebSocket ====================
	// browsers cannot set headers on the upgrade request, so the token may come as ?token=
	r.GET("/ws", h.AuthMiddleware.Auth(), h.WSHandler.HandleConnection)

	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Session ====================
	sessions := api.Group("/session")
	sessions.Use(h.AuthMiddleware.Auth())
	{
		sessions.GET("/me", h.SessionHandler.Me)
		sessions.POST("/logout", h.SessionHandler.Logout)
	}

	// ==================== Projection ====================
	projection := api.Group("")
	projection.Use(h.AuthMiddleware.Auth())
	{
		projection.GET("/snapshot", h.ProjectionHandler.GetSnapshot)
		projection.GET("/summary", h.ProjectionHandler.GetSummary)
	}

	// ==================== Tickets ====================
	tickets := api.Group("/tickets")
	tickets.Use(h.AuthMiddleware.Auth())
	{
		tickets.GET("", h.TicketHandler.ListTickets)
		tickets.POST("", h.TicketHandler.CreateTicket)
		tickets.GET("/:id", h.TicketHandler.GetTicket)
		tickets.PUT("/:id/acknowledge", h.TicketHandler.AcknowledgeTicket)
		tickets.PUT("/:id/resolve", h.TicketHandler.ResolveTicket)
	}

	// ==================== Equipment ====================
	equipment := api.Group("/equipment")
	equipment.Use(h.AuthMiddleware.Auth())
	{
		equipment.GET("", h.EquipmentHandler.ListEquipment)
	}
	equipmentAdmin := api.Group("/equipment")
	equipmentAdmin.Use(h.AuthMiddleware.SupervisorOnly()...)
	{
		equipmentAdmin.POST("", h.EquipmentHandler.CreateEquipment)
		equipmentAdmin.POST("/import", h.EquipmentHandler.ImportEquipment)
		equipmentAdmin.PUT("/:id/customer", h.EquipmentHandler.LinkCustomer)
	}

	// ==================== Customers & Technicians ====================
	customers := api.Group("/customers")
	customers.Use(h.AuthMiddleware.Auth())
	{
		customers.GET("", h.CustomerHandler.ListCustomers)
	}
	customersAdmin := api.Group("/customers")
	customersAdmin.Use(h.AuthMiddleware.SupervisorOnly()...)
	{
		customersAdmin.PUT("/:id/technician", h.CustomerHandler.AssignTechnician)
	}
	api.GET("/technicians", h.AuthMiddleware.Auth(), h.CustomerHandler.ListTechnicians)

	// ==================== Exports ====================
	exports := api.Group("/exports")
	exports.Use(h.AuthMiddleware.Auth())
	{
		exports.GET("/tickets", h.ExportHandler.DownloadTickets)
	}
	exportsAdmin := api.Group("/exports")
	exportsAdmin.Use(h.AuthMiddleware.SupervisorOnly()...)
	{
		exportsAdmin.POST("/tickets/archive", h.ExportHandler.ArchiveTickets)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.SupervisorOnly()...)
	{
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
