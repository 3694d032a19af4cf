// Package api wires the HTTP surface. Handlers bind and authorize,
// then delegate to the service packages; they hold no business rules.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aethra/farmops/internal/alerts"
	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/codegen"
	"github.com/aethra/farmops/internal/config"
	"github.com/aethra/farmops/internal/cycle"
	"github.com/aethra/farmops/internal/dailylog"
	"github.com/aethra/farmops/internal/harvest"
	"github.com/aethra/farmops/internal/sales"
)

// Handler carries every dependency the HTTP layer needs
type Handler struct {
	db       *gorm.DB
	cfg      *config.Config
	jwt      *auth.JWTService
	perms    *auth.PermissionService
	codes    *codegen.Allocator
	cycles   *cycle.Service
	logs     *dailylog.Service
	harvests *harvest.Service
	orders   *sales.Service
	sweeper  *alerts.Sweeper
}

// NewHandler builds the handler with its service graph
func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	codes := codegen.NewAllocator()
	policy := harvest.GradeReject
	if cfg.Harvest.GradePolicy == "ignore" {
		policy = harvest.GradeIgnore
	}
	return &Handler{
		db:       db,
		cfg:      cfg,
		jwt:      auth.NewJWTService(),
		perms:    auth.NewPermissionService(db),
		codes:    codes,
		cycles:   cycle.NewService(db, codes),
		logs:     dailylog.NewService(db),
		harvests: harvest.NewService(db, policy),
		orders:   sales.NewService(db),
		sweeper:  alerts.NewSweeper(db),
	}
}

// SetupRouter builds the gin engine with all routes
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	h := NewHandler(db, cfg)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.GET("/me", h.AuthMiddleware(), h.Me)
	}

	api := r.Group("/api")
	api.Use(h.AuthMiddleware())
	{
		api.GET("/farms", h.ListFarms)
		api.POST("/farms", h.CreateFarm)
		api.GET("/farms/:id", h.GetFarm)

		api.GET("/sites", h.ListSites)
		api.POST("/sites", h.CreateSite)

		api.GET("/greenhouses", h.ListGreenhouses)
		api.POST("/greenhouses", h.CreateGreenhouse)

		api.GET("/boreholes", h.ListBoreholes)
		api.POST("/boreholes", h.CreateBorehole)

		api.POST("/assets", h.CreateAsset)

		api.GET("/production-cycles", h.ListCycles)
		api.POST("/production-cycles", h.CreateCycle)
		api.GET("/production-cycles/:id", h.GetCycle)
		api.POST("/production-cycles/:id/start", h.StartCycle)
		api.POST("/production-cycles/:id/begin-harvesting", h.BeginHarvesting)
		api.POST("/production-cycles/:id/complete", h.CompleteCycle)
		api.POST("/production-cycles/:id/abandon", h.AbandonCycle)

		api.POST("/production-cycles/:id/daily-logs", h.UpsertDailyLog)
		api.GET("/daily-logs/:id", h.GetDailyLog)
		api.POST("/daily-logs/:id/submit", h.SubmitDailyLog)

		api.POST("/production-cycles/:id/harvest-records", h.CreateHarvestRecord)
		api.GET("/harvest-records/:id", h.GetHarvestRecord)
		api.POST("/harvest-records/:id/crates", h.AddCrates)
		api.PUT("/harvest-crates/:id", h.UpdateCrate)
		api.DELETE("/harvest-crates/:id", h.DeleteCrate)
		api.POST("/harvest-records/:id/submit", h.SubmitHarvestRecord)
		api.POST("/harvest-records/:id/approve", h.ApproveHarvestRecord)

		api.POST("/sales-orders", h.CreateSalesOrder)
		api.GET("/sales-orders/:id", h.GetSalesOrder)
		api.POST("/sales-orders/:id/items", h.AddOrderItem)
		api.PUT("/sales-order-items/:id", h.UpdateOrderItem)
		api.DELETE("/sales-order-items/:id", h.RemoveOrderItem)
		api.POST("/sales-orders/:id/payments", h.AddPayment)
		api.POST("/sales-orders/:id/confirm", h.ConfirmOrder)
		api.POST("/sales-orders/:id/dispatch", h.DispatchOrder)
		api.POST("/sales-orders/:id/invoice", h.InvoiceOrder)
		api.POST("/sales-orders/:id/complete", h.CompleteOrder)
		api.POST("/sales-orders/:id/cancel", h.CancelOrder)

		api.GET("/alerts", h.ListAlerts)
	}

	return r
}
