package router

import (
	"net/http"
	"time"

	"soko/config"
	"soko/internal/handler"
	"soko/internal/middleware"
	"soko/internal/repository"
	"soko/internal/service"
	"soko/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewRateLimiter(100, time.Minute)))

	callRepo := repository.NewCallRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	hub := ws.NewPresenceHub()
	callSvc := service.NewCallService(callRepo, subRepo, hub)

	signalHandler := handler.NewSignalHandler(&cfg.JWT, hub, callSvc, subRepo)
	callHandler := handler.NewCallHandler(callRepo, subRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": hub.ConnCount()})
	})

	api := r.Group("/api/v1")
	{
		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/calls", callHandler.ListMine)
			me.GET("/subscription", callHandler.GetMySubscription)
		}
	}

	r.GET("/ws/signal", signalHandler.Upgrade())

	return r
}
