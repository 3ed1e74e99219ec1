package web

import (
	"github.com/Is0cre/growtent/auth"
	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/statecache"
	"github.com/Is0cre/growtent/internal/web/api"
	"github.com/Is0cre/growtent/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type WebServer struct {
	router *gin.Engine
}

func NewWebServer(database *db.DB, cache *statecache.Cache, engine api.EngineInterface, authModule *auth.AuthModule, log zerolog.Logger) *WebServer {
	router := gin.Default()

	mw := middleware.NewMiddlewareManager(authModule, log)

	api.RegisterAuthRoutes(router, authModule, log)
	api.RegisterSensorRoutes(router, mw, database, cache, log)
	api.RegisterDeviceRoutes(router, mw, database, engine, log)
	api.RegisterProjectRoutes(router, mw, database, log)
	api.RegisterTimelapseRoutes(router, mw, database, log)
	api.RegisterSettingsRoutes(router, mw, database, engine, log)
	api.RegisterCameraRoutes(router, mw, engine, log)
	api.RegisterSystemRoutes(router, mw, database, engine, log)

	return &WebServer{router: router}
}

func (ws *WebServer) Start(addr string) error {
	return ws.router.Run(addr)
}
