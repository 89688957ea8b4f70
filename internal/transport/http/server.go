package http

import (
	"github.com/gin-gonic/gin"

	"chatrewind/internal/bootstrap"
	"chatrewind/internal/transport/http/handler"
	"chatrewind/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	chatHandler := handler.NewChatHandler(app.Turns, app.Logger)
	modelsHandler := handler.NewModelsHandler(app.Config.LLM.Models)

	router.StaticFile("/", "web/index.html")
	router.GET("/healthz", healthHandler.Check)

	router.GET("/chat/", chatHandler.GetChat)
	router.POST("/chat/", chatHandler.PostChat)
	router.POST("/reset-chat/", chatHandler.ResetChat)
	router.GET("/models/", modelsHandler.List)

	return router
}
