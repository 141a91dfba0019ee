package handler

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
// 与原接口保持一致：单一端点，按 HTTP 方法分派操作。
func SetupRouter(gameHandler *GameHandler) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(CORS())

	r.GET("/api/game", gameHandler.HandleGet)
	r.POST("/api/game", gameHandler.HandlePost)
	r.PUT("/api/game", gameHandler.HandlePut)
	r.DELETE("/api/game", gameHandler.HandleDelete)
	r.OPTIONS("/api/game", func(c *gin.Context) {})

	return r
}
