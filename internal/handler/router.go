package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Ask   *AskHandler
	Cache *CacheHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/ask", deps.Ask.Ask)
	api.GET("/cache/stats", deps.Cache.Stats)
	api.POST("/cache/routes/flush", deps.Cache.FlushRoutes)
}
