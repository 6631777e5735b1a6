package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/finquery/finquery/internal/cache"
	"github.com/finquery/finquery/internal/pkg/response"
)

type CacheHandler struct {
	responseCache *cache.ResponseCache
	routeCache    *cache.RouteCache
	toolCache     *cache.ToolCache
}

func NewCacheHandler(responseCache *cache.ResponseCache, routeCache *cache.RouteCache, toolCache *cache.ToolCache) *CacheHandler {
	return &CacheHandler{
		responseCache: responseCache,
		routeCache:    routeCache,
		toolCache:     toolCache,
	}
}

func (h *CacheHandler) Stats(c *gin.Context) {
	response.Success(c, gin.H{
		"response": h.responseCache.Stats(),
		"route":    h.routeCache.Stats(),
		"tool":     h.toolCache.Stats(),
	})
}

// FlushRoutes drops all cached routing decisions, for when the workflow
// catalog changes without waiting out the TTL.
func (h *CacheHandler) FlushRoutes(c *gin.Context) {
	if err := h.routeCache.Flush(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"flushed": true})
}
