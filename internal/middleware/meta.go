package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	metaKey      = "response_meta"
	metaStartKey = "response_meta_start"
)

// ResponseMeta starts the per-request metadata bag rendered into the envelope meta.
func ResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartKey, time.Now())
		c.Set(metaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetMeta stores value under key for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaOf(c)[key] = value
}

// SetCacheHit marks whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// Meta returns a copy of the collected metadata. processing_time_ms is stamped when
// ResponseMeta saw the request start.
func Meta(c *gin.Context) map[string]interface{} {
	collected := metaOf(c)
	out := make(map[string]interface{}, len(collected)+1)
	for key, value := range collected {
		out[key] = value
	}
	if raw, ok := c.Get(metaStartKey); ok {
		if start, ok := raw.(time.Time); ok {
			out["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return out
}

func metaOf(c *gin.Context) map[string]interface{} {
	if raw, ok := c.Get(metaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := make(map[string]interface{})
	c.Set(metaKey, meta)
	return meta
}
