package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/gin-gonic/gin"
	"github.com/tm-signals/signals_service/pkg/metrics"
)

// ResponseCache keeps successful GET responses of the public market data
// routes in process for a short TTL
type ResponseCache struct {
	cache *ristretto.Cache
}

type cachedResponse struct {
	contentType string
	body        []byte
}

func NewResponseCache(maxBytes int64) (*ResponseCache, error) {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	return &ResponseCache{cache: cache}, nil
}

// Cache serves repeated GETs from memory. Only 200 responses are stored.
func (rc *ResponseCache) Cache(ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || ttl <= 0 {
			c.Next()
			return
		}

		key := cacheKey(c)
		if v, ok := rc.cache.Get(key); ok {
			metrics.ResponseCacheTotal.WithLabelValues("hit").Inc()
			hit := v.(cachedResponse)
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, hit.contentType, hit.body)
			c.Abort()
			return
		}
		metrics.ResponseCacheTotal.WithLabelValues("miss").Inc()

		writer := &cacheWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		if writer.Status() == http.StatusOK && writer.body.Len() > 0 {
			body := append([]byte(nil), writer.body.Bytes()...)
			rc.cache.SetWithTTL(key, cachedResponse{
				contentType: writer.Header().Get("Content-Type"),
				body:        body,
			}, int64(len(body)), ttl)
		}
	}
}

// Close stops the cache goroutines
func (rc *ResponseCache) Close() {
	rc.cache.Close()
}

func cacheKey(c *gin.Context) string {
	sum := sha256.Sum256([]byte(c.Request.URL.Path + "?" + c.Request.URL.RawQuery))
	return "api:" + hex.EncodeToString(sum[:16])
}

// cacheWriter captures response data for caching
type cacheWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *cacheWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *cacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
