package mw

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheHeader reports whether a response came from the cache.
const CacheHeader = "X-Cache"

type snapshot struct {
	status   int
	headers  http.Header
	body     []byte
	storedAt time.Time
}

// recorder tees the handler's body so it can be replayed.
type recorder struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w recorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w recorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache replays successful GET responses for ttl so UI clients polling the
// indicator together produce one handler call. A request carrying
// "Cache-Control: no-cache" skips the stored copy and refreshes it.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.Path + "?" + c.Request.URL.RawQuery
		refresh := strings.Contains(c.GetHeader("Cache-Control"), "no-cache")

		if v, ok := store.Get(key); ok && !refresh {
			hit := v.(snapshot)
			h := c.Writer.Header()
			for k, vals := range hit.headers {
				h[k] = vals
			}
			h.Set(CacheHeader, "HIT")
			h.Set("Age", strconv.Itoa(int(time.Since(hit.storedAt).Seconds())))
			c.Writer.WriteHeader(hit.status)
			c.Writer.Write(hit.body)
			c.Abort()
			return
		}

		c.Writer.Header().Set(CacheHeader, "MISS")
		rec := &recorder{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		if status := rec.Status(); status >= 200 && status < 300 {
			h := rec.Header().Clone()
			h.Del(CacheHeader)
			store.Set(key, snapshot{status: status, headers: h, body: rec.buf.Bytes(), storedAt: time.Now()}, ttl)
		}
	}
}
