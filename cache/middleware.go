package cache

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
)

// responseWriter holds the handler output back so the middleware can
// still answer 304 after seeing it.
type responseWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
}

func (w *responseWriter) WriteHeaderNow() {}

func (w *responseWriter) Status() int {
	return w.status
}

func (w *responseWriter) Size() int {
	return w.body.Len()
}

func (w *responseWriter) Written() bool {
	return false
}

// ETag tags successful GET responses with a hash of their body and answers
// 304 Not Modified when the client already holds that version.
func ETag() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		original := c.Writer
		writer := &responseWriter{
			ResponseWriter: original,
			body:           bytes.NewBuffer(nil),
			status:         http.StatusOK,
		}
		c.Writer = writer

		c.Next()

		c.Writer = original

		if writer.status != http.StatusOK {
			original.WriteHeader(writer.status)
			_, _ = original.Write(writer.body.Bytes())
			return
		}

		etag := entityTag(writer.body.Bytes())
		original.Header().Set("ETag", etag)
		original.Header().Set("Cache-Control", "private, no-cache")

		if matchesETag(c.GetHeader("If-None-Match"), etag) {
			original.Header().Del("Content-Type")
			original.WriteHeader(http.StatusNotModified)
			original.WriteHeaderNow()
			return
		}

		original.WriteHeader(http.StatusOK)
		_, _ = original.Write(writer.body.Bytes())
	}
}
