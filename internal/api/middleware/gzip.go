package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// DefaultMaxBody matches the collector's 10mb JSON limit
const DefaultMaxBody int64 = 10 << 20

// Decompress inflates gzip request bodies in place and caps the inflated
// size at maxBytes. Unknown encodings get 415.
func Decompress(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBody
	}

	return func(c *gin.Context) {
		encoding := strings.ToLower(strings.TrimSpace(c.GetHeader("Content-Encoding")))
		switch encoding {
		case "", "identity":
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		case "gzip":
			zr, err := gzip.NewReader(c.Request.Body)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   "Invalid gzip body",
				})
				return
			}
			defer zr.Close()

			c.Request.Body = http.MaxBytesReader(c.Writer, readCloser{Reader: zr, closer: c.Request.Body}, maxBytes)
			c.Request.Header.Del("Content-Encoding")
			c.Request.Header.Del("Content-Length")
			c.Request.ContentLength = -1
		default:
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"success": false,
				"error":   "Unsupported content encoding",
			})
			return
		}

		c.Next()
	}
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error {
	return r.closer.Close()
}
