// Package middleware holds HTTP middleware that is not tied to a single
// domain package.
package middleware

import (
	"compress/gzip"
	"io"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Compression gzips JSON responses for clients that accept it. Writers are
// pooled since every API response goes through here.
type Compression struct {
	pool sync.Pool
}

// NewCompression creates the middleware with balanced compression.
func NewCompression() *Compression {
	return &Compression{
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
				return gz
			},
		},
	}
}

type gzipWriter struct {
	gin.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	return w.gz.Write(data)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.gz.Write([]byte(s))
}

// Handler returns the gin middleware.
func (c *Compression) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.Contains(ctx.GetHeader("Accept-Encoding"), "gzip") {
			ctx.Next()
			return
		}

		gz := c.pool.Get().(*gzip.Writer)
		gz.Reset(ctx.Writer)
		defer func() {
			gz.Close()
			c.pool.Put(gz)
		}()

		ctx.Header("Content-Encoding", "gzip")
		ctx.Header("Vary", "Accept-Encoding")
		// Compressed length is unknown until the body is flushed.
		ctx.Header("Content-Length", "")
		ctx.Writer = &gzipWriter{ResponseWriter: ctx.Writer, gz: gz}
		ctx.Next()
	}
}
