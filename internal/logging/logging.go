// Package logging configures the process-wide logger and the request logging
// middleware for the API server.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const ginRequestIDKey = "__request_id__"

// Options controls logger setup.
type Options struct {
	Level  string
	ToFile bool
	Dir    string
}

// Setup configures logrus. With ToFile set, output also rotates through a
// lumberjack writer under Dir.
func Setup(opts Options) {
	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	if !opts.ToFile {
		log.SetOutput(os.Stderr)
		return
	}

	dir := opts.Dir
	if dir == "" {
		dir = "logs"
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "agentconsole.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   false,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

// GetGinRequestID returns the request id assigned by GinLogger, or "".
func GetGinRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if v, exists := c.Get(ginRequestIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GinLogger assigns a request id and logs one line per request with the
// fields the dashboard team greps for.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set(ginRequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"ip":         c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Info("request completed")
	}
}
