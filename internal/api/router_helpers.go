package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/middleware"
	"github.com/persistorai/dashport/internal/models"
)

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}
		log.WithFields(fields).Info("request")
	}
}

// parseImportOptions reads the "overwrite" and "actor_id" form fields.
func parseImportOptions(c *gin.Context) (models.ImportOptions, error) {
	var opts models.ImportOptions

	if raw := c.PostForm("overwrite"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("overwrite must be a boolean")
		}

		opts.Overwrite = v
	}

	actor, err := parseOptionalID(c.PostForm("actor_id"))
	if err != nil {
		return opts, fmt.Errorf("actor_id: %w", err)
	}

	opts.ActorID = actor

	return opts, nil
}

// parseOptionalID parses a positive id; empty input yields nil.
func parseOptionalID(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("must be a positive integer")
	}

	return &id, nil
}

func isBodyTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError

	return errors.As(err, &maxBytes)
}
