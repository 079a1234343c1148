package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tm-signals/signals_service/internal/api/middleware"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"github.com/tm-signals/signals_service/pkg/logger"
)

const dateLayout = "2006-01-02"

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError maps any error to HTTP 400 {"error": message}. Upstream and
// internal failures are logged with the request logger.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeUpstream, apperrors.ErrCodeInternal:
		requestLogger(c, log).WithError(err).Errorw("Request failed", "code", apperrors.CodeOf(err))
	}
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: apperrors.Message(err)})
}

// respondBadRequest rejects malformed input
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func requestLogger(c *gin.Context, fallback *logger.Logger) *logger.Logger {
	if v, ok := c.Get(middleware.ContextLogger); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return fallback
}

// csvQuery splits a comma separated query parameter, dropping blanks
func csvQuery(c *gin.Context, name string) []string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func idsQuery(c *gin.Context, name string) ([]int64, error) {
	parts := csvQuery(c, name)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, errors.New("invalid " + name + ": " + p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// intQuery reads the first present parameter among names, or def when absent
func intQuery(c *gin.Context, def int, names ...string) (int, error) {
	for _, name := range names {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, errors.New("invalid " + name + ": " + raw)
		}
		return n, nil
	}
	return def, nil
}

func dateQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errors.New("invalid " + name + ", expected YYYY-MM-DD")
	}
	return t, nil
}
