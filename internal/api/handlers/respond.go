package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// respondError maps domain errors onto status codes: invalid parameters are
// 400, missing data is 503, anything else 500.
func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDataUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ParamError{Name: name, Value: raw, Reason: "must be an integer"}
	}
	return v, nil
}

func queryFloat(c *gin.Context, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &domain.ParamError{Name: name, Value: raw, Reason: "must be a number"}
	}
	return v, nil
}

// queryOptionalFloat returns nil when name is absent, so an explicit zero
// stays distinguishable from a default.
func queryOptionalFloat(c *gin.Context, name string) (*float64, error) {
	if strings.TrimSpace(c.Query(name)) == "" {
		return nil, nil
	}
	v, err := queryFloat(c, name, 0)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// queryOptionalID reads an optional integer id. place_id is accepted as an
// alias of location_id.
func queryOptionalID(c *gin.Context, names ...string) (*int64, error) {
	for _, name := range names {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &domain.ParamError{Name: name, Value: raw, Reason: "must be an integer"}
		}
		return &v, nil
	}
	return nil, nil
}

func queryIDList(c *gin.Context, name string) ([]int64, error) {
	var ids []int64
	for _, value := range c.QueryArray(name) {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, &domain.ParamError{Name: name, Value: part, Reason: "must be a list of integers"}
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func pathItemID(c *gin.Context) (int64, error) {
	raw := c.Param("item_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.ParamError{Name: "item_id", Value: raw, Reason: "must be an integer"}
	}
	return id, nil
}
