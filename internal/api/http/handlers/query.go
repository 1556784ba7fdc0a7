package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/escalation-service/pkg/errorutil"
)

func optionalQuery(c *fiber.Ctx, key string) *string {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	return &val
}

func parseTime(c *fiber.Ctx, key string) (*time.Time, error) {
	val := c.Query(key)
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewInvalidRequest(key+" must be an RFC3339 timestamp", map[string]any{key: val})
	}
	return &t, nil
}

func parseInt(c *fiber.Ctx, key string, def int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperrors.NewInvalidRequest(key+" must be an integer", map[string]any{key: val})
	}
	return parsed, nil
}

// parsePage reads skip/limit. A missing limit is left at zero so the service default applies.
func parsePage(c *fiber.Ctx) (limit, offset int, err error) {
	if offset, err = parseInt(c, "skip", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = parseInt(c, "limit", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
