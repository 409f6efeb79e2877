package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adamanr/unit_service/internal/entity"
	"github.com/adamanr/unit_service/internal/upstream"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultStatsDays = 7
	maxStatsDays     = 90
	statsFetchLimit  = 10000
	statsKeyPrefix   = "ident_stats:days:"
	dayLayout        = "2006-01-02"
)

var identListing = listing{
	search:        []string{"license", "device_name", "ip", "mac", "unit_code"},
	defaultStatus: "act",
}

type IdentController struct {
	deps      *Dependens
	selection *SelectionController
	now       func() time.Time
}

func NewIdentController(deps *Dependens, selection *SelectionController) *IdentController {
	return &IdentController{
		deps:      deps,
		selection: selection,
		now:       time.Now,
	}
}

func (c *IdentController) List(ctx context.Context, bearer, principal string, q entity.ListQuery) (entity.PaginateResponse[json.RawMessage], error) {
	req, err := identListing.paginateRequest(ctx, c.selection, bearer, principal, q)
	if err != nil {
		c.deps.Logger.Warn("Error building ident filter", slog.String("error", err.Error()))
		return entity.PaginateResponse[json.RawMessage]{}, err
	}

	resp, err := c.deps.Upstream.Paginate(ctx, upstream.IdentPaginate, bearer, req)
	if err != nil {
		c.deps.Metrics.UpstreamFailed("ident_paginate")
		return entity.PaginateResponse[json.RawMessage]{}, err
	}

	return resp, nil
}

func (c *IdentController) Create(ctx context.Context, bearer, principal string, req entity.IdentCreateRequest) (json.RawMessage, error) {
	unitCode, err := unitFor(ctx, c.selection, principal, req.UnitCode)
	if err != nil {
		return nil, err
	}
	req.UnitCode = unitCode

	if strings.TrimSpace(req.DeviceName) == "" && strings.TrimSpace(req.Mac) == "" {
		return nil, fmt.Errorf("%w: device_name or mac is required", ErrInvalidQuery)
	}

	var out json.RawMessage
	if err = c.deps.Upstream.Do(ctx, http.MethodPost, upstream.IdentCreate, bearer, req, &out); err != nil {
		c.deps.Metrics.UpstreamFailed("ident_create")
		return nil, err
	}

	c.deps.Logger.Info("Ident created", slog.String("unit_code", unitCode))
	return out, nil
}

// ClampDays bounds the stats window to 1..90 days.
func ClampDays(days int) int {
	switch {
	case days < 1:
		return 1
	case days > maxStatsDays:
		return maxStatsDays
	}

	return days
}

// Stats counts identities created per day over the last days days. Results
// are cached in Redis.
func (c *IdentController) Stats(ctx context.Context, bearer string, days int) (*entity.IdentStats, error) {
	days = ClampDays(days)
	key := statsKeyPrefix + strconv.Itoa(days)

	cached, err := c.deps.Redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var data []entity.DayCount
		if err = json.Unmarshal([]byte(cached), &data); err == nil {
			return &entity.IdentStats{FromCache: true, Data: data}, nil
		}
		c.deps.Logger.Warn("Dropping malformed stats cache", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.deps.Logger.Error("Error reading stats cache", slog.String("error", err.Error()))
	}

	resp, err := c.deps.Upstream.Paginate(ctx, upstream.IdentPaginate, bearer, entity.PaginateRequest{Page: 1, Limit: statsFetchLimit})
	if err != nil {
		c.deps.Metrics.UpstreamFailed("ident_paginate")
		return nil, err
	}

	data := c.bucket(resp.Items, days)

	payload, err := json.Marshal(data)
	if err == nil {
		if err = c.deps.Redis.Set(ctx, key, string(payload), c.deps.Config.Redis.StatsCacheTTL).Err(); err != nil {
			c.deps.Logger.Error("Error writing stats cache", slog.String("error", err.Error()))
		}
	}

	return &entity.IdentStats{FromCache: false, Data: data}, nil
}

func (c *IdentController) bucket(items []json.RawMessage, days int) []entity.DayCount {
	now := c.now()
	data := make([]entity.DayCount, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		day := now.AddDate(0, 0, i-days+1).Format(dayLayout)
		data[i] = entity.DayCount{Date: day}
		index[day] = i
	}

	for _, raw := range items {
		var item struct {
			CreatedAt string `json:"created_at"`
		}
		if err := json.Unmarshal(raw, &item); err != nil || item.CreatedAt == "" {
			continue
		}

		t, ok := parseTimestamp(item.CreatedAt)
		if !ok {
			continue
		}

		if i, found := index[t.In(now.Location()).Format(dayLayout)]; found {
			data[i].Count++
		}
	}

	return data
}

func parseTimestamp(v string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", dayLayout} {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
