package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/adamanr/unit_service/internal/entity"
	"github.com/adamanr/unit_service/internal/filter"
	"github.com/adamanr/unit_service/internal/unittree"
	"github.com/redis/go-redis/v9"
)

const selectionKeyPrefix = "unit_selection:"

var ErrNoPrincipal = errors.New("selection needs an authenticated principal")

type storedSelection struct {
	UnitCode           string `json:"unit_code"`
	IncludeDescendants bool   `json:"include_descendants"`
}

// SelectionController keeps the unit each principal has selected in the
// dashboard. It scopes the identity and license listings.
type SelectionController struct {
	deps  *Dependens
	units *UnitController
}

func NewSelectionController(deps *Dependens, units *UnitController) *SelectionController {
	return &SelectionController{
		deps:  deps,
		units: units,
	}
}

func selectionKey(principal string) string {
	return selectionKeyPrefix + principal
}

// Current returns the stored selection, or NoSelection.
func (c *SelectionController) Current(ctx context.Context, principal string) (unittree.Selection, error) {
	if principal == "" {
		return unittree.NoSelection, nil
	}

	raw, err := c.deps.Redis.Get(ctx, selectionKey(principal)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return unittree.NoSelection, nil
		}

		c.deps.Logger.Error("Error reading selection", slog.String("error", err.Error()))
		return unittree.NoSelection, err
	}

	var stored storedSelection
	if err = json.Unmarshal([]byte(raw), &stored); err != nil {
		c.deps.Logger.Warn("Dropping malformed selection", slog.String("principal", principal), slog.String("error", err.Error()))
		return unittree.NoSelection, nil
	}

	return unittree.Select(stored.UnitCode).WithDescendants(stored.IncludeDescendants), nil
}

// Get describes the current selection. A selected unit that no longer exists
// reads as no selection.
func (c *SelectionController) Get(ctx context.Context, bearer, principal string) (*entity.SelectionResponse, error) {
	sel, err := c.Current(ctx, principal)
	if err != nil {
		return nil, err
	}

	code, ok := sel.Code()
	if !ok {
		return &entity.SelectionResponse{}, nil
	}

	unit, err := c.units.GetUnit(ctx, bearer, code)
	if err != nil {
		if errors.Is(err, ErrUnitNotFound) {
			return &entity.SelectionResponse{}, nil
		}
		return nil, err
	}

	return &entity.SelectionResponse{
		UnitCode:           &unit.UnitCode,
		UnitName:           unit.UnitName,
		IncludeDescendants: sel.IncludesDescendants(),
	}, nil
}

// Select stores the selection. A missing or blank unit_code clears it.
func (c *SelectionController) Select(ctx context.Context, bearer, principal string, req entity.SelectionRequest) (*entity.SelectionResponse, error) {
	if principal == "" {
		return nil, ErrNoPrincipal
	}

	if req.UnitCode == nil || strings.TrimSpace(*req.UnitCode) == "" {
		if err := c.Clear(ctx, principal); err != nil {
			return nil, err
		}
		return &entity.SelectionResponse{}, nil
	}

	unit, err := c.units.GetUnit(ctx, bearer, strings.TrimSpace(*req.UnitCode))
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(storedSelection{UnitCode: unit.UnitCode, IncludeDescendants: req.IncludeDescendants})
	if err != nil {
		return nil, err
	}

	if err = c.deps.Redis.Set(ctx, selectionKey(principal), string(data), c.deps.Config.Redis.SelectionTTL).Err(); err != nil {
		c.deps.Logger.Error("Error storing selection", slog.String("error", err.Error()))
		return nil, err
	}

	c.deps.Metrics.SelectionChanged("set")

	return &entity.SelectionResponse{
		UnitCode:           &unit.UnitCode,
		UnitName:           unit.UnitName,
		IncludeDescendants: req.IncludeDescendants,
	}, nil
}

func (c *SelectionController) Clear(ctx context.Context, principal string) error {
	if principal == "" {
		return ErrNoPrincipal
	}

	if err := c.deps.Redis.Del(ctx, selectionKey(principal)).Err(); err != nil {
		c.deps.Logger.Error("Error clearing selection", slog.String("error", err.Error()))
		return err
	}

	c.deps.Metrics.SelectionChanged("clear")
	return nil
}

// Scope turns the caller's selection into a filter condition on field.
// includeDescendants widens a stored single-unit selection for one request.
func (c *SelectionController) Scope(ctx context.Context, bearer, principal, field string, includeDescendants bool) (cond filter.Condition, ok bool, err error) {
	sel, err := c.Current(ctx, principal)
	if err != nil {
		return cond, false, err
	}

	if _, selected := sel.Code(); !selected {
		return cond, false, nil
	}

	if includeDescendants {
		sel = sel.WithDescendants(true)
	}

	var idx *unittree.Index
	if sel.IncludesDescendants() {
		if idx, err = c.units.Index(ctx, bearer); err != nil {
			return cond, false, err
		}
	}

	cond, ok = sel.Condition(idx, field)
	return cond, ok, nil
}
