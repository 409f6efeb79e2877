package controllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/adamanr/unit_service/internal/config"
	"github.com/adamanr/unit_service/internal/entity"
	"github.com/adamanr/unit_service/internal/unittree"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/singleflight"
)

const uniqueViolation = "23505"

var (
	ErrUnitNotFound   = errors.New("unit not found")
	ErrUnitExists     = errors.New("unit_code already exists")
	ErrInvalidUnit    = errors.New("invalid unit")
	ErrParentCycle    = errors.New("parent would create a cycle")
	ErrReadOnlySource = errors.New("units are read-only when served by the remote API")
)

const unitColumns = `unit_code, parent_unit_code, unit_name, full_name, region, level, created_at, updated_at`

// UnitTree is a built forest after search.
type UnitTree struct {
	Tree         []*unittree.Node `json:"tree"`
	ExpandedKeys []string         `json:"expanded_keys"`
	Severed      []string         `json:"severed"`
}

type UnitController struct {
	deps  *Dependens
	loads singleflight.Group
}

func NewUnitController(deps *Dependens) *UnitController {
	return &UnitController{
		deps: deps,
	}
}

func (c *UnitController) fromUpstream() bool {
	return c.deps.Config.Units.Source == config.UnitSourceUpstream
}

// GetUnits returns the flat unit list. Concurrent loads for the same source
// and bearer share one query. The shared load is detached from the caller
// that started it, so one caller going away does not fail the others.
func (c *UnitController) GetUnits(ctx context.Context, bearer string) ([]entity.Unit, error) {
	key := config.UnitSourcePostgres
	if c.fromUpstream() {
		key = config.UnitSourceUpstream + ":" + bearer
	}

	ch := c.loads.DoChan(key, func() (any, error) {
		loadCtx, cancel := c.loadContext(ctx)
		defer cancel()

		if c.fromUpstream() {
			units, err := c.deps.Upstream.Units(loadCtx, bearer)
			if err != nil {
				c.deps.Metrics.UpstreamFailed("units")
				c.deps.Logger.Error("Error loading units from upstream", slog.String("error", err.Error()))
				return nil, err
			}
			return units, nil
		}

		return c.queryUnits(loadCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]entity.Unit)), nil
	}
}

func (c *UnitController) loadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout := c.deps.Config.Upstream.Timeout; timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}

	return context.WithCancel(ctx)
}

func (c *UnitController) queryUnits(ctx context.Context) ([]entity.Unit, error) {
	rows, err := c.deps.DB.Query(ctx, `SELECT `+unitColumns+` FROM units ORDER BY created_at, unit_code`)
	if err != nil {
		c.deps.Logger.Error("Error querying units", slog.String("error", err.Error()))
		return nil, err
	}
	defer rows.Close()

	units, err := pgx.CollectRows(rows, pgx.RowToStructByName[entity.Unit])
	if err != nil {
		c.deps.Logger.Error("Error collecting rows", slog.String("error", err.Error()))
		return nil, err
	}

	return units, nil
}

func (c *UnitController) Index(ctx context.Context, bearer string) (*unittree.Index, error) {
	units, err := c.GetUnits(ctx, bearer)
	if err != nil {
		return nil, err
	}

	return unittree.NewIndex(units), nil
}

func (c *UnitController) GetUnit(ctx context.Context, bearer, code string) (*entity.Unit, error) {
	if c.fromUpstream() {
		idx, err := c.Index(ctx, bearer)
		if err != nil {
			return nil, err
		}

		unit, ok := idx.Unit(code)
		if !ok {
			return nil, ErrUnitNotFound
		}
		return &unit, nil
	}

	rows, err := c.deps.DB.Query(ctx, `SELECT `+unitColumns+` FROM units WHERE unit_code = $1`, code)
	if err != nil {
		c.deps.Logger.Error("Error querying unit", slog.String("error", err.Error()))
		return nil, err
	}
	defer rows.Close()

	unit, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entity.Unit])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.deps.Logger.Warn("Unit not found", slog.String("unit_code", code))
			return nil, ErrUnitNotFound
		}

		c.deps.Logger.Error("Error collecting row", slog.String("error", err.Error()))
		return nil, err
	}

	return &unit, nil
}

func (c *UnitController) CreateUnit(ctx context.Context, unit entity.Unit) (*entity.Unit, error) {
	if c.fromUpstream() {
		return nil, ErrReadOnlySource
	}

	unit.UnitCode = strings.TrimSpace(unit.UnitCode)
	unit.ParentUnitCode = normalizeParent(unit.ParentUnitCode)
	if unit.Level <= 0 {
		unit.Level = 1
	}

	if unit.UnitCode == "" || strings.TrimSpace(unit.UnitName) == "" || strings.TrimSpace(unit.FullName) == "" {
		c.deps.Logger.Warn("Required fields: unit_code, unit_name, full_name, region", slog.Any("unit", unit))
		return nil, fmt.Errorf("%w: unit_code, unit_name, full_name and region are required", ErrInvalidUnit)
	}

	if !unit.Region.Valid() {
		return nil, fmt.Errorf("%w: region must be bac, trung or nam", ErrInvalidUnit)
	}

	if parent := unit.Parent(); parent != "" {
		if parent == unit.UnitCode {
			return nil, ErrParentCycle
		}

		if err := c.checkParentExists(ctx, parent); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	unit.CreatedAt = now
	unit.UpdatedAt = now

	query := `INSERT INTO units (` + unitColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := c.deps.DB.Exec(ctx, query,
		unit.UnitCode, unit.ParentUnitCode, unit.UnitName, unit.FullName, string(unit.Region), unit.Level, now, now,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			c.deps.Logger.Warn("Unit already exists", slog.String("unit_code", unit.UnitCode))
			return nil, ErrUnitExists
		}

		c.deps.Logger.Error("Error inserting unit", slog.String("error", err.Error()))
		return nil, err
	}

	c.deps.Logger.Info("Unit created", slog.String("unit_code", unit.UnitCode))
	return &unit, nil
}

func (c *UnitController) checkParentExists(ctx context.Context, parent string) error {
	var exists bool
	if err := c.deps.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM units WHERE unit_code = $1)`, parent).Scan(&exists); err != nil {
		c.deps.Logger.Error("Error checking parent", slog.String("error", err.Error()))
		return err
	}

	if !exists {
		return fmt.Errorf("%w: parent %q does not exist", ErrInvalidUnit, parent)
	}

	return nil
}

// UpdateUnit applies a partial patch. A new parent must exist and must not
// sit inside the unit's own subtree.
func (c *UnitController) UpdateUnit(ctx context.Context, code string, patch entity.UnitPatch) (*entity.Unit, error) {
	if c.fromUpstream() {
		return nil, ErrReadOnlySource
	}

	unit, err := c.GetUnit(ctx, "", code)
	if err != nil {
		return nil, err
	}

	if patch.UnitName != nil {
		if strings.TrimSpace(*patch.UnitName) == "" {
			return nil, fmt.Errorf("%w: unit_name cannot be empty", ErrInvalidUnit)
		}
		unit.UnitName = *patch.UnitName
	}

	if patch.FullName != nil {
		if strings.TrimSpace(*patch.FullName) == "" {
			return nil, fmt.Errorf("%w: full_name cannot be empty", ErrInvalidUnit)
		}
		unit.FullName = *patch.FullName
	}

	if patch.Region != nil {
		if !patch.Region.Valid() {
			return nil, fmt.Errorf("%w: region must be bac, trung or nam", ErrInvalidUnit)
		}
		unit.Region = *patch.Region
	}

	if patch.Level != nil {
		if *patch.Level <= 0 {
			return nil, fmt.Errorf("%w: level must be positive", ErrInvalidUnit)
		}
		unit.Level = *patch.Level
	}

	if patch.ParentUnitCode.Set {
		parent := normalizeParent(patch.ParentUnitCode.Value)
		if parent != nil && *parent != unit.Parent() {
			if err = c.checkNewParent(ctx, code, *parent); err != nil {
				return nil, err
			}
		}
		unit.ParentUnitCode = parent
	}

	unit.UpdatedAt = time.Now().UTC()

	query := `UPDATE units
              SET parent_unit_code = $2, unit_name = $3, full_name = $4, region = $5, level = $6, updated_at = $7
              WHERE unit_code = $1`

	tag, err := c.deps.DB.Exec(ctx, query,
		code, unit.ParentUnitCode, unit.UnitName, unit.FullName, string(unit.Region), unit.Level, unit.UpdatedAt,
	)
	if err != nil {
		c.deps.Logger.Error("Error updating unit", slog.String("error", err.Error()))
		return nil, err
	}

	if tag.RowsAffected() == 0 {
		return nil, ErrUnitNotFound
	}

	return unit, nil
}

func (c *UnitController) checkNewParent(ctx context.Context, code, parent string) error {
	if parent == code {
		return ErrParentCycle
	}

	units, err := c.queryUnits(ctx)
	if err != nil {
		return err
	}

	idx := unittree.NewIndex(units)
	if !idx.Has(parent) {
		return fmt.Errorf("%w: parent %q does not exist", ErrInvalidUnit, parent)
	}

	if slices.Contains(idx.Subtree(code), parent) {
		c.deps.Logger.Warn("Rejected parent inside own subtree", slog.String("unit_code", code), slog.String("parent", parent))
		return ErrParentCycle
	}

	return nil
}

// DeleteUnit removes the unit together with its whole subtree and returns the
// removed codes.
func (c *UnitController) DeleteUnit(ctx context.Context, code string) ([]string, error) {
	if c.fromUpstream() {
		return nil, ErrReadOnlySource
	}

	units, err := c.queryUnits(ctx)
	if err != nil {
		return nil, err
	}

	idx := unittree.NewIndex(units)
	if !idx.Has(code) {
		return nil, ErrUnitNotFound
	}

	codes := idx.Subtree(code)
	if _, err = c.deps.DB.Exec(ctx, `DELETE FROM units WHERE unit_code = ANY($1)`, codes); err != nil {
		c.deps.Logger.Error("Error deleting units", slog.String("error", err.Error()))
		return nil, err
	}

	c.deps.Logger.Info("Units deleted", slog.String("unit_code", code), slog.Int("count", len(codes)))
	return codes, nil
}

// Tree builds the forest, sorted by sortBy (or the configured default), and
// filters it by query.
func (c *UnitController) Tree(ctx context.Context, bearer, query, sortBy string) (*UnitTree, error) {
	if sortBy == "" {
		sortBy = c.deps.Config.Units.SortBy
	}

	key, err := unittree.ParseSortKey(sortBy)
	if err != nil {
		return nil, err
	}

	idx, err := c.Index(ctx, bearer)
	if err != nil {
		return nil, err
	}

	forest := idx.Forest(key)
	if len(forest.Severed) > 0 {
		c.deps.Logger.Warn("Unit hierarchy has cycles, parent links severed", slog.Any("unit_codes", forest.Severed))
	}

	res := unittree.FilterTree(forest.Roots, query)
	c.deps.Metrics.TreeBuilt(strings.TrimSpace(query) != "", len(forest.Severed))

	severed := forest.Severed
	if severed == nil {
		severed = []string{}
	}

	return &UnitTree{
		Tree:         res.Tree,
		ExpandedKeys: res.ExpandedKeys,
		Severed:      severed,
	}, nil
}

func normalizeParent(parent *string) *string {
	if parent == nil {
		return nil
	}

	v := strings.TrimSpace(*parent)
	if v == "" {
		return nil
	}

	return &v
}
