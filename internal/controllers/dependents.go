package controllers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/adamanr/unit_service/internal/config"
	"github.com/adamanr/unit_service/internal/entity"
	"github.com/adamanr/unit_service/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

type Controllers struct {
	AuthController      *AuthController
	UnitController      *UnitController
	SelectionController *SelectionController
	IdentController     *IdentController
	LicenseController   *LicenseController
	UserController      *UserController
}

type Dependens struct {
	DB interface {
		Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
		QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
		Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	}
	Redis interface {
		Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
		Get(ctx context.Context, key string) *redis.StringCmd
		Del(ctx context.Context, keys ...string) *redis.IntCmd
	}
	Upstream interface {
		Do(ctx context.Context, method, path, bearer string, body, out any) error
		Paginate(ctx context.Context, path, bearer string, req entity.PaginateRequest) (entity.PaginateResponse[json.RawMessage], error)
		Units(ctx context.Context, bearer string) ([]entity.Unit, error)
	}
	Logger  *slog.Logger
	Config  *config.Config
	Metrics *metrics.Metrics
}

func NewControllers(deps *Dependens) *Controllers {
	units := NewUnitController(deps)
	selection := NewSelectionController(deps, units)

	return &Controllers{
		AuthController:      NewAuthController(deps),
		UnitController:      units,
		SelectionController: selection,
		IdentController:     NewIdentController(deps, selection),
		LicenseController:   NewLicenseController(deps, selection),
		UserController:      NewUserController(deps),
	}
}
