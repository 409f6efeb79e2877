package controllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adamanr/unit_service/internal/entity"
	"github.com/adamanr/unit_service/internal/filter"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = `username, password, role, unit_code, region, created_at, updated_at`

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidUser  = errors.New("invalid user")
	ErrNoUserStore  = errors.New("user store is not configured")
)

type UserController struct {
	deps *Dependens
}

func NewUserController(deps *Dependens) *UserController {
	return &UserController{
		deps: deps,
	}
}

func (c *UserController) GetUsers(ctx context.Context, params *entity.GetUsersParams) (*entity.PaginateResponse[entity.User], error) {
	if c.deps.DB == nil {
		return nil, ErrNoUserStore
	}

	f := filter.New("username", "unit_code", "region")
	page, limit := 1, defaultPageSize

	if params != nil {
		if params.Q != nil && strings.TrimSpace(*params.Q) != "" {
			q := strings.TrimSpace(*params.Q)
			f.Where(filter.Contains("username", q), filter.Contains("unit_code", q))
		}

		if params.Region != nil {
			f.Where(filter.Eq("region", string(*params.Region)))
		}

		if params.UnitCode != nil && *params.UnitCode != "" {
			f.Where(filter.Eq("unit_code", *params.UnitCode))
		}

		if params.Page != nil && *params.Page > 0 {
			page = *params.Page
		}

		if params.Limit != nil && *params.Limit > 0 {
			limit = min(*params.Limit, maxPageSize)
		}
	}

	where, args, err := f.SQL(1)
	if err != nil {
		c.deps.Logger.Warn("Invalid user filter", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	var total int
	if err = c.deps.DB.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE "+where, args...).Scan(&total); err != nil {
		c.deps.Logger.Error("Error counting users", slog.String("error", err.Error()))
		return nil, err
	}

	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY username LIMIT $%d OFFSET $%d", userColumns, where, n+1, n+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := c.deps.DB.Query(ctx, query, args...)
	if err != nil {
		c.deps.Logger.Error("Error querying users", slog.String("error", err.Error()))
		return nil, err
	}
	defer rows.Close()

	users, err := pgx.CollectRows(rows, pgx.RowToStructByName[entity.User])
	if err != nil {
		c.deps.Logger.Error("Error collecting rows", slog.String("error", err.Error()))
		return nil, err
	}

	for i := range users {
		users[i].Password = nil
	}

	return &entity.PaginateResponse[entity.User]{CountTotal: total, Items: users}, nil
}

func (c *UserController) GetUser(ctx context.Context, username string) (*entity.User, error) {
	if c.deps.DB == nil {
		return nil, ErrNoUserStore
	}

	rows, err := c.deps.DB.Query(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username)
	if err != nil {
		c.deps.Logger.Error("Error querying user", slog.String("error", err.Error()))
		return nil, err
	}
	defer rows.Close()

	user, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entity.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.deps.Logger.Warn("User not found", slog.String("username", username))
			return nil, ErrUserNotFound
		}

		c.deps.Logger.Error("Error collecting row", slog.String("error", err.Error()))
		return nil, err
	}

	user.Password = nil

	return &user, nil
}

func (c *UserController) CreateUser(ctx context.Context, user entity.User) (*entity.User, error) {
	if c.deps.DB == nil {
		return nil, ErrNoUserStore
	}

	user.Username = strings.TrimSpace(user.Username)
	user.UnitCode = strings.TrimSpace(user.UnitCode)

	if user.Username == "" || user.UnitCode == "" || user.Password == nil || *user.Password == "" {
		c.deps.Logger.Warn("Required fields: username, password, unit_code", slog.String("username", user.Username))
		return nil, fmt.Errorf("%w: username, password and unit_code are required", ErrInvalidUser)
	}

	if user.Role == "" {
		user.Role = entity.RoleViewer
	}

	if err := validateUser(user.Role, user.Region); err != nil {
		return nil, err
	}

	hash, err := hashPassword(*user.Password)
	if err != nil {
		c.deps.Logger.Error("Error hashing password", slog.String("error", err.Error()))
		return nil, err
	}

	now := time.Now().UTC()
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err = c.deps.DB.Exec(ctx, query,
		user.Username, hash, string(user.Role), user.UnitCode, regionArg(user.Region), now, now,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			c.deps.Logger.Warn("User already exists", slog.String("username", user.Username))
			return nil, ErrUserExists
		}

		c.deps.Logger.Error("Error inserting user", slog.String("error", err.Error()))
		return nil, err
	}

	user.Password = nil
	user.CreatedAt = now
	user.UpdatedAt = now

	c.deps.Logger.Info("User created", slog.String("username", user.Username), slog.String("role", string(user.Role)))
	return &user, nil
}

// UpdateUser applies the non-nil fields of patch. A new password is hashed.
func (c *UserController) UpdateUser(ctx context.Context, username string, patch entity.UserPatch) (*entity.User, error) {
	if c.deps.DB == nil {
		return nil, ErrNoUserStore
	}

	role := entity.Role("")
	if patch.Role != nil {
		role = *patch.Role
	}

	if patch.Role != nil || patch.Region != nil {
		check := role
		if check == "" {
			check = entity.RoleViewer
		}
		if err := validateUser(check, patch.Region); err != nil {
			return nil, err
		}
	}

	sets := []string{}
	args := []any{username}
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Password != nil {
		if *patch.Password == "" {
			return nil, fmt.Errorf("%w: password cannot be empty", ErrInvalidUser)
		}

		hash, err := hashPassword(*patch.Password)
		if err != nil {
			c.deps.Logger.Error("Error hashing password", slog.String("error", err.Error()))
			return nil, err
		}
		add("password", hash)
	}

	if patch.Role != nil {
		add("role", string(role))
	}

	if patch.UnitCode != nil {
		if strings.TrimSpace(*patch.UnitCode) == "" {
			return nil, fmt.Errorf("%w: unit_code cannot be empty", ErrInvalidUser)
		}
		add("unit_code", strings.TrimSpace(*patch.UnitCode))
	}

	if patch.Region != nil {
		add("region", regionArg(patch.Region))
	}

	if len(sets) == 0 {
		return c.GetUser(ctx, username)
	}

	add("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE users SET %s WHERE username = $1 RETURNING %s", strings.Join(sets, ", "), userColumns)
	rows, err := c.deps.DB.Query(ctx, query, args...)
	if err != nil {
		c.deps.Logger.Error("Error updating user", slog.String("error", err.Error()))
		return nil, err
	}
	defer rows.Close()

	user, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entity.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		c.deps.Logger.Error("Error collecting row", slog.String("error", err.Error()))
		return nil, err
	}

	user.Password = nil

	return &user, nil
}

func (c *UserController) DeleteUser(ctx context.Context, username string) error {
	if c.deps.DB == nil {
		return ErrNoUserStore
	}

	tag, err := c.deps.DB.Exec(ctx, "DELETE FROM users WHERE username = $1", username)
	if err != nil {
		c.deps.Logger.Error("Error deleting user", slog.String("error", err.Error()))
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	c.deps.Logger.Info("User deleted", slog.String("username", username))
	return nil
}

func validateUser(role entity.Role, region *entity.Region) error {
	if !role.Valid() {
		return fmt.Errorf("%w: role must be admin, editor or viewer", ErrInvalidUser)
	}

	if region != nil && *region != "" && !region.Valid() {
		return fmt.Errorf("%w: region must be bac, trung or nam", ErrInvalidUser)
	}

	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

func regionArg(region *entity.Region) *string {
	if region == nil || *region == "" {
		return nil
	}

	v := string(*region)
	return &v
}
