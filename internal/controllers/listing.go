package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adamanr/unit_service/internal/entity"
	"github.com/adamanr/unit_service/internal/filter"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000
)

var (
	ErrInvalidQuery   = errors.New("invalid listing query")
	ErrNoUnitSelected = errors.New("no unit selected")
)

// listing describes how a dashboard list query maps onto a remote filter.
type listing struct {
	search        []string
	defaultStatus string
}

func (l listing) allowed() []string {
	return append([]string{"status", "unit_code"}, l.search...)
}

// paginateRequest builds the remote request for q. Status maps to a like,
// the selection scopes unit_code, and free text is searched across the
// listing's fields. With no condition at all the default status applies.
func (l listing) paginateRequest(ctx context.Context, sel *SelectionController, bearer, principal string, q entity.ListQuery) (entity.PaginateRequest, error) {
	f := filter.New(l.allowed()...)

	if status := strings.TrimSpace(q.Status); status != "" {
		f.Where(filter.Like("status", status))
	}

	cond, ok, err := sel.Scope(ctx, bearer, principal, "unit_code", q.IncludeDescendants)
	if err != nil {
		return entity.PaginateRequest{}, err
	}
	if ok {
		f.Where(cond)
	}

	if text := strings.TrimSpace(q.Q); text != "" {
		conds := make([]filter.Condition, 0, len(l.search))
		for _, field := range l.search {
			conds = append(conds, filter.Contains(field, text))
		}
		f.Where(conds...)
	}

	if f.Empty() {
		f.Where(filter.Like("status", l.defaultStatus))
	}

	expr, err := f.String()
	if err != nil {
		return entity.PaginateRequest{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	return entity.PaginateRequest{
		Filter: expr,
		Page:   page,
		Limit:  limit,
		Offset: entity.ListQuery{Page: page, Limit: limit}.Offset(),
	}, nil
}

// unitFor returns code when set, otherwise the caller's selected unit.
func unitFor(ctx context.Context, sel *SelectionController, principal, code string) (string, error) {
	if code = strings.TrimSpace(code); code != "" {
		return code, nil
	}

	current, err := sel.Current(ctx, principal)
	if err != nil {
		return "", err
	}

	selected, ok := current.Code()
	if !ok {
		return "", ErrNoUnitSelected
	}

	return selected, nil
}
