package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/adamanr/unit_service/internal/entity"
	"github.com/adamanr/unit_service/internal/upstream"
)

var licenseListing = listing{
	search:        []string{"license", "unit_code", "device_name", "manager_name", "ip", "mac"},
	defaultStatus: "new",
}

type LicenseController struct {
	deps      *Dependens
	selection *SelectionController
}

func NewLicenseController(deps *Dependens, selection *SelectionController) *LicenseController {
	return &LicenseController{
		deps:      deps,
		selection: selection,
	}
}

func (c *LicenseController) List(ctx context.Context, bearer, principal string, q entity.ListQuery) (entity.PaginateResponse[json.RawMessage], error) {
	req, err := licenseListing.paginateRequest(ctx, c.selection, bearer, principal, q)
	if err != nil {
		c.deps.Logger.Warn("Error building license filter", slog.String("error", err.Error()))
		return entity.PaginateResponse[json.RawMessage]{}, err
	}

	resp, err := c.deps.Upstream.Paginate(ctx, upstream.LicensePaginate, bearer, req)
	if err != nil {
		c.deps.Metrics.UpstreamFailed("license_paginate")
		return entity.PaginateResponse[json.RawMessage]{}, err
	}

	return resp, nil
}

// Create issues a license for the given unit, or the selected one.
func (c *LicenseController) Create(ctx context.Context, bearer, principal string, req entity.LicenseCreateRequest) (json.RawMessage, error) {
	unitCode, err := unitFor(ctx, c.selection, principal, req.UnitCode)
	if err != nil {
		c.deps.Logger.Warn("License create without unit", slog.String("principal", principal))
		return nil, err
	}
	req.UnitCode = unitCode

	if strings.TrimSpace(req.Status) == "" {
		req.Status = licenseListing.defaultStatus
	}

	var out json.RawMessage
	if err = c.deps.Upstream.Do(ctx, http.MethodPost, upstream.LicenseCreate, bearer, req, &out); err != nil {
		c.deps.Metrics.UpstreamFailed("license_create")
		return nil, err
	}

	c.deps.Logger.Info("License created", slog.String("unit_code", unitCode))
	return out, nil
}

func (c *LicenseController) Update(ctx context.Context, bearer, id string, patch entity.LicensePatch) (json.RawMessage, error) {
	if strings.TrimSpace(id) == "" || patch.Empty() {
		return nil, fmt.Errorf("%w: license id and at least one field are required", ErrInvalidQuery)
	}

	var out json.RawMessage
	if err := c.deps.Upstream.Do(ctx, http.MethodPatch, upstream.LicenseResource+url.PathEscape(id), bearer, patch, &out); err != nil {
		c.deps.Metrics.UpstreamFailed("license_update")
		return nil, err
	}

	return out, nil
}

func (c *LicenseController) Delete(ctx context.Context, bearer, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: license id is required", ErrInvalidQuery)
	}

	if err := c.deps.Upstream.Do(ctx, http.MethodDelete, upstream.LicenseResource+url.PathEscape(id), bearer, nil, nil); err != nil {
		c.deps.Metrics.UpstreamFailed("license_delete")
		return err
	}

	c.deps.Logger.Info("License deleted", slog.String("id", id))
	return nil
}
