package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adamanr/unit_service/internal/controllers"
	"github.com/adamanr/unit_service/internal/entity"
	"github.com/adamanr/unit_service/internal/unittree"
	"github.com/adamanr/unit_service/internal/upstream"
)

const codeTokenExpired = "token_expired"

type ctxKey int

const (
	claimsKey ctxKey = iota
	bearerKey
)

type Server struct {
	deps        *controllers.Dependens
	Controllers *controllers.Controllers
}

func NewServer(deps *controllers.Dependens) *Server {
	return &Server{
		deps:        deps,
		Controllers: controllers.NewControllers(deps),
	}
}

var _ ServerInterface = Server{}

func isPublic(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/api/public/")
}

// AuthMiddleware rejects requests without a usable bearer token and puts the
// claims and the raw token into the request context.
func (s Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		bearer := controllers.BearerFromRequest(r)
		if bearer == "" {
			s.httpResponse(w, http.StatusUnauthorized, "Unauthorized", "error")
			return
		}

		claims, err := s.Controllers.AuthController.CheckUserToken(bearer)
		if err != nil {
			s.deps.Logger.Warn("Rejected token", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
			s.httpResponse(w, http.StatusUnauthorized, map[string]string{
				"code":    codeTokenExpired,
				"message": "Session expired or invalid, please sign in again",
			}, "error")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, bearerKey, bearer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// caller returns the bearer and principal stored by AuthMiddleware.
func caller(r *http.Request) (string, string) {
	bearer, _ := r.Context().Value(bearerKey).(string)

	principal := ""
	if claims, ok := r.Context().Value(claimsKey).(*entity.Claims); ok && claims != nil {
		principal = claims.Principal()
	}

	return bearer, principal
}

// Health reports liveness. It is mounted under the public prefix.
func (s Server) Health(w http.ResponseWriter, _ *http.Request) {
	s.httpResponse(w, http.StatusOK, map[string]string{"status": "ok"}, "success")
}

// GetUnits returns the flat unit list.
func (s Server) GetUnits(w http.ResponseWriter, r *http.Request) {
	bearer, _ := caller(r)

	units, err := s.Controllers.UnitController.GetUnits(r.Context(), bearer)
	if err != nil {
		s.fail(w, err, "Failed to get units")
		return
	}

	s.httpResponse(w, http.StatusOK, units, "success")
}

// CreateUnit creates new unit.
func (s Server) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var unit entity.Unit
	if !s.decode(w, r, &unit) {
		return
	}

	created, err := s.Controllers.UnitController.CreateUnit(r.Context(), unit)
	if err != nil {
		s.fail(w, err, "Failed to create unit")
		return
	}

	s.httpResponse(w, http.StatusCreated, created, "success")
}

// GetUnitTree builds the unit forest and applies the search query.
func (s Server) GetUnitTree(w http.ResponseWriter, r *http.Request, params GetUnitTreeParams) {
	bearer, _ := caller(r)

	tree, err := s.Controllers.UnitController.Tree(r.Context(), bearer, deref(params.Q), deref(params.SortBy))
	if err != nil {
		s.fail(w, err, "Failed to build unit tree")
		return
	}

	s.httpResponse(w, http.StatusOK, tree, "success")
}

func (s Server) GetSelection(w http.ResponseWriter, r *http.Request) {
	bearer, principal := caller(r)

	sel, err := s.Controllers.SelectionController.Get(r.Context(), bearer, principal)
	if err != nil {
		s.fail(w, err, "Failed to get selection")
		return
	}

	s.httpResponse(w, http.StatusOK, sel, "success")
}

func (s Server) PutSelection(w http.ResponseWriter, r *http.Request) {
	bearer, principal := caller(r)

	var req entity.SelectionRequest
	if !s.decode(w, r, &req) {
		return
	}

	sel, err := s.Controllers.SelectionController.Select(r.Context(), bearer, principal, req)
	if err != nil {
		s.fail(w, err, "Failed to save selection")
		return
	}

	s.httpResponse(w, http.StatusOK, sel, "success")
}

func (s Server) DeleteSelection(w http.ResponseWriter, r *http.Request) {
	_, principal := caller(r)

	if err := s.Controllers.SelectionController.Clear(r.Context(), principal); err != nil {
		s.fail(w, err, "Failed to clear selection")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetUnit get unit by code.
func (s Server) GetUnit(w http.ResponseWriter, r *http.Request, unitCode string) {
	bearer, _ := caller(r)

	unit, err := s.Controllers.UnitController.GetUnit(r.Context(), bearer, unitCode)
	if err != nil {
		s.fail(w, err, "Failed to get unit")
		return
	}

	s.httpResponse(w, http.StatusOK, unit, "success")
}

// UpdateUnit applies a partial update to the unit.
func (s Server) UpdateUnit(w http.ResponseWriter, r *http.Request, unitCode string) {
	var patch entity.UnitPatch
	if !s.decode(w, r, &patch) {
		return
	}

	unit, err := s.Controllers.UnitController.UpdateUnit(r.Context(), unitCode, patch)
	if err != nil {
		s.fail(w, err, "Failed to update unit")
		return
	}

	s.httpResponse(w, http.StatusOK, unit, "success")
}

// DeleteUnit deletes the unit and everything below it.
func (s Server) DeleteUnit(w http.ResponseWriter, r *http.Request, unitCode string) {
	deleted, err := s.Controllers.UnitController.DeleteUnit(r.Context(), unitCode)
	if err != nil {
		s.fail(w, err, "Failed to delete unit")
		return
	}

	s.httpResponse(w, http.StatusOK, map[string][]string{"deleted": deleted}, "success")
}

func (s Server) ListIdents(w http.ResponseWriter, r *http.Request) {
	bearer, principal := caller(r)

	var q entity.ListQuery
	if !s.decodeOptional(w, r, &q) {
		return
	}

	resp, err := s.Controllers.IdentController.List(r.Context(), bearer, principal, q)
	if err != nil {
		s.fail(w, err, "Failed to list idents")
		return
	}

	s.httpResponse(w, http.StatusOK, resp, "success")
}

func (s Server) CreateIdent(w http.ResponseWriter, r *http.Request) {
	bearer, principal := caller(r)

	var req entity.IdentCreateRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.Controllers.IdentController.Create(r.Context(), bearer, principal, req)
	if err != nil {
		s.fail(w, err, "Failed to create ident")
		return
	}

	s.httpResponse(w, http.StatusCreated, out, "success")
}

// GetIdentStats counts identities per day. Days defaults to a week.
func (s Server) GetIdentStats(w http.ResponseWriter, r *http.Request, params GetIdentStatsParams) {
	bearer, _ := caller(r)

	days := controllers.DefaultStatsDays
	if params.Days != nil {
		days = *params.Days
	}

	stats, err := s.Controllers.IdentController.Stats(r.Context(), bearer, days)
	if err != nil {
		s.fail(w, err, "Failed to compute ident stats")
		return
	}

	s.httpResponse(w, http.StatusOK, stats, "success")
}

func (s Server) ListLicenses(w http.ResponseWriter, r *http.Request) {
	bearer, principal := caller(r)

	var q entity.ListQuery
	if !s.decodeOptional(w, r, &q) {
		return
	}

	resp, err := s.Controllers.LicenseController.List(r.Context(), bearer, principal, q)
	if err != nil {
		s.fail(w, err, "Failed to list licenses")
		return
	}

	s.httpResponse(w, http.StatusOK, resp, "success")
}

func (s Server) CreateLicense(w http.ResponseWriter, r *http.Request) {
	bearer, principal := caller(r)

	var req entity.LicenseCreateRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.Controllers.LicenseController.Create(r.Context(), bearer, principal, req)
	if err != nil {
		s.fail(w, err, "Failed to create license")
		return
	}

	s.httpResponse(w, http.StatusCreated, out, "success")
}

func (s Server) UpdateLicense(w http.ResponseWriter, r *http.Request, id string) {
	bearer, _ := caller(r)

	var patch entity.LicensePatch
	if !s.decode(w, r, &patch) {
		return
	}

	out, err := s.Controllers.LicenseController.Update(r.Context(), bearer, id, patch)
	if err != nil {
		s.fail(w, err, "Failed to update license")
		return
	}

	s.httpResponse(w, http.StatusOK, out, "success")
}

func (s Server) DeleteLicense(w http.ResponseWriter, r *http.Request, id string) {
	bearer, _ := caller(r)

	if err := s.Controllers.LicenseController.Delete(r.Context(), bearer, id); err != nil {
		s.fail(w, err, "Failed to delete license")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetUsers get users page.
func (s Server) GetUsers(w http.ResponseWriter, r *http.Request, params GetUsersParams) {
	entityParams := entity.GetUsersParams{
		Q:        params.Q,
		UnitCode: params.UnitCode,
		Page:     params.Page,
		Limit:    params.Limit,
	}

	if params.Region != nil && *params.Region != "" {
		region, err := entity.ParseRegion(*params.Region)
		if err != nil {
			s.fail(w, err, "Invalid region")
			return
		}
		entityParams.Region = &region
	}

	users, err := s.Controllers.UserController.GetUsers(r.Context(), &entityParams)
	if err != nil {
		s.fail(w, err, "Failed to get users")
		return
	}

	s.httpResponse(w, http.StatusOK, users, "success")
}

// CreateUser create new user.
func (s Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user entity.User
	if !s.decode(w, r, &user) {
		return
	}

	created, err := s.Controllers.UserController.CreateUser(r.Context(), user)
	if err != nil {
		s.fail(w, err, "Failed to create user")
		return
	}

	s.httpResponse(w, http.StatusCreated, created, "success")
}

func (s Server) UpdateUser(w http.ResponseWriter, r *http.Request, username string) {
	var patch entity.UserPatch
	if !s.decode(w, r, &patch) {
		return
	}

	user, err := s.Controllers.UserController.UpdateUser(r.Context(), username, patch)
	if err != nil {
		s.fail(w, err, "Failed to update user")
		return
	}

	s.httpResponse(w, http.StatusOK, user, "success")
}

func (s Server) DeleteUser(w http.ResponseWriter, r *http.Request, username string) {
	if err := s.Controllers.UserController.DeleteUser(r.Context(), username); err != nil {
		s.fail(w, err, "Failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ParamError answers parameter binding failures in the response envelope.
func (s Server) ParamError(w http.ResponseWriter, _ *http.Request, err error) {
	s.deps.Logger.Warn("Invalid request parameter", slog.String("error", err.Error()))
	s.httpResponse(w, http.StatusBadRequest, err.Error(), "error")
}

func (s Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.deps.Logger.Error("Error decoding request body", slog.String("error", err.Error()))
		s.httpResponse(w, http.StatusBadRequest, "Invalid request body", "error")
		return false
	}

	return true
}

// decodeOptional is decode that accepts an empty body.
func (s Server) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.deps.Logger.Error("Error decoding request body", slog.String("error", err.Error()))
		s.httpResponse(w, http.StatusBadRequest, "Invalid request body", "error")
		return false
	}

	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, controllers.ErrUnitNotFound), errors.Is(err, controllers.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, controllers.ErrUnitExists), errors.Is(err, controllers.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, controllers.ErrReadOnlySource):
		return http.StatusMethodNotAllowed
	case errors.Is(err, controllers.ErrNoPrincipal):
		return http.StatusUnauthorized
	case errors.Is(err, controllers.ErrNoUserStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, controllers.ErrInvalidUnit),
		errors.Is(err, controllers.ErrParentCycle),
		errors.Is(err, controllers.ErrInvalidUser),
		errors.Is(err, controllers.ErrInvalidQuery),
		errors.Is(err, controllers.ErrNoUnitSelected),
		errors.Is(err, unittree.ErrUnknownSortKey),
		errors.Is(err, entity.ErrInvalidRegion):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// fail maps err onto a response. Remote API errors keep their status and
// body; unexpected errors are hidden behind msg.
func (s Server) fail(w http.ResponseWriter, err error, msg string) {
	var se *upstream.StatusError
	if errors.As(err, &se) {
		s.deps.Logger.Warn(msg, slog.Int("upstream_status", se.Status), slog.String("error", err.Error()))
		s.httpResponse(w, se.Status, se.Body, "error")
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.Error(msg, slog.String("error", err.Error()))
		s.httpResponse(w, status, msg, "error")
		return
	}

	s.deps.Logger.Warn(msg, slog.String("error", err.Error()))
	s.httpResponse(w, status, err.Error(), "error")
}

func (s Server) httpResponse(w http.ResponseWriter, status int, data any, respType string) {
	resp := map[string]any{
		"status": status,
		"type":   respType,
		"data":   data,
	}

	respData, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		s.deps.Logger.Error("Error marshaling response", slog.String("error", marshalErr.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(respData); err != nil {
		s.deps.Logger.Error("Error writing response", slog.String("error", err.Error()))
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}

	return *v
}
