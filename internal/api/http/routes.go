package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// GetUnitTreeParams defines parameters for GetUnitTree.
type GetUnitTreeParams struct {
	Q      *string `form:"q,omitempty" json:"q,omitempty"`
	SortBy *string `form:"sort_by,omitempty" json:"sort_by,omitempty"`
}

// GetIdentStatsParams defines parameters for GetIdentStats.
type GetIdentStatsParams struct {
	Days *int `form:"days,omitempty" json:"days,omitempty"`
}

// GetUsersParams defines parameters for GetUsers.
type GetUsersParams struct {
	Q        *string `form:"q,omitempty" json:"q,omitempty"`
	Region   *string `form:"region,omitempty" json:"region,omitempty"`
	UnitCode *string `form:"unit_code,omitempty" json:"unit_code,omitempty"`
	Page     *int    `form:"page,omitempty" json:"page,omitempty"`
	Limit    *int    `form:"limit,omitempty" json:"limit,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /api/units)
	GetUnits(w http.ResponseWriter, r *http.Request)
	// (POST /api/units)
	CreateUnit(w http.ResponseWriter, r *http.Request)
	// (GET /api/units/tree)
	GetUnitTree(w http.ResponseWriter, r *http.Request, params GetUnitTreeParams)
	// (GET /api/units/selection)
	GetSelection(w http.ResponseWriter, r *http.Request)
	// (PUT /api/units/selection)
	PutSelection(w http.ResponseWriter, r *http.Request)
	// (DELETE /api/units/selection)
	DeleteSelection(w http.ResponseWriter, r *http.Request)
	// (GET /api/units/{unit_code})
	GetUnit(w http.ResponseWriter, r *http.Request, unitCode string)
	// (PATCH /api/units/{unit_code})
	UpdateUnit(w http.ResponseWriter, r *http.Request, unitCode string)
	// (DELETE /api/units/{unit_code})
	DeleteUnit(w http.ResponseWriter, r *http.Request, unitCode string)
	// (POST /api/ident)
	ListIdents(w http.ResponseWriter, r *http.Request)
	// (POST /api/ident/create)
	CreateIdent(w http.ResponseWriter, r *http.Request)
	// (GET /api/ident/stats)
	GetIdentStats(w http.ResponseWriter, r *http.Request, params GetIdentStatsParams)
	// (POST /api/licenses)
	ListLicenses(w http.ResponseWriter, r *http.Request)
	// (POST /api/licenses/create)
	CreateLicense(w http.ResponseWriter, r *http.Request)
	// (PATCH /api/licenses/{id})
	UpdateLicense(w http.ResponseWriter, r *http.Request, id string)
	// (DELETE /api/licenses/{id})
	DeleteLicense(w http.ResponseWriter, r *http.Request, id string)
	// (GET /api/users)
	GetUsers(w http.ResponseWriter, r *http.Request, params GetUsersParams)
	// (POST /api/users)
	CreateUser(w http.ResponseWriter, r *http.Request)
	// (PATCH /api/users/{username})
	UpdateUser(w http.ResponseWriter, r *http.Request, username string)
	// (DELETE /api/users/{username})
	DeleteUser(w http.ResponseWriter, r *http.Request, username string)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) pathParam(w http.ResponseWriter, r *http.Request, name string, dest *string) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}

	return true
}

func (siw *ServerInterfaceWrapper) queryParam(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}

	return true
}

// GetUnits operation middleware
func (siw *ServerInterfaceWrapper) GetUnits(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetUnits)
}

// CreateUnit operation middleware
func (siw *ServerInterfaceWrapper) CreateUnit(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateUnit)
}

// GetUnitTree operation middleware
func (siw *ServerInterfaceWrapper) GetUnitTree(w http.ResponseWriter, r *http.Request) {
	var params GetUnitTreeParams

	if !siw.queryParam(w, r, "q", &params.Q) || !siw.queryParam(w, r, "sort_by", &params.SortBy) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetUnitTree(w, r, params)
	})
}

// GetSelection operation middleware
func (siw *ServerInterfaceWrapper) GetSelection(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetSelection)
}

// PutSelection operation middleware
func (siw *ServerInterfaceWrapper) PutSelection(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.PutSelection)
}

// DeleteSelection operation middleware
func (siw *ServerInterfaceWrapper) DeleteSelection(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.DeleteSelection)
}

// GetUnit operation middleware
func (siw *ServerInterfaceWrapper) GetUnit(w http.ResponseWriter, r *http.Request) {
	var unitCode string
	if !siw.pathParam(w, r, "unit_code", &unitCode) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetUnit(w, r, unitCode)
	})
}

// UpdateUnit operation middleware
func (siw *ServerInterfaceWrapper) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	var unitCode string
	if !siw.pathParam(w, r, "unit_code", &unitCode) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateUnit(w, r, unitCode)
	})
}

// DeleteUnit operation middleware
func (siw *ServerInterfaceWrapper) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	var unitCode string
	if !siw.pathParam(w, r, "unit_code", &unitCode) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteUnit(w, r, unitCode)
	})
}

// ListIdents operation middleware
func (siw *ServerInterfaceWrapper) ListIdents(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ListIdents)
}

// CreateIdent operation middleware
func (siw *ServerInterfaceWrapper) CreateIdent(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateIdent)
}

// GetIdentStats operation middleware
func (siw *ServerInterfaceWrapper) GetIdentStats(w http.ResponseWriter, r *http.Request) {
	var params GetIdentStatsParams

	if !siw.queryParam(w, r, "days", &params.Days) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetIdentStats(w, r, params)
	})
}

// ListLicenses operation middleware
func (siw *ServerInterfaceWrapper) ListLicenses(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ListLicenses)
}

// CreateLicense operation middleware
func (siw *ServerInterfaceWrapper) CreateLicense(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateLicense)
}

// UpdateLicense operation middleware
func (siw *ServerInterfaceWrapper) UpdateLicense(w http.ResponseWriter, r *http.Request) {
	var id string
	if !siw.pathParam(w, r, "id", &id) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateLicense(w, r, id)
	})
}

// DeleteLicense operation middleware
func (siw *ServerInterfaceWrapper) DeleteLicense(w http.ResponseWriter, r *http.Request) {
	var id string
	if !siw.pathParam(w, r, "id", &id) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteLicense(w, r, id)
	})
}

// GetUsers operation middleware
func (siw *ServerInterfaceWrapper) GetUsers(w http.ResponseWriter, r *http.Request) {
	var params GetUsersParams

	if !siw.queryParam(w, r, "q", &params.Q) ||
		!siw.queryParam(w, r, "region", &params.Region) ||
		!siw.queryParam(w, r, "unit_code", &params.UnitCode) ||
		!siw.queryParam(w, r, "page", &params.Page) ||
		!siw.queryParam(w, r, "limit", &params.Limit) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetUsers(w, r, params)
	})
}

// CreateUser operation middleware
func (siw *ServerInterfaceWrapper) CreateUser(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateUser)
}

// UpdateUser operation middleware
func (siw *ServerInterfaceWrapper) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var username string
	if !siw.pathParam(w, r, "username", &username) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateUser(w, r, username)
	})
}

// DeleteUser operation middleware
func (siw *ServerInterfaceWrapper) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var username string
	if !siw.pathParam(w, r, "username", &username) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteUser(w, r, username)
	})
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// Handler creates http.Handler with routing matching OpenAPI spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux creates http.Handler with routing matching OpenAPI spec based on the provided mux.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Group(func(r chi.Router) {
		r.Get(base+"/api/units", wrapper.GetUnits)
		r.Post(base+"/api/units", wrapper.CreateUnit)
		r.Get(base+"/api/units/tree", wrapper.GetUnitTree)
		r.Get(base+"/api/units/selection", wrapper.GetSelection)
		r.Put(base+"/api/units/selection", wrapper.PutSelection)
		r.Delete(base+"/api/units/selection", wrapper.DeleteSelection)
		r.Get(base+"/api/units/{unit_code}", wrapper.GetUnit)
		r.Patch(base+"/api/units/{unit_code}", wrapper.UpdateUnit)
		r.Delete(base+"/api/units/{unit_code}", wrapper.DeleteUnit)
		r.Post(base+"/api/ident", wrapper.ListIdents)
		r.Post(base+"/api/ident/create", wrapper.CreateIdent)
		r.Get(base+"/api/ident/stats", wrapper.GetIdentStats)
		r.Post(base+"/api/licenses", wrapper.ListLicenses)
		r.Post(base+"/api/licenses/create", wrapper.CreateLicense)
		r.Patch(base+"/api/licenses/{id}", wrapper.UpdateLicense)
		r.Delete(base+"/api/licenses/{id}", wrapper.DeleteLicense)
		r.Get(base+"/api/users", wrapper.GetUsers)
		r.Post(base+"/api/users", wrapper.CreateUser)
		r.Patch(base+"/api/users/{username}", wrapper.UpdateUser)
		r.Delete(base+"/api/users/{username}", wrapper.DeleteUser)
	})

	return r
}
