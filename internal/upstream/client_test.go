package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/adamanr/unit_service/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Units(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, UnitsPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req entity.PaginateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "", req.Filter)

		_, _ = w.Write([]byte(`{"countTotal":2,"items":[
			{"unit_code":"U1","parent_unit_code":null,"unit_name":"A","full_name":"A","region":1,"level":1},
			{"unit_code":"U1-1","parent_unit_code":"U1","unit_name":"B","full_name":"B","region":"nam","level":2}
		]}`))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL+"/", srv.Client(), testLogger())

	units, err := c.Units(context.Background(), "Bearer tok")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, entity.RegionNorth, units[0].Region)
	assert.Nil(t, units[0].ParentUnitCode)
	assert.Equal(t, "U1", units[1].Parent())
	assert.Equal(t, entity.RegionSouth, units[1].Region)
}

func TestClient_UnitsWithUnknownRegions(t *testing.T) {
	for _, region := range []string{`0`, `""`, `4`, `"Bac"`, `null`} {
		t.Run(region, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"items":[
					{"unit_code":"U1","region":1},
					{"unit_code":"U2","parent_unit_code":"U1","region":` + region + `}
				]}`))
			}))
			defer srv.Close()

			units, err := NewWithHTTPClient(srv.URL, srv.Client(), testLogger()).Units(context.Background(), "tok")
			require.NoError(t, err)
			require.Len(t, units, 2)
			assert.Equal(t, entity.RegionNorth, units[0].Region)
			assert.Equal(t, "U1", units[1].Parent())
		})
	}
}

func TestClient_StatusError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "json body", body: `{"message":"expired"}`, want: `{"message":"expired"}`},
		{name: "text body", body: "bad gateway", want: `{"message":"bad gateway"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewWithHTTPClient(srv.URL, srv.Client(), testLogger())
			_, err := c.Paginate(context.Background(), IdentPaginate, "", entity.PaginateRequest{Page: 1})

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, http.StatusBadGateway, se.Status)
			assert.JSONEq(t, tt.want, string(se.Body))
		})
	}
}

func TestClient_PaginateWithoutBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"countTotal":0}`))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client(), testLogger())
	resp, err := c.Paginate(context.Background(), LicensePaginate, "", entity.PaginateRequest{Filter: "status like 'new'"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.CountTotal)
	assert.NotNil(t, resp.Items)
}

func TestClient_DoWithoutOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, LicenseResource+"L1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client(), testLogger())
	assert.NoError(t, c.Do(context.Background(), http.MethodDelete, LicenseResource+"L1", "t", nil, nil))
}

func TestLoadTLS(t *testing.T) {
	cfg, err := loadTLS("", false)
	assert.NoError(t, err)
	assert.Nil(t, cfg)

	dir := t.TempDir()
	cfg, err = loadTLS(dir, false)
	assert.NoError(t, err)
	assert.Nil(t, cfg, "no certificates means plain transport")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.crt"), []byte("junk"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.key"), []byte("junk"), 0o600))
	_, err = loadTLS(dir, true)
	assert.Error(t, err)

	_, err = New(Options{BaseURL: "http://x", CertDir: dir}, testLogger())
	assert.Error(t, err)
}
