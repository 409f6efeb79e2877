package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/adamanr/unit_service/internal/entity"
	"github.com/adamanr/unit_service/internal/upstream"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLicenseController_List(t *testing.T) {
	tests := []struct {
		name     string
		query    entity.ListQuery
		expected string
	}{
		{
			name:     "defaults to new",
			expected: "status like 'new'",
		},
		{
			name:     "search covers manager name",
			query:    entity.ListQuery{Q: "Hà"},
			expected: "(license like '%Hà%' or unit_code like '%Hà%' or device_name like '%Hà%' or manager_name like '%Hà%' or ip like '%Hà%' or mac like '%Hà%')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRedis, mockUpstream := &MockRedis{}, &MockUpstream{}
			mockRedis.On("Get", mock.Anything, "unit_selection:alice").Return(redis.Nil)
			mockUpstream.On("Paginate", upstream.LicensePaginate, "tok", entity.PaginateRequest{Filter: tt.expected, Page: 1, Limit: 10}).
				Return(entity.PaginateResponse[json.RawMessage]{Items: rawItems()}, nil)

			deps := CreateTestDependencies(nil, mockRedis, mockUpstream)
			c := NewLicenseController(deps, newSelection(deps))

			resp, err := c.List(context.Background(), "tok", "alice", tt.query)
			require.NoError(t, err)
			assert.NotNil(t, resp.Items)
			mockUpstream.AssertExpectations(t)
		})
	}
}

func TestLicenseController_Create(t *testing.T) {
	t.Run("explicit unit and default status", func(t *testing.T) {
		mockUpstream := &MockUpstream{}
		expected := entity.LicenseCreateRequest{UnitCode: "U1-1", DeviceName: "PC-01", Status: "new"}
		mockUpstream.On("Do", http.MethodPost, upstream.LicenseCreate, "tok", expected).Return(`{"id":"42"}`, nil)

		deps := CreateTestDependencies(nil, &MockRedis{}, mockUpstream)
		c := NewLicenseController(deps, newSelection(deps))

		out, err := c.Create(context.Background(), "tok", "alice", entity.LicenseCreateRequest{UnitCode: " U1-1 ", DeviceName: "PC-01"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"42"}`, string(out))
		mockUpstream.AssertExpectations(t)
	})

	t.Run("no unit selected", func(t *testing.T) {
		mockRedis := &MockRedis{}
		mockRedis.On("Get", mock.Anything, "unit_selection:alice").Return(redis.Nil)

		deps := CreateTestDependencies(nil, mockRedis, &MockUpstream{})
		c := NewLicenseController(deps, newSelection(deps))

		_, err := c.Create(context.Background(), "tok", "alice", entity.LicenseCreateRequest{})
		assert.ErrorIs(t, err, ErrNoUnitSelected)
	})

	t.Run("remote rejects", func(t *testing.T) {
		mockUpstream := &MockUpstream{}
		mockUpstream.On("Do", http.MethodPost, upstream.LicenseCreate, "tok", mock.Anything).
			Return(nil, &upstream.StatusError{Status: http.StatusBadRequest, Body: json.RawMessage(`{"message":"bad"}`)})

		deps := CreateTestDependencies(nil, &MockRedis{}, mockUpstream)
		c := NewLicenseController(deps, newSelection(deps))

		_, err := c.Create(context.Background(), "tok", "alice", entity.LicenseCreateRequest{UnitCode: "U1"})
		var se *upstream.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadRequest, se.Status)
	})
}

func TestLicenseController_Update(t *testing.T) {
	t.Run("escapes the id", func(t *testing.T) {
		mockUpstream := &MockUpstream{}
		patch := entity.LicensePatch{Status: StringPtr("act")}
		mockUpstream.On("Do", http.MethodPatch, "/api/license/a%2Fb", "tok", patch).Return(`{"id":"a/b","status":"act"}`, nil)

		deps := CreateTestDependencies(nil, nil, mockUpstream)
		out, err := NewLicenseController(deps, newSelection(deps)).Update(context.Background(), "tok", "a/b", patch)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"a/b","status":"act"}`, string(out))
	})

	t.Run("empty patch", func(t *testing.T) {
		deps := CreateTestDependencies(nil, nil, &MockUpstream{})
		_, err := NewLicenseController(deps, newSelection(deps)).Update(context.Background(), "tok", "1", entity.LicensePatch{})
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})
}

func TestLicenseController_Delete(t *testing.T) {
	mockUpstream := &MockUpstream{}
	mockUpstream.On("Do", http.MethodDelete, "/api/license/7", "tok", nil).Return(nil, nil).Once()
	mockUpstream.On("Do", http.MethodDelete, "/api/license/8", "tok", nil).Return(nil, errors.New("connection refused")).Once()

	deps := CreateTestDependencies(nil, nil, mockUpstream)
	c := NewLicenseController(deps, newSelection(deps))

	require.NoError(t, c.Delete(context.Background(), "tok", "7"))
	assert.EqualError(t, c.Delete(context.Background(), "tok", "8"), "connection refused")
	assert.ErrorIs(t, c.Delete(context.Background(), "tok", " "), ErrInvalidQuery)
	mockUpstream.AssertExpectations(t)
}
