package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/adamanr/unit_service/internal/config"
	"github.com/adamanr/unit_service/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

var UnitFieldDescriptions = []pgconn.FieldDescription{
	{Name: "unit_code", DataTypeOID: 25},
	{Name: "parent_unit_code", DataTypeOID: 25},
	{Name: "unit_name", DataTypeOID: 25},
	{Name: "full_name", DataTypeOID: 25},
	{Name: "region", DataTypeOID: 25},
	{Name: "level", DataTypeOID: 23},
	{Name: "created_at", DataTypeOID: 1184},
	{Name: "updated_at", DataTypeOID: 1184},
}

var UserFieldDescriptions = []pgconn.FieldDescription{
	{Name: "username", DataTypeOID: 25},
	{Name: "password", DataTypeOID: 25},
	{Name: "role", DataTypeOID: 25},
	{Name: "unit_code", DataTypeOID: 25},
	{Name: "region", DataTypeOID: 25},
	{Name: "created_at", DataTypeOID: 1184},
	{Name: "updated_at", DataTypeOID: 1184},
}

// MockDB represents a mock database connection.
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	mockArgs := append([]interface{}{ctx, sql}, args...)
	callArgs := m.Called(mockArgs...)
	return callArgs.Get(0).(pgx.Rows), callArgs.Error(1)
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	mockArgs := append([]interface{}{ctx, sql}, args...)
	callArgs := m.Called(mockArgs...)
	return callArgs.Get(0).(pgx.Row)
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	mockArgs := append([]interface{}{ctx, sql}, args...)
	callArgs := m.Called(mockArgs...)
	return callArgs.Get(0).(pgconn.CommandTag), callArgs.Error(1)
}

// assign copies val into the pointer dest, converting between named types
// of the same kind and wrapping or unwrapping one level of pointer.
func assign(dest, val interface{}) {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return
	}

	target := dv.Elem()
	if val == nil {
		target.Set(reflect.Zero(target.Type()))
		return
	}

	v := reflect.ValueOf(val)
	switch {
	case v.Type().AssignableTo(target.Type()):
		target.Set(v)
	case v.Kind() == target.Kind() && v.Kind() != reflect.Ptr && v.Type().ConvertibleTo(target.Type()):
		target.Set(v.Convert(target.Type()))
	case target.Kind() == reflect.Ptr && v.Kind() == target.Type().Elem().Kind():
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(v.Convert(target.Type().Elem()))
		target.Set(p)
	case v.Kind() == reflect.Ptr && v.IsNil():
		target.Set(reflect.Zero(target.Type()))
	case v.Kind() == reflect.Ptr && v.Elem().Kind() == target.Kind():
		target.Set(v.Elem().Convert(target.Type()))
	}
}

// MockRow represents a mock database row.
type MockRow struct {
	data []interface{}
	err  error
}

func NewMockRow(data []interface{}, err error) *MockRow {
	return &MockRow{
		data: data,
		err:  err,
	}
}

func (m *MockRow) Scan(dest ...interface{}) error {
	if m.err != nil {
		return m.err
	}

	for i, val := range m.data {
		if i < len(dest) {
			assign(dest[i], val)
		}
	}
	return nil
}

// MockRows represents mock database rows.
type MockRows struct {
	rows       [][]interface{}
	pos        int
	err        error
	fieldDescs []pgconn.FieldDescription
}

func NewMockRows(rows [][]interface{}, err error, fieldDescs []pgconn.FieldDescription) *MockRows {
	if fieldDescs == nil {
		fieldDescs = UnitFieldDescriptions
	}
	return &MockRows{
		rows:       rows,
		pos:        -1,
		err:        err,
		fieldDescs: fieldDescs,
	}
}

func (m *MockRows) FieldDescriptions() []pgconn.FieldDescription {
	return m.fieldDescs
}

func (m *MockRows) Next() bool {
	m.pos++
	return m.pos < len(m.rows)
}

func (m *MockRows) Close() {}

func (m *MockRows) Scan(dest ...interface{}) error {
	if m.err != nil {
		return m.err
	}
	if m.pos >= len(m.rows) {
		return nil
	}

	row := m.rows[m.pos]
	if len(row) != len(dest) {
		return fmt.Errorf("mock rows: %d values for %d destinations", len(row), len(dest))
	}

	for i, val := range row {
		assign(dest[i], val)
	}
	return nil
}

func (m *MockRows) Err() error {
	return m.err
}

func (m *MockRows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag("")
}

func (m *MockRows) Values() ([]interface{}, error) {
	if m.pos >= len(m.rows) {
		return nil, nil
	}
	return m.rows[m.pos], nil
}

func (m *MockRows) RawValues() [][]byte {
	return nil
}

func (m *MockRows) Conn() *pgx.Conn {
	return nil
}

// MockRedis represents a mock Redis client.
type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)

	if statusCmd, ok := args.Get(0).(*redis.StatusCmd); ok {
		return statusCmd
	}

	cmd := redis.NewStatusCmd(ctx)
	if err, ok := args.Get(0).(error); ok && err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("OK")
	}

	return cmd
}

func (m *MockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)

	if stringCmd, ok := args.Get(0).(*redis.StringCmd); ok {
		return stringCmd
	}

	cmd := redis.NewStringCmd(ctx)
	switch v := args.Get(0).(type) {
	case error:
		cmd.SetErr(v)
	case string:
		cmd.SetVal(v)
	default:
		cmd.SetErr(redis.Nil)
	}

	return cmd
}

func (m *MockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)

	if intCmd, ok := args.Get(0).(*redis.IntCmd); ok {
		return intCmd
	}

	cmd := redis.NewIntCmd(ctx)
	if err, ok := args.Get(0).(error); ok && err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(1)
	}

	return cmd
}

// MockUpstream represents a mock remote API client.
type MockUpstream struct {
	mock.Mock
}

// Do decodes the first return value (a JSON string) into out.
func (m *MockUpstream) Do(_ context.Context, method, path, bearer string, body, out any) error {
	args := m.Called(method, path, bearer, body)

	if raw, ok := args.Get(0).(string); ok && out != nil {
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			return err
		}
	}

	return args.Error(1)
}

func (m *MockUpstream) Paginate(_ context.Context, path, bearer string, req entity.PaginateRequest) (entity.PaginateResponse[json.RawMessage], error) {
	args := m.Called(path, bearer, req)
	resp, _ := args.Get(0).(entity.PaginateResponse[json.RawMessage])
	return resp, args.Error(1)
}

func (m *MockUpstream) Units(_ context.Context, bearer string) ([]entity.Unit, error) {
	args := m.Called(bearer)
	units, _ := args.Get(0).([]entity.Unit)
	return units, args.Error(1)
}

func NewMockCommandTag(tag string) pgconn.CommandTag {
	return pgconn.NewCommandTag(tag)
}

// Test helper functions.
func CreateTestDependencies(mockDB *MockDB, mockRedis *MockRedis, mockUpstream *MockUpstream) *Dependens {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := &config.Config{}
	cfg.Server.JWTSecret = "test-secret-key"
	cfg.Redis.SelectionTTL = time.Hour
	cfg.Redis.StatsCacheTTL = 30 * time.Second
	cfg.Units.Source = config.UnitSourcePostgres
	cfg.Units.SortBy = "unit_name"

	deps := &Dependens{
		Logger: logger,
		Config: cfg,
	}
	if mockDB != nil {
		deps.DB = mockDB
	}
	if mockRedis != nil {
		deps.Redis = mockRedis
	}
	if mockUpstream != nil {
		deps.Upstream = mockUpstream
	}

	return deps
}

// Test data helpers.
func unitRow(code string, parent *string, name string, region entity.Region, level int) []interface{} {
	now := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	return []interface{}{code, parent, name, name + " full", string(region), level, now, now}
}

func testUnitRows() [][]interface{} {
	return [][]interface{}{
		unitRow("U1", nil, "Phòng Kinh Doanh", entity.RegionNorth, 1),
		unitRow("U1-1", StringPtr("U1"), "Nhóm KD 01", entity.RegionNorth, 2),
		unitRow("U1-1-1", StringPtr("U1-1"), "Tổ 1", entity.RegionNorth, 3),
		unitRow("U2", nil, "Phòng Kỹ Thuật", entity.RegionCentral, 1),
	}
}

func StringPtr(s string) *string {
	return &s
}

func IntPtr(i int) *int {
	return &i
}
