package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adamanr/unit_service/internal/entity"
)

const (
	UnitsPath        = "/api/units/paginate"
	IdentPaginate    = "/api/ident/paginate"
	IdentCreate      = "/api/ident/create"
	LicensePaginate  = "/api/license/paginate"
	LicenseCreate    = "/api/license/create"
	LicenseResource  = "/api/license/"
	maxErrorBodySize = 64 << 10
)

// StatusError is returned for any non-2xx answer of the remote API.
type StatusError struct {
	Status int
	Body   json.RawMessage
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded %d: %s", e.Status, strings.TrimSpace(string(e.Body)))
}

type Options struct {
	BaseURL             string
	CertDir             string
	RequireServerVerify bool
	Timeout             time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New builds a client for the remote API. When CertDir holds client.crt and
// client.key the transport presents them as a client certificate.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	tlsConfig, err := loadTLS(opts.CertDir, opts.RequireServerVerify)
	if err != nil {
		logger.Error("Error loading client certificates", slog.String("dir", opts.CertDir), slog.String("error", err.Error()))
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
		logger.Info("Upstream mutual TLS enabled", slog.String("dir", opts.CertDir), slog.Bool("verify_server", opts.RequireServerVerify))
	}

	return NewWithHTTPClient(opts.BaseURL, &http.Client{Transport: transport, Timeout: opts.Timeout}, logger), nil
}

func NewWithHTTPClient(baseURL string, hc *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  logger,
	}
}

func loadTLS(dir string, verify bool) (*tls.Config, error) {
	if dir == "" {
		return nil, nil
	}

	certPath := filepath.Join(dir, "client.crt")
	keyPath := filepath.Join(dir, "client.key")
	if !exists(certPath) || !exists(keyPath) {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load client key pair: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		// #nosec G402 -- verification is opt-in.
		InsecureSkipVerify: !verify,
	}

	caPath := filepath.Join(dir, "ca.crt")
	if exists(caPath) {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("ca.crt holds no certificates")
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Do sends body as JSON and decodes a 2xx answer into out when out is not nil.
func (c *Client) Do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(bearer, "Bearer "))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Error calling upstream", slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if !json.Valid(raw) {
			raw, _ = json.Marshal(map[string]string{"message": string(raw)})
		}

		c.logger.Error("Upstream error", slog.String("path", path), slog.Int("status", resp.StatusCode))
		return &StatusError{Status: resp.StatusCode, Body: raw}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

func (c *Client) Post(ctx context.Context, path, bearer string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, bearer, body, out)
}

// Paginate posts a paginate request and returns the raw items.
func (c *Client) Paginate(ctx context.Context, path, bearer string, req entity.PaginateRequest) (entity.PaginateResponse[json.RawMessage], error) {
	var resp entity.PaginateResponse[json.RawMessage]
	if err := c.Post(ctx, path, bearer, req, &resp); err != nil {
		return entity.PaginateResponse[json.RawMessage]{}, err
	}

	if resp.Items == nil {
		resp.Items = []json.RawMessage{}
	}

	return resp, nil
}

// Units fetches the flat unit list.
func (c *Client) Units(ctx context.Context, bearer string) ([]entity.Unit, error) {
	var resp entity.PaginateResponse[entity.Unit]
	if err := c.Post(ctx, UnitsPath, bearer, entity.PaginateRequest{Filter: ""}, &resp); err != nil {
		return nil, err
	}

	return resp.Items, nil
}
