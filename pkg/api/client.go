// Package api is the client for the LocalCloud control API reachable over
// the mesh.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"localcloud/pkg/config"
	"localcloud/pkg/model"
)

// Client talks JSON to the API. The zero value is not usable; use New.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  hclog.Logger
}

// New builds a client from cfg.
func New(cfg config.Config, logger hclog.Logger) *Client {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.APIURL, "/"),
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: cfg.APITimeout},
		logger:  logger.Named("api"),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Credentials returns the deploy key and webhook for new services.
func (c *Client) Credentials(ctx context.Context) (model.Credentials, error) {
	var out model.Credentials
	err := c.do(ctx, http.MethodGet, "/deploy/credentials", nil, &out)
	return out, err
}

// Nodes lists servers and local machines on the mesh.
func (c *Client) Nodes(ctx context.Context) ([]model.Node, error) {
	var out []model.Node
	err := c.do(ctx, http.MethodGet, "/vpn_node", nil, &out)
	return out, err
}

// CreateNode provisions a node and returns its join bundle URL.
func (c *Client) CreateNode(ctx context.Context, req model.NodeRequest) (model.NodeInvite, error) {
	var out struct {
		model.NodeInvite
		Msg string `json:"msg"`
	}
	if err := c.do(ctx, http.MethodPost, "/vpn_node", req, &out); err != nil {
		return model.NodeInvite{}, err
	}
	if out.ZipURL == "" {
		return model.NodeInvite{}, &RemoteError{Method: http.MethodPost, Path: "/vpn_node", Status: http.StatusOK, Msg: out.Msg}
	}
	return out.NodeInvite, nil
}

// Services lists deployed services.
func (c *Client) Services(ctx context.Context) ([]model.Service, error) {
	var out []model.Service
	err := c.do(ctx, http.MethodGet, "/service", nil, &out)
	return out, err
}

// Service fetches one service with its environments.
func (c *Client) Service(ctx context.Context, id model.ID) (model.Service, error) {
	var out model.Service
	err := c.do(ctx, http.MethodGet, "/service/"+url.PathEscape(id.String()), nil, &out)
	return out, err
}

func (c *Client) CreateService(ctx context.Context, req model.ServiceRequest) error {
	return c.do(ctx, http.MethodPost, "/service", req, nil)
}

func (c *Client) DeleteService(ctx context.Context, id model.ID) error {
	return c.do(ctx, http.MethodDelete, "/service/"+url.PathEscape(id.String()), nil, nil)
}

func (c *Client) CreateEnvironment(ctx context.Context, serviceID model.ID, req model.EnvironmentRequest) error {
	return c.do(ctx, http.MethodPost, "/environment/"+url.PathEscape(serviceID.String()), req, nil)
}

func (c *Client) DeleteEnvironment(ctx context.Context, serviceID model.ID, name string) error {
	path := "/environment/" + url.PathEscape(serviceID.String()) + "/" + url.PathEscape(name)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Tunnels lists localhost tunnels.
func (c *Client) Tunnels(ctx context.Context) ([]model.Tunnel, error) {
	var out []model.Tunnel
	err := c.do(ctx, http.MethodGet, "/tunnel", nil, &out)
	return out, err
}

func (c *Client) CreateTunnel(ctx context.Context, req model.TunnelRequest) error {
	return c.do(ctx, http.MethodPost, "/tunnel", req, nil)
}

func (c *Client) DeleteTunnel(ctx context.Context, id model.ID) error {
	return c.do(ctx, http.MethodDelete, "/tunnel/"+url.PathEscape(id.String()), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "request_id", reqID)

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var payload struct {
			Msg string `json:"msg"`
		}
		_ = json.Unmarshal(b, &payload)
		c.logger.Warn("remote error", "method", method, "path", path, "status", resp.StatusCode, "request_id", reqID, "body", strings.TrimSpace(string(b)))
		return &RemoteError{Method: method, Path: path, Status: resp.StatusCode, Msg: payload.Msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
