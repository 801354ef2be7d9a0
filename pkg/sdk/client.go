// Package sdk provides the client-side library for the Emap store. It talks
// to a running daemon over HTTP or opens the engine in-process.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/celerix-dev/emap-store/pkg/schema"
)

// Client is a remote client for the Emap daemon's HTTP API.
// It implements WorkspaceService.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the daemon at addr ("host:port" or a full
// http URL).
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// do sends the request and turns error statuses into sentinel-matching errors.
// The caller closes the body of a successful response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()

	var e apiError
	raw, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(raw, &e) != nil || e.Code == "" {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(raw)))
	}
	return nil, ErrorFromCode(e.Code, e.Error)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, method, path, bytes.NewReader(payload),
		http.Header{"Content-Type": {"application/json"}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, header http.Header) error {
	resp, err := c.do(ctx, method, path, body, header)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) ListWorkspaces(ctx context.Context) ([]schema.WorkspaceRecord, error) {
	var list []schema.WorkspaceRecord
	err := c.getJSON(ctx, "/api/workspaces", &list)
	return list, err
}

func (c *Client) Create(ctx context.Context, name string) (schema.WorkspaceRecord, error) {
	var rec schema.WorkspaceRecord
	err := c.sendJSON(ctx, http.MethodPost, "/api/workspaces", map[string]string{"name": name}, &rec)
	return rec, err
}

func (c *Client) Load(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodPost, "/api/workspaces/"+url.PathEscape(id)+"/load", nil, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/api/workspaces/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Active(ctx context.Context) (schema.ActiveWorkspace, error) {
	var active schema.ActiveWorkspace
	err := c.getJSON(ctx, "/api/workspaces/active", &active)
	return active, err
}

func (c *Client) GetValue(ctx context.Context, key string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/kv/"+url.PathEscape(key), nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	return string(raw), err
}

func (c *Client) PutValue(ctx context.Context, key, value string) error {
	return c.send(ctx, http.MethodPost, "/api/kv/"+url.PathEscape(key), strings.NewReader(value),
		http.Header{"Content-Type": {"application/json"}})
}

func (c *Client) ListAssets(ctx context.Context) ([]schema.AssetRecord, error) {
	var list []schema.AssetRecord
	err := c.getJSON(ctx, "/api/assets", &list)
	return list, err
}

func (c *Client) PutAsset(ctx context.Context, asset schema.AssetRecord, data []byte) error {
	header := http.Header{}
	if asset.MimeType != "" {
		header.Set("Content-Type", asset.MimeType)
	}
	if asset.Name != "" {
		header.Set("X-Asset-Name", asset.Name)
	}
	return c.send(ctx, http.MethodPost, "/api/asset/"+url.PathEscape(asset.ID), bytes.NewReader(data), header)
}

func (c *Client) GetAssetBytes(ctx context.Context, id string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/asset/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) DeleteAssetRecord(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/api/asset/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ImportAsset(ctx context.Context, path string) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	err := c.sendJSON(ctx, http.MethodPost, "/api/assets/import", map[string]string{"path": path}, &out)
	return out.Name, err
}

func (c *Client) ListDirectory(ctx context.Context, path string) ([]schema.DirEntry, error) {
	var entries []schema.DirEntry
	err := c.getJSON(ctx, "/api/fs?path="+url.QueryEscape(path), &entries)
	return entries, err
}

func (c *Client) Setting(ctx context.Context, key string) (string, bool, error) {
	var out struct {
		Value string `json:"value"`
	}
	err := c.getJSON(ctx, "/api/settings/"+url.PathEscape(key), &out)
	if err != nil {
		if ErrorCode(err) == CodeNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return out.Value, true, nil
}

func (c *Client) PutSetting(ctx context.Context, key, value string) error {
	return c.send(ctx, http.MethodPut, "/api/settings/"+url.PathEscape(key), strings.NewReader(value), nil)
}

// --- Generics Support ---

// GetJSON reads key from the active workspace and decodes its JSON value.
func GetJSON[T any](ctx context.Context, s KVReader, key string) (T, error) {
	var target T
	raw, err := s.GetValue(ctx, key)
	if err != nil {
		return target, err
	}
	err = json.Unmarshal([]byte(raw), &target)
	return target, err
}

// SetJSON encodes val as JSON and stores it under key.
func SetJSON[T any](ctx context.Context, s KVWriter, key string, val T) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.PutValue(ctx, key, string(raw))
}
