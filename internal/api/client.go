// Package api implements the JSON-over-HTTPS client for the inventory
// server's phone API.
//
// Every endpoint is a POST with a JSON body. Bulk reference fetches return
// {"data": [...], "count": N}; the count is the authoritative server-side
// row count used by the sync engine's skip heuristic.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dataworks/fieldaudit/internal/model"
)

// Endpoint paths under the API base URL.
const (
	pathLogin         = "/phone-api/login.php"
	pathAssets        = "/phone-api/search-info/get-asset-offset.php"
	pathBuildings     = "/phone-api/search-info/get-bldg-offset.php"
	pathRooms         = "/phone-api/search-info/get-room-offset.php"
	pathDepartments   = "/phone-api/search-info/get-dept-offset.php"
	pathCustodians    = "/phone-api/search-info/get-cust-offset.php"
	pathAssetByTag    = "/phone-api/asset-by-tag.php"
	pathStartAudit    = "/phone-api/audit/start-audit.php"
	pathCompleteAudit = "/phone-api/audit/complete-audit.php"
)

// Client talks to the remote inventory server.
type Client struct {
	base   string
	httpc  *http.Client
	apiKey string
}

// New creates a client for the given base URL (scheme + host, no trailing
// slash required).
func New(baseURL string) *Client {
	return &Client{
		base:  baseURL,
		httpc: http.DefaultClient,
	}
}

// SetHTTPClient replaces the underlying HTTP client, typically to set a
// timeout.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.httpc = hc
	}
}

// SetAPIKey attaches a bearer token to all subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.apiKey = key
}

// HTTPError is returned for any non-2xx response, carrying the status code
// and response body for the caller's alert message.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// post sends a JSON body and decodes the JSON response into out (out may
// be nil when the caller only cares about success).
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// LoginResult is the server's answer to a login attempt.
type LoginResult struct {
	Status string `json:"status"`
	APIKey string `json:"api_key,omitempty"`
}

// Login authenticates with email and password. On success the returned
// api_key (when present) is attached to the client for later calls.
func (c *Client) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	var res LoginResult
	if err := c.post(ctx, pathLogin, map[string]string{"email": email, "pw": pw}, &res); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if res.APIKey != "" {
		c.apiKey = res.APIKey
	}
	return &res, nil
}

type pageRequest struct {
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	Search string `json:"search"`
}

// AssetPage is one page of the bulk asset fetch.
type AssetPage struct {
	Data  []model.Asset `json:"data"`
	Count int           `json:"count"`
}

// FetchAssets returns one page of assets plus the server's total count.
func (c *Client) FetchAssets(ctx context.Context, offset, limit int) (*AssetPage, error) {
	var page AssetPage
	if err := c.post(ctx, pathAssets, pageRequest{Offset: offset, Limit: limit}, &page); err != nil {
		return nil, fmt.Errorf("fetch assets: %w", err)
	}
	return &page, nil
}

// BuildingPage is one page of the bulk building fetch.
type BuildingPage struct {
	Data  []model.Building `json:"data"`
	Count int              `json:"count"`
}

// FetchBuildings returns one page of buildings plus the server's total count.
func (c *Client) FetchBuildings(ctx context.Context, offset, limit int) (*BuildingPage, error) {
	var page BuildingPage
	if err := c.post(ctx, pathBuildings, pageRequest{Offset: offset, Limit: limit}, &page); err != nil {
		return nil, fmt.Errorf("fetch buildings: %w", err)
	}
	return &page, nil
}

// RoomPage is one page of the bulk room fetch.
type RoomPage struct {
	Data  []model.Room `json:"data"`
	Count int          `json:"count"`
}

// FetchRooms returns one page of rooms plus the server's total count.
func (c *Client) FetchRooms(ctx context.Context, offset, limit int) (*RoomPage, error) {
	var page RoomPage
	if err := c.post(ctx, pathRooms, pageRequest{Offset: offset, Limit: limit}, &page); err != nil {
		return nil, fmt.Errorf("fetch rooms: %w", err)
	}
	return &page, nil
}

// DepartmentPage is one page of the bulk department fetch.
type DepartmentPage struct {
	Data  []model.Department `json:"data"`
	Count int                `json:"count"`
}

// FetchDepartments returns one page of departments plus the server's total count.
func (c *Client) FetchDepartments(ctx context.Context, offset, limit int) (*DepartmentPage, error) {
	var page DepartmentPage
	if err := c.post(ctx, pathDepartments, pageRequest{Offset: offset, Limit: limit}, &page); err != nil {
		return nil, fmt.Errorf("fetch departments: %w", err)
	}
	return &page, nil
}

// CustodianPage is one page of the bulk custodian fetch.
type CustodianPage struct {
	Data  []model.Custodian `json:"data"`
	Count int               `json:"count"`
}

// FetchCustodians returns one page of custodian pairs plus the server's total count.
func (c *Client) FetchCustodians(ctx context.Context, offset, limit int) (*CustodianPage, error) {
	var page CustodianPage
	if err := c.post(ctx, pathCustodians, pageRequest{Offset: offset, Limit: limit}, &page); err != nil {
		return nil, fmt.Errorf("fetch custodians: %w", err)
	}
	return &page, nil
}

// AssetByTag looks up a single asset by tag, with the department as
// context. Returns (nil, nil) when the server does not recognize the tag;
// that is an answer, not an error.
func (c *Client) AssetByTag(ctx context.Context, tag, deptID string) (*model.Asset, error) {
	var res struct {
		Data []model.Asset `json:"data"`
	}
	payload := map[string]string{"tag": tag, "dept_id": deptID}
	if err := c.post(ctx, pathAssetByTag, payload, &res); err != nil {
		return nil, fmt.Errorf("asset lookup %s: %w", tag, err)
	}
	if len(res.Data) == 0 {
		return nil, nil
	}
	return &res.Data[0], nil
}

// Manifest is the expected-asset list the server returns for an audit of
// one department.
type Manifest struct {
	AuditID string        `json:"audit_id,omitempty"`
	Data    []model.Asset `json:"data"`
	Count   int           `json:"count"`
}

// StartAudit fetches the expected-asset manifest for a department.
func (c *Client) StartAudit(ctx context.Context, deptID string) (*Manifest, error) {
	var m Manifest
	if err := c.post(ctx, pathStartAudit, map[string]string{"dept_id": deptID}, &m); err != nil {
		return nil, fmt.Errorf("start audit for %s: %w", deptID, err)
	}
	return &m, nil
}

// CompleteAuditRequest is the bulk submission body: the entire working
// table plus the submitter's department and credentials.
type CompleteAuditRequest struct {
	Data     []*model.AuditingRow `json:"data"`
	DeptName string               `json:"dept_name"`
	Email    string               `json:"email"`
	PW       string               `json:"pw"`
}

// Ack is the server's acknowledgement of a completed audit.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// CompleteAudit submits the whole working table. The caller decides when
// to clear the table, so a failed submission can be retried without
// re-scanning.
func (c *Client) CompleteAudit(ctx context.Context, req *CompleteAuditRequest) (*Ack, error) {
	var ack Ack
	if err := c.post(ctx, pathCompleteAudit, req, &ack); err != nil {
		return nil, fmt.Errorf("complete audit: %w", err)
	}
	return &ack, nil
}
