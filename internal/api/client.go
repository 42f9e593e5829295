package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the production AutoSched API.
const DefaultBaseURL = "https://autosched-chi.vercel.app/api"

// Client talks to the AutoSched scheduling API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL. If token is non-empty
// it is attached as a bearer credential on every request.
func NewClient(ctx context.Context, baseURL, token string) *Client {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// do performs a request against the API and decodes the JSON response into
// out. Any non-2xx status is returned as an error; no structured error body
// is parsed.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("api error %d: %s", resp.StatusCode, truncate(data, 200))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding api response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// Login authenticates with username and password. No bearer credential is
// required for this call.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	return out, err
}

// FindEmployee resolves the employee record scoping userID to orgID.
func (c *Client) FindEmployee(ctx context.Context, userID, orgID string) (Employee, error) {
	var out Employee
	endpoint := fmt.Sprintf("/employees?userId=%s&orgId=%s",
		url.QueryEscape(userID), url.QueryEscape(orgID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &out)
	return out, err
}

// LoadOrganizations lists the organizations available to a user.
func (c *Client) LoadOrganizations(ctx context.Context, userID string) ([]Organization, error) {
	var out []Organization
	endpoint := "/organizations/" + url.PathEscape(userID)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &out)
	return out, err
}

// LoadSchedules lists the schedules assigned to an employee within an org.
func (c *Client) LoadSchedules(ctx context.Context, employeeID, orgID string) ([]Schedule, error) {
	var out []Schedule
	endpoint := fmt.Sprintf("/schedules/load?employeeId=%s&orgId=%s",
		url.QueryEscape(employeeID), url.QueryEscape(orgID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &out)
	return out, err
}

// FindSchedule fetches one schedule with its nested job orders. Job orders
// are returned sorted by scheduledOrder.
func (c *Client) FindSchedule(ctx context.Context, scheduleID, employeeID string) (ScheduleDetails, error) {
	var out ScheduleDetails
	endpoint := fmt.Sprintf("/schedules/find?scheduleId=%s&employeeId=%s",
		url.QueryEscape(scheduleID), url.QueryEscape(employeeID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return out, err
	}
	SortJobOrders(out.JobOrders)
	return out, nil
}

// UpdateLocation transmits one location sample.
func (c *Client) UpdateLocation(ctx context.Context, sample LocationSample) error {
	var out struct {
		Success bool `json:"success"`
	}
	return c.do(ctx, http.MethodPost, "/update-location", sample, &out)
}

// UserLocations returns the stored location history for a user.
func (c *Client) UserLocations(ctx context.Context, userID string) ([]LocationRecord, error) {
	var out []LocationRecord
	endpoint := "/location/user/" + url.PathEscape(userID)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &out)
	return out, err
}
