// Package apiclient is the REST client the dashboard views use to reach the
// fleet API.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/edgetensor/fleetdash/internal/middleware"
	"github.com/edgetensor/fleetdash/internal/types"
	"github.com/go-resty/resty/v2"
)

const (
	DevicesPath   = "/api/v2.0/devices/matrack"
	SignedURLPath = "/dashcamAlertFiles/getSignedUrl"

	// HistoryTimeLayout is how history bounds are sent as query parameters.
	HistoryTimeLayout = time.RFC3339
)

var ErrNotFound = errors.New("not found")

// ErrStatus is returned for any other non-2xx response.
type ErrStatus struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ErrStatus) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Code)
}

type Client struct {
	rest *resty.Client
}

// New creates a client for the API at baseURL. apiKey is sent as X-API-Key
// when non-empty.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		rest.SetHeader("X-API-Key", apiKey)
	}
	return &Client{rest: rest}
}

func (c *Client) ListDevices(ctx context.Context) ([]types.Device, error) {
	var out []types.Device
	if err := c.get(ctx, DevicesPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeviceLocation(ctx context.Context, deviceID string) (*types.Location, error) {
	var out types.Location
	if err := c.get(ctx, devicePath(deviceID, "location"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeviceHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.TrackPoint, error) {
	query := map[string]string{
		"start_time": start.UTC().Format(HistoryTimeLayout),
		"end_time":   end.UTC().Format(HistoryTimeLayout),
	}
	var out []types.TrackPoint
	if err := c.get(ctx, devicePath(deviceID, "history"), query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeviceTrips(ctx context.Context, deviceID string) ([]types.Trip, error) {
	var out []types.Trip
	if err := c.get(ctx, devicePath(deviceID, "trips"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeviceAlarms(ctx context.Context, deviceID string) ([]types.Alarm, error) {
	var out []types.Alarm
	if err := c.get(ctx, devicePath(deviceID, "alarms"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SignedURL exchanges a media storage path for a time-limited URL.
func (c *Client) SignedURL(ctx context.Context, filePath string) (string, error) {
	var out types.SignedURLResponse
	if err := c.get(ctx, SignedURLPath, map[string]string{"filePath": filePath}, &out); err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("signed url response is empty")
	}
	return out.SignedURL, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	var apiErr types.ErrorResponse
	req := c.rest.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out).
		SetError(&apiErr)
	// Calls made on behalf of an operator's page request carry the operator's
	// address so per-client limits apply to them and not to the dashboard.
	if ip := middleware.RemoteFromContext(ctx).IP; ip != "" {
		req.SetHeader("X-Forwarded-For", ip)
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}

	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, ErrNotFound)
	default:
		return &ErrStatus{
			StatusCode: resp.StatusCode(),
			Code:       apiErr.Error,
			Message:    apiErr.Message,
		}
	}
}

func devicePath(deviceID, suffix string) string {
	return DevicesPath + "/" + url.PathEscape(deviceID) + "/" + suffix
}
