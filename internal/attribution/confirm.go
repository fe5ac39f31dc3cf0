package attribution

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Confirmer re-checks an organic install against the attribution service.
type Confirmer interface {
	Confirm(ctx context.Context, deviceID string) (map[string]any, error)
}

// ConfirmClient calls GET {base}/{appID}?devkey=..&device_id=..
type ConfirmClient struct {
	resty  *resty.Client
	appID  string
	devKey string
}

func NewConfirmClient(baseURL, appID, devKey string, timeout time.Duration) *ConfirmClient {
	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &ConfirmClient{resty: r, appID: appID, devKey: devKey}
}

func (c *ConfirmClient) Confirm(ctx context.Context, deviceID string) (map[string]any, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"devkey":    c.devKey,
			"device_id": deviceID,
		}).
		Get("/" + url.PathEscape(c.appID))
	if err != nil {
		return nil, fmt.Errorf("confirm request: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("confirm request: unexpected status %d", resp.StatusCode())
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("confirm decode: %w", err)
	}
	return out, nil
}
