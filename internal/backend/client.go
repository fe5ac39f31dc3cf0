package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"content-gate/internal/observability"
)

// ErrNoData collapses transport errors, non-200 responses and malformed
// bodies into one outcome.
var ErrNoData = errors.New("backend: no data")

// Params are the device fields posted with every fetch.
type Params struct {
	AfID              string `json:"af_id"`
	BundleID          string `json:"bundle_id"`
	OS                string `json:"os"`
	StoreID           string `json:"store_id"`
	Locale            string `json:"locale"`
	PushToken         string `json:"push_token"`
	FirebaseProjectID string `json:"firebase_project_id"`
	AdvertisingID     string `json:"advertising_id,omitempty"`
}

// Content is a successful backend answer.
type Content struct {
	OK      string `json:"ok"`
	URL     string `json:"url"`
	Expires int64  `json:"expires"`
}

// Body flattens params and conversion data into one JSON object.
// Conversion keys overwrite param keys on collision.
func Body(p Params, conversion map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	for k, v := range conversion {
		body[k] = v
	}
	return body, nil
}

type Client struct {
	resty *resty.Client
	path  string
}

func NewClient(baseURL, path string, timeout time.Duration) *Client {
	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	return &Client{resty: r, path: "/" + strings.TrimLeft(path, "/")}
}

// Post sends body once. Any failure is reported as ErrNoData.
func (c *Client) Post(ctx context.Context, body map[string]any) (Content, error) {
	start := time.Now()
	defer func() { observability.BackendLatency.Observe(time.Since(start).Seconds()) }()

	resp, err := c.resty.R().SetContext(ctx).SetBody(body).Post(c.path)
	if err != nil {
		observability.BackendFetches.WithLabelValues("transport").Inc()
		log.Warn().Err(err).Msg("backend fetch failed")
		return Content{}, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	if resp.StatusCode() != http.StatusOK {
		observability.BackendFetches.WithLabelValues("status").Inc()
		log.Warn().Int("status", resp.StatusCode()).Msg("backend fetch rejected")
		return Content{}, fmt.Errorf("%w: status %d", ErrNoData, resp.StatusCode())
	}
	var out Content
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.URL == "" {
		observability.BackendFetches.WithLabelValues("malformed").Inc()
		log.Warn().Err(err).Msg("backend body malformed")
		return Content{}, fmt.Errorf("%w: malformed body", ErrNoData)
	}
	observability.BackendFetches.WithLabelValues("ok").Inc()
	return out, nil
}
