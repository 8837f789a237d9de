// Package clickmill implements the traffic vendor interface against the
// Clickmill HTTP API.
package clickmill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boostlane/boostlane/internal/config"
	"github.com/boostlane/boostlane/internal/traffic/adapters"
	"github.com/boostlane/boostlane/internal/traffic/domain"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	providerName   = "clickmill"
	defaultTimeout = 15 * time.Second
	dateLayout     = "2006-01-02"
)

func init() {
	adapters.Register(providerName, func(cfg config.VendorConfig) (domain.Vendor, error) {
		return newClient(cfg)
	})
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

func newClient(cfg config.VendorConfig) (*client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("clickmill: base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    &http.Client{Timeout: timeout},
		log:     zap.L().Named("vendor.clickmill"),
	}, nil
}

func (c *client) Provider() string { return providerName }

type projectResponse struct {
	ID string `json:"id"`
}

type statsResponse struct {
	ProjectID string `json:"project_id"`
	Days      []struct {
		Date   string `json:"date"`
		Hits   int64  `json:"hits"`
		Visits int64  `json:"visits"`
	} `json:"days"`
}

func (c *client) CreateProject(ctx context.Context, req domain.CreateProjectRequest) (string, error) {
	payload := map[string]any{
		"name":       req.Name,
		"target_url": req.TargetURL,
		"speed":      req.Speed,
	}

	var out projectResponse
	err := c.doJSON(ctx, http.MethodPost, "/v2/projects", payload, uuid.NewString(), &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: empty project id", domain.ErrInvalidData)
	}
	return out.ID, nil
}

// GetUsage is read-only on the vendor side, so transient failures are
// retried with backoff before being reported as unavailability.
func (c *client) GetUsage(ctx context.Context, projectID string, from, to time.Time) (domain.UsageReport, error) {
	query := url.Values{}
	query.Set("from", from.UTC().Format(dateLayout))
	query.Set("to", to.UTC().Format(dateLayout))
	path := "/v2/projects/" + url.PathEscape(projectID) + "/stats?" + query.Encode()

	var out statsResponse
	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out = statsResponse{}
		err := c.doJSON(ctx, http.MethodGet, path, nil, "", &out)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return domain.UsageReport{}, err
	}

	report := domain.UsageReport{ProjectID: projectID}
	for _, day := range out.Days {
		if day.Hits < 0 || day.Visits < 0 {
			return domain.UsageReport{}, fmt.Errorf("%w: negative counters for %s", domain.ErrInvalidData, day.Date)
		}
		date, parseErr := time.Parse(dateLayout, day.Date)
		if parseErr != nil {
			return domain.UsageReport{}, fmt.Errorf("%w: bad bucket date %q", domain.ErrInvalidData, day.Date)
		}
		report.Buckets = append(report.Buckets, domain.UsageBucket{
			Date:   date,
			Hits:   day.Hits,
			Visits: day.Visits,
		})
	}
	return report, nil
}

func (c *client) SetSpeed(ctx context.Context, projectID string, speed int) error {
	payload := map[string]any{"speed": speed}
	path := "/v2/projects/" + url.PathEscape(projectID) + "/speed"
	return c.doJSON(ctx, http.MethodPut, path, payload, "", nil)
}

func (c *client) doJSON(ctx context.Context, method, path string, payload any, idempotencyKey string, out any) error {
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failure: nothing on the vendor side is known to
		// have happened.
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: vendor returned %d", domain.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: vendor returned %d", domain.ErrInvalidData, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidData, err)
	}
	return nil
}

func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrUnavailable)
}
