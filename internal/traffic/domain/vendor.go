// Package domain defines the traffic vendor capability surface.
package domain

import (
	"context"
	"errors"
	"time"
)

// UsageBucket is one day of vendor-reported traffic.
type UsageBucket struct {
	Date   time.Time `json:"date"`
	Hits   int64     `json:"hits"`
	Visits int64     `json:"visits"`
}

// UsageReport is the vendor's cumulative usage answer for a window.
// Vendors may omit days with no traffic; gaps are not an error.
type UsageReport struct {
	ProjectID string        `json:"project_id"`
	Buckets   []UsageBucket `json:"buckets"`
}

// TotalHits sums hits across every bucket in the report.
func (r UsageReport) TotalHits() int64 {
	var total int64
	for _, b := range r.Buckets {
		total += b.Hits
	}
	return total
}

// TotalVisits sums visits across every bucket in the report.
func (r UsageReport) TotalVisits() int64 {
	var total int64
	for _, b := range r.Buckets {
		total += b.Visits
	}
	return total
}

type CreateProjectRequest struct {
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`
	Speed     int    `json:"speed"`
}

// Vendor is the capability surface the engine needs from a traffic
// provider. GetUsage must be read-only on the vendor side so it is safe
// to retry.
type Vendor interface {
	Provider() string
	CreateProject(ctx context.Context, req CreateProjectRequest) (projectID string, err error)
	GetUsage(ctx context.Context, projectID string, from, to time.Time) (UsageReport, error)
	SetSpeed(ctx context.Context, projectID string, speed int) error
}

var (
	// ErrUnavailable covers transport-level failures: timeouts, refused
	// connections, 5xx answers. The caller must not advance any state.
	ErrUnavailable = errors.New("vendor_unavailable")
	// ErrInvalidData covers well-formed transport with nonsensical
	// payloads (unparseable body, negative counters).
	ErrInvalidData = errors.New("vendor_data_invalid")

	ErrProviderNotFound = errors.New("vendor_provider_not_found")
)
