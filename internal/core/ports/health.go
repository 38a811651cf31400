package ports

import "context"

// HealthChecker is one backing store checked by GET /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	// Name keys the check in the health report.
	Name() string
}
