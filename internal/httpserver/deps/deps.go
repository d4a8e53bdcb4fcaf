package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
	"github.com/MrSnakeDoc/heartbeat/internal/registry"
	"github.com/MrSnakeDoc/heartbeat/internal/scheduler"
)

// Pinger is anything whose liveness /readyz and /infra report.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckStore is the optional probe observation cache.
type CheckStore interface {
	Pinger
	GetCheck(ctx context.Context, url string) (*domain.Check, error)
	GetAllChecks(ctx context.Context) ([]domain.Check, error)
	DeleteChecks(ctx context.Context, urls []string) error
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time   // for testing, defaults to time.Now
	AllowedCIDRS []string           // IPs allowed to access operator endpoints
	TrustProxy   bool               // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Registry     *registry.Registry // service registry backing /service
	Database     Pinger             // persistence backend behind the registry
	DatabaseKind string             // "postgres" | "memory"
	Checks       CheckStore         // nil when redis is disabled
	Poller       *scheduler.Poller  // nil when polling is disabled
	PollTrigger  chan struct{}      // Channel to trigger a manual poll
}

// Now returns the current time, honoring TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
