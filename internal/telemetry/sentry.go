// Sentry wiring for the three error kinds worth surfacing as incidents: a
// failed first session fetch, a failed signing attempt, and a
// probe-dispatch panic that Gather/Scan had to recover from. Everything
// else (a silent refresh miss, an individual probe's sentinel) is
// expected steady-state behavior, not paged.
package telemetry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

var (
	initOnce sync.Once
	enabled  bool
)

// InitReporting wires Sentry error reporting for the given service name.
// Reporting is disabled (every Capture* call becomes a no-op) when
// SENTRY_DSN is unset, so the module never phones home by default.
func InitReporting(service string) {
	initOnce.Do(func() {
		dsn := os.Getenv("SENTRY_DSN")
		if dsn == "" {
			return
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      envOr("HIVEHYDE_ENV", "unknown"),
			ServerName:       service,
			AttachStacktrace: true,
		}); err != nil {
			return
		}
		enabled = true
	})
}

// CaptureSigningFailure reports a failed riskmatrix.Engine.Sign call, the
// one incident kind apisentinel ever raises. attemptID is the same
// correlation id stamped on the log line, so a Sentry issue and a log
// line for the same attempt can be joined by eye.
func CaptureSigningFailure(err error, attemptID string) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("hivehyde.incident", "signing_failed")
		scope.SetTag("hivehyde.attempt", attemptID)
		sentry.CaptureException(err)
	})
}

// CaptureSessionFetchFailure reports a failed first-initialize session
// fetch: fatal to the caller, and the other incident kind worth paging
// on, unlike a silent refresh miss.
func CaptureSessionFetchFailure(err error) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("hivehyde.incident", "session_fetch_failed")
		sentry.CaptureException(err)
	})
}

// CaptureSessionRefreshFailure reports a failed silent refresh at info
// level: the vault keeps serving the previous key, so this is a signal to
// watch, not an incident.
func CaptureSessionRefreshFailure(err error) {
	if !enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelInfo)
		scope.SetTag("hivehyde.incident", "session_refresh_failed")
		sentry.CaptureMessage(fmt.Sprintf("session refresh failed: %v", err))
	})
}

// RecoverProbePanic is deferred around one probe's dispatch in
// dataloom.Gather and anomalyscan.Scan. It always swallows: a probe must
// never bring down a signing attempt, so the panic is converted into a
// reported incident and the caller's sentinel-producing recover() path
// continues undisturbed.
func RecoverProbePanic(component, probe string, rec interface{}) {
	if rec == nil {
		return
	}
	if enabled {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("hivehyde.incident", "probe_panic")
			scope.SetTag("hivehyde.component", component)
			scope.SetTag("hivehyde.probe", probe)
			sentry.CurrentHub().Recover(rec)
		})
	}
	WithComponent(component).WithProbe(probe).Error("probe panicked: %v", rec)
}

// Flush blocks until buffered events are sent or the timeout elapses.
func Flush(timeout time.Duration) {
	if !enabled {
		return
	}
	sentry.Flush(timeout)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
