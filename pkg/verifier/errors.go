package verifier

import "errors"

// Error classes for a request cycle. ErrConnectivity, ErrSchema, ErrCapture and
// ErrRead abort the cycle; ErrTelemetry is only ever reported on the view.
var (
	ErrConnectivity = errors.New("store unreachable")
	ErrSchema       = errors.New("schema structures unavailable")
	ErrCapture      = errors.New("baseline capture failed")
	ErrRead         = errors.New("compare read failed")
	ErrTelemetry    = errors.New("store stats unavailable")
	ErrNoBaseline   = errors.New("no trusted baseline")
)

// Class names the error class of err for display, or "" when err is nil.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnectivity):
		return "connectivity"
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.Is(err, ErrCapture):
		return "capture"
	case errors.Is(err, ErrRead):
		return "read"
	case errors.Is(err, ErrTelemetry):
		return "telemetry"
	case errors.Is(err, ErrNoBaseline):
		return "no_baseline"
	default:
		return "internal"
	}
}
