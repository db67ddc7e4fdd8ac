package internaldefs

import (
	"strconv"
	"strings"
	"time"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   efficio.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters. Bounds are the
// finite bucket upper bounds; every histogram also has a +Inf bucket.
type HistogramDef struct {
	ID     efficio.MetricID
	Name   string
	Help   string
	Bounds []time.Duration
}

// AuditDroppedName is the counter of audit events lost to backpressure,
// split by a kind label.
const AuditDroppedName = "efficio_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Audit events dropped on a full dispatcher buffer or an expired context."

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: efficio.MetricRegisterSuccess, Name: "efficio_register_success_total", Help: "Accounts created."},
	{ID: efficio.MetricRegisterUsernameTaken, Name: "efficio_register_username_taken_total", Help: "Registrations rejected because the username exists."},
	{ID: efficio.MetricRegisterFailure, Name: "efficio_register_failure_total", Help: "Registrations that failed for other reasons."},
	{ID: efficio.MetricLoginSuccess, Name: "efficio_login_success_total", Help: "Successful logins."},
	{ID: efficio.MetricLoginFailure, Name: "efficio_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: efficio.MetricLoginRateLimited, Name: "efficio_login_rate_limited_total", Help: "Logins rejected by the failed-attempt limiter."},
	{ID: efficio.MetricLogout, Name: "efficio_logout_total", Help: "Sessions revoked by logout."},
	{ID: efficio.MetricSessionReissued, Name: "efficio_session_reissued_total", Help: "Session tokens replaced."},
	{ID: efficio.MetricSessionsRevoked, Name: "efficio_sessions_revoked_total", Help: "Session keys removed by reissue or account deletion."},
	{ID: efficio.MetricAccountDeleted, Name: "efficio_account_deleted_total", Help: "Accounts deleted."},
	{ID: efficio.MetricUnauthorized, Name: "efficio_unauthorized_total", Help: "Requests presenting an unknown session token."},
	{ID: efficio.MetricInternalError, Name: "efficio_internal_error_total", Help: "Operations that failed with an internal error."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{
		ID:     efficio.MetricHashLatency,
		Name:   "efficio_hash_latency_seconds",
		Help:   "Argon2 hash latency including pool wait.",
		Bounds: efficio.HashLatencyBounds[:],
	},
}

// LeLabel renders the upper bound of bucket i in seconds, the way the
// Prometheus le label spells it. The bucket past the last bound is "+Inf".
func LeLabel(bounds []time.Duration, i int) string {
	if i >= len(bounds) {
		return "+Inf"
	}
	return Seconds(bounds[i])
}

// NameSuffix is [LeLabel] made safe for an instrument name: "0_025", "inf".
func NameSuffix(bounds []time.Duration, i int) string {
	if i >= len(bounds) {
		return "inf"
	}
	return strings.ReplaceAll(LeLabel(bounds, i), ".", "_")
}

// Seconds formats d as a decimal number of seconds.
func Seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'g', -1, 64)
}

// Cumulative returns one running total per bucket of bounds, plus +Inf.
// A histogram missing from the snapshot yields zeros, and counts past the
// bucket layout fold into +Inf.
func Cumulative(h efficio.HistogramSnapshot, bounds []time.Duration) []uint64 {
	out := make([]uint64, len(bounds)+1)
	last := len(out) - 1
	var running uint64
	for i, c := range h.Counts {
		running += c
		if i < last {
			out[i] = running
		}
	}
	for i := len(h.Counts); i < last; i++ {
		out[i] = running
	}
	out[last] = running
	return out
}
