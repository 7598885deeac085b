package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// BucketCount is the number of histogram buckets, +Inf included.
const BucketCount = 8

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricLoginSuccess, Name: "goauthclient_login_success_total", Help: "Logins that persisted a credential pair."},
	{ID: goAuthClient.MetricLoginFailure, Name: "goauthclient_login_failure_total", Help: "Logins rejected by the server or not persisted."},
	{ID: goAuthClient.MetricLogout, Name: "goauthclient_logout_total", Help: "Logout calls."},
	{ID: goAuthClient.MetricRefreshStarted, Name: "goauthclient_refresh_started_total", Help: "Refresh flights that reached the refresh decision."},
	{ID: goAuthClient.MetricRefreshJoined, Name: "goauthclient_refresh_joined_total", Help: "Callers that joined an in-flight refresh."},
	{ID: goAuthClient.MetricRefreshSuccess, Name: "goauthclient_refresh_success_total", Help: "Refreshes that persisted and published a new pair."},
	{ID: goAuthClient.MetricRefreshFailure, Name: "goauthclient_refresh_failure_total", Help: "Refreshes that ended the session."},
	{ID: goAuthClient.MetricRefreshDiscarded, Name: "goauthclient_refresh_discarded_total", Help: "Refresh results discarded after logout or login."},
	{ID: goAuthClient.MetricRestoreAuthenticated, Name: "goauthclient_restore_authenticated_total", Help: "Restores that ended authenticated."},
	{ID: goAuthClient.MetricRestoreUnauthenticated, Name: "goauthclient_restore_unauthenticated_total", Help: "Restores that ended unauthenticated."},
	{ID: goAuthClient.MetricFreshTokenHit, Name: "goauthclient_fresh_token_hit_total", Help: "Access token requests served from memory."},
	{ID: goAuthClient.MetricStoreFailure, Name: "goauthclient_store_failure_total", Help: "Credential store operations that failed."},
	{ID: goAuthClient.MetricRegisterSuccess, Name: "goauthclient_register_success_total", Help: "Successful registrations."},
	{ID: goAuthClient.MetricRegisterFailure, Name: "goauthclient_register_failure_total", Help: "Failed registrations."},
}

// HistogramDefs lists every latency histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricLoginLatency, Name: "goauthclient_login_latency_seconds", Help: "Transport login latency."},
	{ID: goAuthClient.MetricRefreshLatency, Name: "goauthclient_refresh_latency_seconds", Help: "Transport refresh latency."},
}

// HistogramBounds are the upper bounds of the buckets in seconds, matching
// the millisecond buckets of the in-process histograms.
var HistogramBounds = [BucketCount]string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside a metric name.
var HistogramBoundSuffix = [BucketCount]string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// Cumulative converts raw per-bucket counts into cumulative counts. Missing
// trailing buckets count as zero and extra ones are ignored.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
