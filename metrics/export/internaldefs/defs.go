package internaldefs

import (
	authsession "github.com/MrEthical07/authsession"
)

// CounterDef names one authsession counter.
type CounterDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// HistogramDef names one authsession histogram.
type HistogramDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authsession.MetricSubmit, Name: "authsession_submit_total", Help: "Sign-in attempts that entered loading."},
	{ID: authsession.MetricFederatedSubmit, Name: "authsession_federated_submit_total", Help: "One-tap sign-in attempts that entered loading."},
	{ID: authsession.MetricSignInSuccess, Name: "authsession_signin_success_total", Help: "Attempts that reached authenticated."},
	{ID: authsession.MetricSignInFailure, Name: "authsession_signin_failure_total", Help: "Attempts rejected or failed by the provider."},
	{ID: authsession.MetricValidationRejected, Name: "authsession_validation_rejected_total", Help: "Submissions refused before contacting the provider."},
	{ID: authsession.MetricSubmitRejectedInFlight, Name: "authsession_submit_rejected_in_flight_total", Help: "Submissions ignored while an attempt was running."},
	{ID: authsession.MetricSubmitRejectedAuthenticated, Name: "authsession_submit_rejected_authenticated_total", Help: "Submissions ignored while signed in."},
	{ID: authsession.MetricThrottled, Name: "authsession_throttled_total", Help: "Attempts refused by the failed-attempt limiter."},
	{ID: authsession.MetricCancelled, Name: "authsession_cancelled_total", Help: "One-tap attempts dismissed by the user."},
	{ID: authsession.MetricProviderTimeout, Name: "authsession_provider_timeout_total", Help: "Provider calls that exceeded the timeout."},
	{ID: authsession.MetricProviderPanic, Name: "authsession_provider_panic_total", Help: "Provider calls that panicked."},
	{ID: authsession.MetricStaleCompletion, Name: "authsession_stale_completion_total", Help: "Provider results discarded after a reset."},
	{ID: authsession.MetricSessionRestored, Name: "authsession_session_restored_total", Help: "Sign-ins recovered from the session store."},
	{ID: authsession.MetricSessionSaveFailure, Name: "authsession_session_save_failure_total", Help: "Failed writes to the session store."},
	{ID: authsession.MetricReset, Name: "authsession_reset_total", Help: "Resets back to idle."},
	{ID: authsession.MetricSignOut, Name: "authsession_signout_total", Help: "Sign-outs."},
}

var HistogramDefs = []HistogramDef{
	{ID: authsession.MetricProviderLatency, Name: "authsession_provider_latency_seconds", Help: "Provider call latency."},
}

// UpperBounds are the finite bucket bounds in seconds; the last bucket is +Inf.
var UpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBoundSuffix names each bucket, including +Inf, for exporters that
// publish one instrument per bucket.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
