package internaldefs

import (
	"github.com/MrEthical07/forgeauth"
)

// CounterDef names one counter.
type CounterDef struct {
	ID   forgeauth.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram.
type HistogramDef struct {
	ID   forgeauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: forgeauth.MetricSignupSuccess, Name: "forgeauth_signup_success_total", Help: "Successful signups."},
	{ID: forgeauth.MetricSignupDuplicate, Name: "forgeauth_signup_duplicate_total", Help: "Signups rejected because the email is registered."},
	{ID: forgeauth.MetricLoginSuccess, Name: "forgeauth_login_success_total", Help: "Successful password logins."},
	{ID: forgeauth.MetricLoginFailure, Name: "forgeauth_login_failure_total", Help: "Failed password logins."},
	{ID: forgeauth.MetricLoginRateLimited, Name: "forgeauth_login_rate_limited_total", Help: "Logins refused by the rate limiter."},
	{ID: forgeauth.MetricLoginDisabled, Name: "forgeauth_login_disabled_total", Help: "Correct-password logins to disabled accounts."},
	{ID: forgeauth.MetricPasswordRehash, Name: "forgeauth_password_rehash_total", Help: "Password hashes upgraded on login."},
	{ID: forgeauth.MetricRefreshSuccess, Name: "forgeauth_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: forgeauth.MetricRefreshFailure, Name: "forgeauth_refresh_failure_total", Help: "Rejected refresh attempts other than reuse."},
	{ID: forgeauth.MetricRefreshReuseDetected, Name: "forgeauth_refresh_reuse_detected_total", Help: "Refresh token reuse detections."},
	{ID: forgeauth.MetricTokensRevoked, Name: "forgeauth_tokens_revoked_total", Help: "Refresh tokens revoked by reuse detection, password reset or deactivation."},
	{ID: forgeauth.MetricLogout, Name: "forgeauth_logout_total", Help: "Single-token logouts."},
	{ID: forgeauth.MetricLogoutAll, Name: "forgeauth_logout_all_total", Help: "Logout-all operations."},
	{ID: forgeauth.MetricPasswordResetRequest, Name: "forgeauth_password_reset_request_total", Help: "Password reset tokens issued."},
	{ID: forgeauth.MetricPasswordResetDeliveryFailure, Name: "forgeauth_password_reset_delivery_failure_total", Help: "Password reset mails that could not be sent."},
	{ID: forgeauth.MetricPasswordResetConfirmSuccess, Name: "forgeauth_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: forgeauth.MetricPasswordResetConfirmFailure, Name: "forgeauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: forgeauth.MetricOAuthLoginSuccess, Name: "forgeauth_oauth_login_success_total", Help: "Successful OAuth logins."},
	{ID: forgeauth.MetricOAuthLoginFailure, Name: "forgeauth_oauth_login_failure_total", Help: "Failed OAuth logins."},
	{ID: forgeauth.MetricOAuthStateInvalid, Name: "forgeauth_oauth_state_invalid_total", Help: "OAuth callbacks with a missing, expired or reused state."},
	{ID: forgeauth.MetricOAuthAccountCreated, Name: "forgeauth_oauth_account_created_total", Help: "Accounts created by OAuth login."},
	{ID: forgeauth.MetricOAuthAccountLinked, Name: "forgeauth_oauth_account_linked_total", Help: "Provider identities linked to existing accounts."},
	{ID: forgeauth.MetricAccountDisabled, Name: "forgeauth_account_disabled_total", Help: "Account deactivations."},
	{ID: forgeauth.MetricAccountEnabled, Name: "forgeauth_account_enabled_total", Help: "Account reactivations."},
	{ID: forgeauth.MetricStorageFailure, Name: "forgeauth_storage_failure_total", Help: "Operations failed by the store."},
	{ID: forgeauth.MetricAuditDropped, Name: "forgeauth_audit_dropped_total", Help: "Audit events discarded before reaching the sink."},
	{ID: forgeauth.MetricAuditSinkFailure, Name: "forgeauth_audit_sink_failure_total", Help: "Audit events the sink failed to record."},
}

var HistogramDefs = []HistogramDef{
	{ID: forgeauth.MetricLoginLatency, Name: "forgeauth_login_latency_seconds", Help: "Login latency."},
	{ID: forgeauth.MetricRefreshLatency, Name: "forgeauth_refresh_latency_seconds", Help: "Refresh latency."},
	{ID: forgeauth.MetricValidateLatency, Name: "forgeauth_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's fixed
// latency buckets.
var HistogramBounds = [forgeauth.HistogramBucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = [forgeauth.HistogramBucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling when a
// histogram was never observed.
func NormalizeBuckets(raw []uint64) [forgeauth.HistogramBucketCount]uint64 {
	var out [forgeauth.HistogramBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [forgeauth.HistogramBucketCount]uint64) [forgeauth.HistogramBucketCount]uint64 {
	var out [forgeauth.HistogramBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
