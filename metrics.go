package forgeauth

import (
	internalmetrics "github.com/MrEthical07/forgeauth/internal/metrics"
)

// MetricID identifies one counter or latency histogram.
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of every metric.
type MetricsSnapshot = internalmetrics.Snapshot

// HistogramBucketCount is the number of latency buckets per histogram.
const HistogramBucketCount = internalmetrics.HistogramBucketCount

const (
	MetricSignupSuccess                = internalmetrics.MetricSignupSuccess
	MetricSignupDuplicate              = internalmetrics.MetricSignupDuplicate
	MetricLoginSuccess                 = internalmetrics.MetricLoginSuccess
	MetricLoginFailure                 = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited             = internalmetrics.MetricLoginRateLimited
	MetricLoginDisabled                = internalmetrics.MetricLoginDisabled
	MetricPasswordRehash               = internalmetrics.MetricPasswordRehash
	MetricRefreshSuccess               = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure               = internalmetrics.MetricRefreshFailure
	MetricRefreshReuseDetected         = internalmetrics.MetricRefreshReuseDetected
	MetricTokensRevoked                = internalmetrics.MetricTokensRevoked
	MetricLogout                       = internalmetrics.MetricLogout
	MetricLogoutAll                    = internalmetrics.MetricLogoutAll
	MetricPasswordResetRequest         = internalmetrics.MetricPasswordResetRequest
	MetricPasswordResetDeliveryFailure = internalmetrics.MetricPasswordResetDeliveryFailure
	MetricPasswordResetConfirmSuccess  = internalmetrics.MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure  = internalmetrics.MetricPasswordResetConfirmFailure
	MetricOAuthLoginSuccess            = internalmetrics.MetricOAuthLoginSuccess
	MetricOAuthLoginFailure            = internalmetrics.MetricOAuthLoginFailure
	MetricOAuthStateInvalid            = internalmetrics.MetricOAuthStateInvalid
	MetricOAuthAccountCreated          = internalmetrics.MetricOAuthAccountCreated
	MetricOAuthAccountLinked           = internalmetrics.MetricOAuthAccountLinked
	MetricAccountDisabled              = internalmetrics.MetricAccountDisabled
	MetricAccountEnabled               = internalmetrics.MetricAccountEnabled
	MetricStorageFailure               = internalmetrics.MetricStorageFailure
	MetricAuditDropped                 = internalmetrics.MetricAuditDropped
	MetricAuditSinkFailure             = internalmetrics.MetricAuditSinkFailure
	MetricLoginLatency                 = internalmetrics.MetricLoginLatency
	MetricRefreshLatency               = internalmetrics.MetricRefreshLatency
	MetricValidateLatency              = internalmetrics.MetricValidateLatency

	// MetricIDCount is one past the last MetricID.
	MetricIDCount = internalmetrics.MetricIDCount
)

// IsLatencyMetric reports whether id is a histogram rather than a counter.
func IsLatencyMetric(id MetricID) bool {
	return internalmetrics.IsLatency(id)
}
