package internaldefs

import (
	goCred "github.com/MrEthical07/goCred"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goCred.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goCred.MetricID
	Name string
	Help string
}

// NotificationsDroppedName is the counter fed by Engine.NotificationsDropped.
const NotificationsDroppedName = "gocred_notifications_dropped_total"

// CounterDefs lists every engine counter in export order.
var CounterDefs = []CounterDef{
	{ID: goCred.MetricRegisterSuccess, Name: "gocred_register_success_total", Help: "Accounts created."},
	{ID: goCred.MetricRegisterDuplicate, Name: "gocred_register_duplicate_total", Help: "Registrations rejected because the handle is active."},
	{ID: goCred.MetricRegisterResend, Name: "gocred_register_resend_total", Help: "Registrations of pending handles that resent the verification link."},
	{ID: goCred.MetricLoginSuccess, Name: "gocred_login_success_total", Help: "Successful logins."},
	{ID: goCred.MetricLoginFailure, Name: "gocred_login_failure_total", Help: "Failed logins."},
	{ID: goCred.MetricLoginUnverified, Name: "gocred_login_unverified_total", Help: "Logins refused because the email is not verified."},
	{ID: goCred.MetricPasswordRehash, Name: "gocred_password_rehash_total", Help: "Password hashes upgraded at login."},
	{ID: goCred.MetricLogout, Name: "gocred_logout_total", Help: "Logout operations."},
	{ID: goCred.MetricAccessTokenIssued, Name: "gocred_access_token_issued_total", Help: "Access tokens issued."},
	{ID: goCred.MetricValidateSuccess, Name: "gocred_validate_success_total", Help: "Access tokens accepted."},
	{ID: goCred.MetricValidateFailure, Name: "gocred_validate_failure_total", Help: "Access tokens refused."},
	{ID: goCred.MetricValidateRevoked, Name: "gocred_validate_revoked_total", Help: "Access tokens refused as revoked."},
	{ID: goCred.MetricEmailVerificationSuccess, Name: "gocred_email_verification_success_total", Help: "Successful email verifications."},
	{ID: goCred.MetricEmailVerificationFailure, Name: "gocred_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: goCred.MetricPasswordResetRequest, Name: "gocred_password_reset_request_total", Help: "Password reset requests."},
	{ID: goCred.MetricPasswordResetConfirmSuccess, Name: "gocred_password_reset_confirm_success_total", Help: "Successful password resets."},
	{ID: goCred.MetricPasswordResetConfirmFailure, Name: "gocred_password_reset_confirm_failure_total", Help: "Failed password resets."},
	{ID: goCred.MetricPasswordChangeSuccess, Name: "gocred_password_change_success_total", Help: "Successful password changes."},
	{ID: goCred.MetricPasswordChangeFailure, Name: "gocred_password_change_failure_total", Help: "Failed password changes."},
	{ID: goCred.MetricNotificationSent, Name: "gocred_notification_sent_total", Help: "Notifications delivered."},
	{ID: goCred.MetricNotificationFailed, Name: "gocred_notification_failed_total", Help: "Notifications abandoned after all attempts."},
}

// HistogramDefs lists every engine histogram.
var HistogramDefs = []HistogramDef{
	{ID: goCred.MetricValidateLatency, Name: "gocred_validate_latency_seconds", Help: "ValidateAccess latency."},
}

// HistogramBounds are the le labels of the engine histogram buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the bucket bounds in metric-name-safe form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding missing buckets with zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals exporters publish.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
