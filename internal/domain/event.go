package domain

import (
	"encoding/json"
	"time"
)

// EventTag names an authentication event reported to the detection service.
type EventTag string

const (
	EventLoginSuccess              EventTag = "LOGIN_SUCCESS"
	EventLoginSuccessAfterFailures EventTag = "LOGIN_SUCCESS_AFTER_FAILURES"
	EventLoginFailedWrongPassword  EventTag = "LOGIN_FAILED_WRONG_PASSWORD"
	EventLoginFailedUserNotFound   EventTag = "LOGIN_FAILED_USER_NOT_FOUND"
	EventLogout                    EventTag = "LOGOUT"
)

// UnknownUsername stands in for an empty username in telemetry.
const UnknownUsername = "UNKNOWN"

// SystemLogEntry is an operator-facing structured record. The JSON shape is
// the persisted format of the system log record.
type SystemLogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Action    EventTag        `json:"action"`
	Data      json.RawMessage `json:"data"`
	SessionID string          `json:"sessionId"`
}

// FeatureVector is the telemetry request body sent to the detection service.
type FeatureVector struct {
	Username          string   `json:"username"`
	Event             EventTag `json:"event"`
	FailedLogins      int      `json:"failed_logins"`
	TotalAttempts     int      `json:"total_attempts"`
	LoginAttempts     int      `json:"login_attempts"`
	ReputationScore   float64  `json:"reputation_score"`
	IsWorkingHours    bool     `json:"is_working_hours"`
	HourOfDay         int      `json:"hour_of_day"`
	DayOfWeek         int      `json:"day_of_week"`
	SessionDurationMS int64    `json:"session_duration_ms"`
	UserAgent         string   `json:"user_agent"`
	Timestamp         string   `json:"timestamp"`
}

// Verdict is the detection service's classification of one event.
type Verdict struct {
	IsAttacker      bool    `json:"is_attacker"`
	Confidence      float64 `json:"confidence"`
	RiskLevel       string  `json:"risk_level"`
	RiskProbability float64 `json:"risk_probability"`
}

// VerdictNotice is a verdict attributed to the event that produced it.
type VerdictNotice struct {
	Username   string    `json:"username"`
	Event      EventTag  `json:"event"`
	Verdict    Verdict   `json:"verdict"`
	ReceivedAt time.Time `json:"received_at"`
}

// ISOTimestamp formats t as an ISO-8601 UTC timestamp with milliseconds.
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
