package datatypes

// SessionStatus is the lifecycle state of a copilot session.
//
// Transitions are active→stopped (explicit stop) or active→expired
// (heartbeat timeout); both are terminal and irreversible.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionStopped SessionStatus = "stopped"
	SessionExpired SessionStatus = "expired"
)

// IsTerminal reports whether the status permits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStopped || s == SessionExpired
}

// ExpiredReasonHeartbeat is stamped on sessions expired by the lazy
// heartbeat-timeout check.
const ExpiredReasonHeartbeat = "heartbeat_timeout"

// SessionMetadata carries consent and liveness bookkeeping for a session.
// All timestamps are Unix milliseconds UTC; zero means unset.
type SessionMetadata struct {
	Mode             string `json:"mode,omitempty"`
	ConsentStatus    string `json:"consent_status,omitempty"`
	ConsentGrantedAt int64  `json:"consent_granted_at,omitempty"`
	ConsentRevokedAt int64  `json:"consent_revoked_at,omitempty"`
	ConsentExpiresAt int64  `json:"consent_expires_at,omitempty"`
	LastHeartbeatAt  int64  `json:"last_heartbeat_at,omitempty"`
	ExpiredReason    string `json:"expired_reason,omitempty"`
}

// CopilotSession is one timed interview-copilot interaction scope.
type CopilotSession struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	Status          SessionStatus   `json:"status"`
	StartedAt       int64           `json:"started_at"`
	StoppedAt       int64           `json:"stopped_at,omitempty"`
	DurationSeconds int64           `json:"duration_seconds"`
	ConsumedMinutes int             `json:"consumed_minutes"`
	Metadata        SessionMetadata `json:"metadata"`
}

// LastActivityAt returns the heartbeat timestamp, falling back to the
// session start when no heartbeat was ever recorded.
func (s *CopilotSession) LastActivityAt() int64 {
	if s.Metadata.LastHeartbeatAt > 0 {
		return s.Metadata.LastHeartbeatAt
	}
	return s.StartedAt
}
