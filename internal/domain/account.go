package domain

import "time"

// Default values for a freshly registered account.
const (
	InitialReputation = 0.5
)

// AuditStatus is the outcome recorded on an audit entry.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
	AuditUnusual AuditStatus = "unusual"
)

// NoDuration is the duration placeholder for events without a session.
const NoDuration = "-"

// AuditEntry is one account-visible event. Entries are never modified after
// they are created.
type AuditEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Action    string      `json:"action"`
	Status    AuditStatus `json:"status"`
	IP        string      `json:"ip"`
	Duration  string      `json:"duration"`
	Packets   string      `json:"packets"`
}

// FailedLoginSnapshot records the failed-login count cleared by a successful login.
type FailedLoginSnapshot struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Account is a registered identity with its credential, counters and
// audit history.
type Account struct {
	Username            string                `json:"username"`
	Password            string                `json:"-"`
	Email               string                `json:"email"`
	FailedLogins        int                   `json:"failed_logins"`
	LoginAttempts       int                   `json:"login_attempts"`
	Reputation          float64               `json:"reputation_score"`
	LastSession         *time.Time            `json:"last_session"`
	Logs                []AuditEntry          `json:"logs"`
	FailedLoginsHistory []FailedLoginSnapshot `json:"failed_logins_history,omitempty"`
}

// NewAccount returns an account in its registration state.
func NewAccount(username, email, password string) *Account {
	return &Account{
		Username:   username,
		Password:   password,
		Email:      email,
		Reputation: InitialReputation,
		Logs:       []AuditEntry{},
	}
}

// PrependLog adds an entry at the head of the audit log.
func (a *Account) PrependLog(e AuditEntry) {
	a.Logs = append([]AuditEntry{e}, a.Logs...)
}

// RecentLogs returns up to n of the most recent audit entries.
func (a *Account) RecentLogs(n int) []AuditEntry {
	if n > len(a.Logs) {
		n = len(a.Logs)
	}
	out := make([]AuditEntry, n)
	copy(out, a.Logs[:n])
	return out
}

// Clone returns a deep copy safe to hand out of the service lock.
func (a *Account) Clone() *Account {
	c := *a
	if a.LastSession != nil {
		t := *a.LastSession
		c.LastSession = &t
	}
	c.Logs = make([]AuditEntry, len(a.Logs))
	copy(c.Logs, a.Logs)
	if a.FailedLoginsHistory != nil {
		c.FailedLoginsHistory = make([]FailedLoginSnapshot, len(a.FailedLoginsHistory))
		copy(c.FailedLoginsHistory, a.FailedLoginsHistory)
	}
	return &c
}
