package state

import (
	"strconv"
	"time"
)

// Target names the transition the next text message feeds.
type Target string

const (
	TargetAdminUserID      Target = "admin_user_id"
	TargetBalanceAmount    Target = "admin_balance_amount"
	TargetSupport          Target = "support"
	TargetReplyToQuery     Target = "reply_to_query"
	TargetAddAdminID       Target = "add_admin_id"
	TargetChannelID        Target = "admin_channel_id"
	TargetAddSocial        Target = "add_social"
	TargetEditTaskName     Target = "admin_edit_task_name"
	TargetEditTaskMessage  Target = "admin_edit_task_message"
	TargetEditTaskMediaURL Target = "admin_edit_task_mediaURL"
)

// Payload keys shared by the flows.
const (
	KeyUserID  = "user_id"
	KeyQueryID = "query_id"
	KeyTaskID  = "task_id"
)

// Payload carries auxiliary data a transition needs.
type Payload map[string]any

// Int64 returns the value under key as int64. Strings holding base-10
// integers are accepted.
func (p Payload) Int64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// String returns the value under key when it is a non-empty string.
func (p Payload) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok && s != ""
}

// Intent is the single live expectation for a user.
type Intent struct {
	UserID      int64
	Target      Target
	Payload     Payload
	BackCommand string
	CreatedAt   time.Time
}

// Store is the pending-intent registry.
type Store interface {
	// Set overwrites any existing intent for userID.
	Set(userID int64, target Target, payload Payload, back string)
	Get(userID int64) (Intent, bool)
	// Clear is a no-op when no intent exists.
	Clear(userID int64)
}
