package domain

import "time"

// Subscription tiers.
const (
	TierNoFree   = "NOFREE"
	TierFree     = "FREE"
	TierStandard = "STANDARD"
	TierPro      = "PRO"
)

// NotificationSettings are the per-user delivery switches stored as JSONB
// on users.notification_settings. Zero value means "defaults": power
// transitions enabled, warnings and schedules off.
type NotificationSettings struct {
	PowerOnEnabled  *bool `json:"power_on_enabled,omitempty"`
	PowerOffEnabled *bool `json:"power_off_enabled,omitempty"`
	WarningsEnabled bool  `json:"warnings_enabled,omitempty"`
	ScheduleEnabled bool  `json:"schedule_enabled,omitempty"`
}

// User is a notification recipient from the external directory (users
// table). Registration, referrals and payments live outside this service;
// only the fields the resolver and composer need are mapped.
type User struct {
	UserID    int64   `db:"user_id"` // Telegram id, PRIMARY KEY
	Username  *string `db:"username"`
	FirstName *string `db:"first_name"`

	SubscriptionTier string `db:"subscription_tier"`
	PrimaryQueueID   *int   `db:"primary_queue_id"`

	IsActive     bool `db:"is_active"`
	IsBotBlocked bool `db:"is_bot_blocked"`

	Settings NotificationSettings `db:"notification_settings"`

	CreatedAt time.Time `db:"created_at"`
}

// CanReceive reports whether the user's tier and settings admit a
// notification of the given kind. Unknown kinds are allowed.
func (u *User) CanReceive(kind string) bool {
	switch kind {
	case NotifyPowerOff:
		return u.Settings.PowerOffEnabled == nil || *u.Settings.PowerOffEnabled
	case NotifyPowerOn:
		return u.Settings.PowerOnEnabled == nil || *u.Settings.PowerOnEnabled
	case NotifyWarning:
		return u.Settings.WarningsEnabled &&
			(u.SubscriptionTier == TierStandard || u.SubscriptionTier == TierPro)
	case NotifySchedule:
		return u.Settings.ScheduleEnabled && u.SubscriptionTier == TierPro
	}
	return true
}
