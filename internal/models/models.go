package models

import "time"

// VoiceSession is one closed join→leave interval. Sessions are append-only;
// the KST fields are derived from EndTime when the session is written.
type VoiceSession struct {
	UserID          string    `bson:"user_id" json:"user_id"`
	Username        string    `bson:"username" json:"username"`
	StartTime       time.Time `bson:"start_time" json:"start_time"`
	EndTime         time.Time `bson:"end_time" json:"end_time"`
	DurationSeconds int64     `bson:"duration_seconds" json:"duration_seconds"`
	KSTDate         string    `bson:"kst_date" json:"kst_date"`
	KSTYear         int       `bson:"kst_year" json:"kst_year"`
	KSTMonth        int       `bson:"kst_month" json:"kst_month"`
	KSTWeekOfMonth  int       `bson:"kst_week_of_month" json:"kst_week_of_month"`
}

// VoiceDurations is the running voice total kept on a profile.
type VoiceDurations struct {
	TotalSeconds int64 `bson:"total_seconds" json:"total_seconds"`
}

// UserProfile is the per-member document in userlogs.
type UserProfile struct {
	UserID         string         `bson:"user_id" json:"user_id"`
	Username       string         `bson:"username,omitempty" json:"username,omitempty"`
	ServerNickname string         `bson:"server_nickname,omitempty" json:"server_nickname,omitempty"`
	JoinedAtServer time.Time      `bson:"joined_at_server,omitempty" json:"joined_at_server,omitempty"`
	GrantedRoles   []string       `bson:"granted_role,omitempty" json:"granted_role,omitempty"`
	GrantedTime    time.Time      `bson:"granted_time,omitempty" json:"granted_time,omitempty"`
	JoinTime       time.Time      `bson:"join_time,omitempty" json:"join_time,omitempty"`
	LeaveTime      time.Time      `bson:"leave_time,omitempty" json:"leave_time,omitempty"`
	LastActive     time.Time      `bson:"last_active,omitempty" json:"last_active,omitempty"`
	Channel        string         `bson:"channel,omitempty" json:"channel,omitempty"`
	Durations      VoiceDurations `bson:"durations" json:"durations"`
}

// QuitLog is a departed member's last profile plus how often they left.
type QuitLog struct {
	UserProfile `bson:",inline"`
	QuitTime    time.Time `bson:"quit_time" json:"quit_time"`
	Times       int       `bson:"times" json:"times"`
}

// MemberInfo is what a server synchronization pass writes for each member.
type MemberInfo struct {
	UserID         string
	Username       string
	ServerNickname string
	JoinedAtServer time.Time
	Roles          []string
}

// VoiceLog is a presence stamp written on join, move and leave. Zero
// fields are left untouched.
type VoiceLog struct {
	UserID    string
	Username  string
	JoinTime  time.Time
	LeaveTime time.Time
	Channel   string
}

// LeaderboardEntry is one aggregated row: a user's summed session time.
type LeaderboardEntry struct {
	UserID       string `bson:"_id" json:"user_id"`
	Username     string `bson:"username" json:"username"`
	TotalSeconds int64  `bson:"total_seconds" json:"total_seconds"`
}
