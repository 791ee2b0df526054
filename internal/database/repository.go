package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"watchers/internal/models"
)

// Repository implements Store on PostgreSQL
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Close closes the underlying connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertSession appends a closed voice session
func (r *Repository) InsertSession(ctx context.Context, s models.VoiceSession) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO voice_sessions (user_id, username, start_time, end_time, duration_seconds, kst_date, kst_year, kst_month, kst_week_of_month)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.UserID, s.Username, s.StartTime.UTC(), s.EndTime.UTC(), s.DurationSeconds, s.KSTDate, s.KSTYear, s.KSTMonth, s.KSTWeekOfMonth)
	if err != nil {
		return fmt.Errorf("failed to insert voice session: %w", err)
	}
	return nil
}

// IncrementVoiceSeconds adds seconds to the user's running total
func (r *Repository) IncrementVoiceSeconds(ctx context.Context, userID, username string, seconds int64) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO user_logs (user_id, username, total_seconds)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			total_seconds = user_logs.total_seconds + EXCLUDED.total_seconds`,
		userID, username, seconds)
	if err != nil {
		return fmt.Errorf("failed to add voice seconds: %w", err)
	}
	return nil
}

// UpdateVoiceLog stamps join/leave times and channel; zero fields keep their stored value
func (r *Repository) UpdateVoiceLog(ctx context.Context, entry models.VoiceLog) error {
	if entry.JoinTime.IsZero() && entry.LeaveTime.IsZero() && entry.Channel == "" && entry.Username == "" {
		return nil
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO user_logs (user_id, username, join_time, last_active, leave_time, channel)
		VALUES ($1, COALESCE($2, ''), $3, $3, $4, COALESCE($5, ''))
		ON CONFLICT (user_id) DO UPDATE SET
			username = COALESCE($2, user_logs.username),
			join_time = COALESCE($3, user_logs.join_time),
			last_active = COALESCE($3, user_logs.last_active),
			leave_time = COALESCE($4, user_logs.leave_time),
			channel = COALESCE($5, user_logs.channel)`,
		entry.UserID, nullString(entry.Username), nullTime(entry.JoinTime), nullTime(entry.LeaveTime), nullString(entry.Channel))
	if err != nil {
		return fmt.Errorf("failed to update voice log: %w", err)
	}
	return nil
}

// sessionWhere maps a filter to its WHERE clause and arguments.
func sessionWhere(filter models.Filter) (string, []any) {
	switch f := filter.(type) {
	case models.RangeFilter:
		return "kst_date >= $1 AND kst_date <= $2", []any{f.Start, f.End}
	case models.MonthFilter:
		return "kst_year = $1 AND kst_month = $2", []any{f.Year, f.Month}
	case models.MonthWeekFilter:
		return "kst_year = $1 AND kst_month = $2 AND kst_week_of_month = $3", []any{f.Year, f.Month, f.Week}
	default:
		panic(fmt.Sprintf("database: unknown filter %T", filter))
	}
}

// leaderboardQuery groups matching sessions per user. The username comes
// from the newest session (highest id).
func leaderboardQuery(filter models.Filter, limit int) (string, []any) {
	where, args := sessionWhere(filter)
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT user_id, (array_agg(username ORDER BY id DESC))[1], SUM(duration_seconds)::BIGINT
		FROM voice_sessions
		WHERE %s
		GROUP BY user_id
		ORDER BY 3 DESC, user_id ASC
		LIMIT $%d`, where, len(args))
	return query, args
}

// AggregateSessions ranks users by summed session time over filter
func (r *Repository) AggregateSessions(ctx context.Context, filter models.Filter, limit int) ([]models.LeaderboardEntry, error) {
	query, args := leaderboardQuery(filter, limit)
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate voice sessions: %w", err)
	}
	defer rows.Close()

	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.TotalSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard rows: %w", err)
	}
	return entries, nil
}

// DeleteSessionsBefore removes sessions dated before date
func (r *Repository) DeleteSessionsBefore(ctx context.Context, date string) (int64, error) {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM voice_sessions WHERE kst_date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old voice sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted voice sessions: %w", err)
	}
	return n, nil
}

// SaveJoinTime records when a member entered the server; an existing profile is left alone
func (r *Repository) SaveJoinTime(ctx context.Context, userID, username string, at time.Time) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO user_logs (user_id, username, joined_at_server)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, username, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to save join time: %w", err)
	}
	return nil
}

// SaveGrantedRole adds role to the member's granted roles
func (r *Repository) SaveGrantedRole(ctx context.Context, userID, username, role string, at time.Time) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO user_logs (user_id, username, granted_role, granted_time)
		VALUES ($1, $2, ARRAY[$3::TEXT], $4)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			granted_time = EXCLUDED.granted_time,
			granted_role = CASE
				WHEN $3 = ANY(user_logs.granted_role) THEN user_logs.granted_role
				ELSE array_append(user_logs.granted_role, $3::TEXT)
			END`,
		userID, username, role, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to save granted role: %w", err)
	}
	return nil
}

// UpsertMemberInfo overwrites the synced fields of a member profile
func (r *Repository) UpsertMemberInfo(ctx context.Context, info models.MemberInfo) error {
	roles := info.Roles
	if roles == nil {
		roles = []string{}
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO user_logs (user_id, username, server_nickname, joined_at_server, granted_role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			server_nickname = EXCLUDED.server_nickname,
			joined_at_server = COALESCE(EXCLUDED.joined_at_server, user_logs.joined_at_server),
			granted_role = EXCLUDED.granted_role`,
		info.UserID, info.Username, info.ServerNickname, nullTime(info.JoinedAtServer), pq.Array(roles))
	if err != nil {
		return fmt.Errorf("failed to sync member info: %w", err)
	}
	return nil
}

const profileColumns = `user_id, username, server_nickname, joined_at_server, granted_role, granted_time,
	join_time, leave_time, last_active, channel, total_seconds`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner, extra ...any) (*models.UserProfile, error) {
	var (
		p                                                    models.UserProfile
		joinedAt, grantedAt, joinTime, leaveTime, lastActive sql.NullTime
	)
	dest := []any{
		&p.UserID, &p.Username, &p.ServerNickname, &joinedAt, pq.Array(&p.GrantedRoles), &grantedAt,
		&joinTime, &leaveTime, &lastActive, &p.Channel, &p.Durations.TotalSeconds,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.JoinedAtServer = joinedAt.Time
	p.GrantedTime = grantedAt.Time
	p.JoinTime = joinTime.Time
	p.LeaveTime = leaveTime.Time
	p.LastActive = lastActive.Time
	return &p, nil
}

// GetProfile returns the member's profile, or nil if there is none
func (r *Repository) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_logs WHERE user_id = $1`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns every member profile
func (r *Repository) ListProfiles(ctx context.Context) ([]models.UserProfile, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT `+profileColumns+` FROM user_logs ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list user profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user profiles: %w", err)
	}
	return profiles, nil
}

// MoveToQuitLogs copies the profile into quit_logs, bumps the departure count and deletes the profile
func (r *Repository) MoveToQuitLogs(ctx context.Context, userID string, at time.Time) (bool, error) {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin quit log transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO quit_logs (`+profileColumns+`, quit_time, times)
		SELECT `+profileColumns+`, $2, 1 FROM user_logs WHERE user_id = $1
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			server_nickname = EXCLUDED.server_nickname,
			joined_at_server = EXCLUDED.joined_at_server,
			granted_role = EXCLUDED.granted_role,
			granted_time = EXCLUDED.granted_time,
			join_time = EXCLUDED.join_time,
			leave_time = EXCLUDED.leave_time,
			last_active = EXCLUDED.last_active,
			channel = EXCLUDED.channel,
			total_seconds = EXCLUDED.total_seconds,
			quit_time = EXCLUDED.quit_time,
			times = quit_logs.times + 1`,
		userID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to write quit log: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_logs WHERE user_id = $1`, userID); err != nil {
		return false, fmt.Errorf("failed to delete moved profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit quit log: %w", err)
	}
	return true, nil
}

// GetQuitLog returns the member's departure record, or nil if there is none
func (r *Repository) GetQuitLog(ctx context.Context, userID string) (*models.QuitLog, error) {
	var q models.QuitLog
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+profileColumns+`, quit_time, times FROM quit_logs WHERE user_id = $1`, userID)
	p, err := scanProfile(row, &q.QuitTime, &q.Times)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quit log: %w", err)
	}
	q.UserProfile = *p
	return &q, nil
}
