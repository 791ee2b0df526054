package database

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"watchers/internal/models"
)

// MemoryStore keeps everything in process memory. It backs STORAGE_DRIVER=memory
// for local runs and doubles as a test double for the other packages.
type MemoryStore struct {
	mu       sync.Mutex
	sessions []models.VoiceSession
	profiles map[string]*models.UserProfile
	quits    map[string]*models.QuitLog
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*models.UserProfile),
		quits:    make(map[string]*models.QuitLog),
	}
}

func (m *MemoryStore) InsertSession(_ context.Context, session models.VoiceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return nil
}

// Sessions returns a copy of the stored sessions in insertion order.
func (m *MemoryStore) Sessions() []models.VoiceSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sessions)
}

func (m *MemoryStore) profile(userID string) *models.UserProfile {
	p, ok := m.profiles[userID]
	if !ok {
		p = &models.UserProfile{UserID: userID}
		m.profiles[userID] = p
	}
	return p
}

func (m *MemoryStore) IncrementVoiceSeconds(_ context.Context, userID, username string, seconds int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profile(userID)
	p.Username = username
	p.Durations.TotalSeconds += seconds
	return nil
}

func (m *MemoryStore) UpdateVoiceLog(_ context.Context, entry models.VoiceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profile(entry.UserID)
	if entry.Username != "" {
		p.Username = entry.Username
	}
	if !entry.JoinTime.IsZero() {
		p.JoinTime = entry.JoinTime
		p.LastActive = entry.JoinTime
	}
	if !entry.LeaveTime.IsZero() {
		p.LeaveTime = entry.LeaveTime
	}
	if entry.Channel != "" {
		p.Channel = entry.Channel
	}
	return nil
}

func (m *MemoryStore) AggregateSessions(_ context.Context, filter models.Filter, limit int) ([]models.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byUser := make(map[string]*models.LeaderboardEntry)
	for _, s := range m.sessions {
		if !models.Matches(filter, s) {
			continue
		}
		entry, ok := byUser[s.UserID]
		if !ok {
			entry = &models.LeaderboardEntry{UserID: s.UserID}
			byUser[s.UserID] = entry
		}
		entry.Username = s.Username
		entry.TotalSeconds += s.DurationSeconds
	}

	out := make([]models.LeaderboardEntry, 0, len(byUser))
	for _, entry := range byUser {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSeconds != out[j].TotalSeconds {
			return out[i].TotalSeconds > out[j].TotalSeconds
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) DeleteSessionsBefore(_ context.Context, date string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.sessions[:0]
	var deleted int64
	for _, s := range m.sessions {
		if s.KSTDate < date {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	m.sessions = kept
	return deleted, nil
}

func (m *MemoryStore) SaveJoinTime(_ context.Context, userID, username string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[userID]; ok {
		return nil
	}
	m.profiles[userID] = &models.UserProfile{UserID: userID, Username: username, JoinedAtServer: at}
	return nil
}

func (m *MemoryStore) SaveGrantedRole(_ context.Context, userID, username, role string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profile(userID)
	p.Username = username
	p.GrantedTime = at
	if !slices.Contains(p.GrantedRoles, role) {
		p.GrantedRoles = append(p.GrantedRoles, role)
	}
	return nil
}

func (m *MemoryStore) UpsertMemberInfo(_ context.Context, info models.MemberInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profile(info.UserID)
	p.Username = info.Username
	p.ServerNickname = info.ServerNickname
	p.JoinedAtServer = info.JoinedAtServer
	p.GrantedRoles = slices.Clone(info.Roles)
	return nil
}

func (m *MemoryStore) GetProfile(_ context.Context, userID string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.GrantedRoles = slices.Clone(p.GrantedRoles)
	return &cp, nil
}

func (m *MemoryStore) ListProfiles(_ context.Context) ([]models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.UserProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *MemoryStore) MoveToQuitLogs(_ context.Context, userID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return false, nil
	}
	times := 1
	if prev, ok := m.quits[userID]; ok {
		times = prev.Times + 1
	}
	m.quits[userID] = &models.QuitLog{UserProfile: *p, QuitTime: at, Times: times}
	delete(m.profiles, userID)
	return true, nil
}

func (m *MemoryStore) GetQuitLog(_ context.Context, userID string) (*models.QuitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quits[userID]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (m *MemoryStore) Close() error { return nil }
