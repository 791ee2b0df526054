package voice

import (
	"context"
	"log/slog"
	"math"
	"time"

	"watchers/internal/clock"
	"watchers/internal/kst"
	"watchers/internal/logging"
	"watchers/internal/models"
)

// Store is the persistence the Recorder writes closed sessions to.
type Store interface {
	InsertSession(ctx context.Context, session models.VoiceSession) error
	IncrementVoiceSeconds(ctx context.Context, userID, username string, seconds int64) error
	UpdateVoiceLog(ctx context.Context, entry models.VoiceLog) error
}

// Event is one presence update for a user. Channel IDs are empty when
// the user is not in voice.
type Event struct {
	UserID           string
	Username         string
	BeforeChannel    string
	AfterChannel     string
	AfterChannelName string
}

// Outcome is what applying an Event did to the user's marker.
type Outcome struct {
	Transition Transition
	At         time.Time
	// Closed is the session ended by a leave or move, nil otherwise.
	Closed *models.VoiceSession
}

// Recorder tracks join markers and turns them into sessions.
//
// Apply must see a user's events in the order the gateway delivered them.
// Persist only writes and may run concurrently with later Applies.
type Recorder struct {
	store   Store
	markers MarkerStore
	clock   clock.Clock
	logger  *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(store Store, markers MarkerStore, clk clock.Clock, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, markers: markers, clock: clk, logger: logger}
}

// Handle applies ev and persists the result before returning.
func (r *Recorder) Handle(ctx context.Context, ev Event) Outcome {
	out := r.Apply(ctx, ev)
	r.Persist(ctx, ev, out)
	return out
}

// Apply updates the marker for ev's user and returns the closed session,
// if any. It performs no session writes.
func (r *Recorder) Apply(ctx context.Context, ev Event) Outcome {
	now := r.clock.Now().UTC()
	out := Outcome{Transition: Classify(ev.BeforeChannel, ev.AfterChannel), At: now}

	switch out.Transition {
	case Join:
		r.open(ctx, ev, now)
	case Move:
		out.Closed = r.close(ctx, ev, now)
		r.open(ctx, ev, now)
	case Leave:
		out.Closed = r.close(ctx, ev, now)
		if out.Closed != nil {
			if err := r.markers.Delete(ctx, ev.UserID); err != nil {
				r.logger.Error("failed to delete join marker", "user", ev.UserID, "err", err)
			}
		}
	case None:
	}
	return out
}

func (r *Recorder) open(ctx context.Context, ev Event, at time.Time) {
	if err := r.markers.Set(ctx, ev.UserID, at); err != nil {
		r.logger.Error("failed to set join marker", "user", ev.UserID, "err", err)
		return
	}
	r.logger.Info("voice join", "user", ev.Username, "user_id", ev.UserID, "channel", ev.AfterChannelName, "at", kst.Format(at))
}

func (r *Recorder) close(ctx context.Context, ev Event, at time.Time) *models.VoiceSession {
	start, ok, err := r.markers.Get(ctx, ev.UserID)
	if err != nil {
		r.logger.Error("failed to read join marker", "user", ev.UserID, "err", err)
		return nil
	}
	if !ok {
		// join happened before a restart, or was never delivered
		r.logger.Debug("leave without join marker", "user", ev.UserID)
		return nil
	}
	session := NewSession(ev.UserID, ev.Username, start, at)
	return &session
}

// Persist writes the session closed by out and stamps the user's voice
// log. Every write is attempted; failures are logged and dropped.
func (r *Recorder) Persist(ctx context.Context, ev Event, out Outcome) {
	logger := r.logger.With("log_id", logging.NewLogID(), "user", ev.Username, "user_id", ev.UserID)

	if s := out.Closed; s != nil {
		if err := r.store.InsertSession(ctx, *s); err != nil {
			logger.Error("voice session insert failed", "err", err)
		}
		if err := r.store.IncrementVoiceSeconds(ctx, s.UserID, s.Username, s.DurationSeconds); err != nil {
			logger.Error("voice duration update failed", "err", err)
		}
		logger.Info("voice session closed", "transition", out.Transition.String(), "seconds", s.DurationSeconds)
	}

	var entry models.VoiceLog
	switch out.Transition {
	case Join, Move:
		entry = models.VoiceLog{UserID: ev.UserID, Username: ev.Username, JoinTime: out.At, Channel: ev.AfterChannelName}
	case Leave:
		if out.Closed == nil {
			return
		}
		entry = models.VoiceLog{UserID: ev.UserID, Username: ev.Username, LeaveTime: out.At}
	case None:
		return
	}
	if err := r.store.UpdateVoiceLog(ctx, entry); err != nil {
		logger.Error("voice log update failed", "transition", out.Transition.String(), "err", err)
	}
}

// NewSession builds the session for a start/end pair. Duration is rounded
// to whole seconds and never negative; the KST keys come from end.
func NewSession(userID, username string, start, end time.Time) models.VoiceSession {
	seconds := int64(math.Round(end.Sub(start).Seconds()))
	if seconds < 0 {
		seconds = 0
	}
	local := kst.In(end)
	return models.VoiceSession{
		UserID:          userID,
		Username:        username,
		StartTime:       start.UTC(),
		EndTime:         end.UTC(),
		DurationSeconds: seconds,
		KSTDate:         local.Format(kst.DateLayout),
		KSTYear:         local.Year(),
		KSTMonth:        int(local.Month()),
		KSTWeekOfMonth:  kst.WeekOfMonth(local.Year(), local.Month(), local.Day()),
	}
}
