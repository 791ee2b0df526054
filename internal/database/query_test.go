package database

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"watchers/internal/models"
)

func TestSessionWhere(t *testing.T) {
	tests := []struct {
		name      string
		filter    models.Filter
		wantWhere string
		wantArgs  []any
	}{
		{"range", models.RangeFilter{Start: "2025-06-01", End: "2025-06-08"}, "kst_date >= $1 AND kst_date <= $2", []any{"2025-06-01", "2025-06-08"}},
		{"month", models.MonthFilter{Year: 2025, Month: 6}, "kst_year = $1 AND kst_month = $2", []any{2025, 6}},
		{"week", models.MonthWeekFilter{Year: 2025, Month: 6, Week: 3}, "kst_year = $1 AND kst_month = $2 AND kst_week_of_month = $3", []any{2025, 6, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := sessionWhere(tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestLeaderboardQueryLimitPlaceholder(t *testing.T) {
	query, args := leaderboardQuery(models.MonthWeekFilter{Year: 2025, Month: 6, Week: 2}, 10)
	if !strings.Contains(query, "LIMIT $4") {
		t.Errorf("expected LIMIT $4 in query:\n%s", query)
	}
	if len(args) != 4 || args[3] != 10 {
		t.Errorf("args = %v", args)
	}
	if !strings.Contains(query, "ORDER BY 3 DESC, user_id ASC") {
		t.Errorf("expected total-then-user ordering:\n%s", query)
	}
}

func TestSessionMatch(t *testing.T) {
	got := sessionMatch(models.RangeFilter{Start: "2025-06-01", End: "2025-06-08"})
	want := bson.M{"kst_date": bson.M{"$gte": "2025-06-01", "$lte": "2025-06-08"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("range match = %v, want %v", got, want)
	}

	got = sessionMatch(models.MonthWeekFilter{Year: 2025, Month: 6, Week: 2})
	want = bson.M{"kst_year": 2025, "kst_month": 6, "kst_week_of_month": 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("week match = %v, want %v", got, want)
	}
}

func TestLeaderboardPipelineStages(t *testing.T) {
	pipeline := leaderboardPipeline(models.MonthFilter{Year: 2025, Month: 6}, 5)

	var stages []string
	for _, stage := range pipeline {
		stages = append(stages, stage[0].Key)
	}
	want := []string{"$match", "$sort", "$group", "$sort", "$limit"}
	if !reflect.DeepEqual(stages, want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	if limit := pipeline[4][0].Value; limit != int64(5) {
		t.Errorf("limit = %v (%T), want int64 5", limit, limit)
	}
}

func TestVoiceLogFields(t *testing.T) {
	at := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)

	if fields := voiceLogFields(models.VoiceLog{UserID: "u1"}); len(fields) != 0 {
		t.Errorf("expected no fields, got %v", fields)
	}

	fields := voiceLogFields(models.VoiceLog{UserID: "u1", JoinTime: at, Channel: "lobby"})
	if fields["join_time"] != at || fields["last_active"] != at || fields["channel"] != "lobby" {
		t.Errorf("join fields = %v", fields)
	}
	if _, ok := fields["leave_time"]; ok {
		t.Error("leave_time set on join")
	}

	fields = voiceLogFields(models.VoiceLog{UserID: "u1", LeaveTime: at})
	if fields["leave_time"] != at || len(fields) != 1 {
		t.Errorf("leave fields = %v", fields)
	}
}

func TestQuitLogUpdate(t *testing.T) {
	at := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	profile := bson.M{"_id": "oid", "user_id": "u1", "username": "user", "times": 3}

	update := quitLogUpdate(profile, at)
	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("missing $set: %v", update)
	}
	for _, key := range []string{"_id", "user_id", "times"} {
		if _, ok := set[key]; ok {
			t.Errorf("%s must not be copied", key)
		}
	}
	if set["username"] != "user" || set["quit_time"] != at {
		t.Errorf("$set = %v", set)
	}
	if inc, _ := update["$inc"].(bson.M); inc["times"] != 1 {
		t.Errorf("$inc = %v", update["$inc"])
	}
}

func TestProfileFromLegacyDoc(t *testing.T) {
	lastActive := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	doc := bson.M{
		"user_id":          "42",
		"username":         "target",
		"joined_at_server": "2025-01-01T00:00:00+00:00",
		"last_active":      primitive.NewDateTimeFromTime(lastActive),
		"leave_time":       "not a time",
		"granted_role":     "Member",
		"durations":        bson.A{int32(60), int64(30), 10.0},
	}

	p := profileFromDoc(doc)
	if p.UserID != "42" || p.Username != "target" {
		t.Errorf("identity = %q/%q", p.UserID, p.Username)
	}
	if !p.JoinedAtServer.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("joined_at_server = %v", p.JoinedAtServer)
	}
	if !p.LastActive.Equal(lastActive) {
		t.Errorf("last_active = %v", p.LastActive)
	}
	if !p.LeaveTime.IsZero() {
		t.Errorf("unparseable leave_time should be zero, got %v", p.LeaveTime)
	}
	if !reflect.DeepEqual(p.GrantedRoles, []string{"Member"}) {
		t.Errorf("granted_role = %v", p.GrantedRoles)
	}
	if p.Durations.TotalSeconds != 100 {
		t.Errorf("durations = %d, want 100", p.Durations.TotalSeconds)
	}
}

func TestDocSeconds(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"sub-document", bson.M{"total_seconds": int64(90)}, 90},
		{"ordered sub-document", bson.D{{Key: "total_seconds", Value: int32(45)}}, 45},
		{"number", int32(12), 12},
		{"list", bson.A{int32(1), int32(2)}, 3},
		{"missing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := docSeconds(tt.in); got != tt.want {
				t.Errorf("docSeconds = %d, want %d", got, tt.want)
			}
		})
	}
}
