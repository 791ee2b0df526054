package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"watchers/internal/kst"
	"watchers/internal/models"
)

// Collection names, shared with earlier deployments of the bot.
const (
	userLogsCollection      = "userlogs"
	quitLogsCollection      = "quitlogs"
	voiceSessionsCollection = "voice_sessions"
)

// MongoStore persists to MongoDB.
type MongoStore struct {
	client   *mongo.Client
	userlogs *mongo.Collection
	quitlogs *mongo.Collection
	sessions *mongo.Collection
}

// NewMongo connects to uri, pings the primary and ensures indexes on the
// named database.
func NewMongo(ctx context.Context, uri, dbName string, logger *slog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	store := &MongoStore{
		client:   client,
		userlogs: db.Collection(userLogsCollection),
		quitlogs: db.Collection(quitLogsCollection),
		sessions: db.Collection(voiceSessionsCollection),
	}
	store.ensureIndexes(ctx, logger)
	return store, nil
}

// ensureIndexes creates the indexes the queries rely on. Old data may
// violate the unique user_id indexes; that is logged and tolerated.
func (s *MongoStore) ensureIndexes(ctx context.Context, logger *slog.Logger) {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.sessions, mongo.IndexModel{Keys: bson.D{{Key: "kst_date", Value: 1}}}},
		{s.sessions, mongo.IndexModel{Keys: bson.D{
			{Key: "kst_year", Value: 1},
			{Key: "kst_month", Value: 1},
			{Key: "kst_week_of_month", Value: 1},
		}}},
		{s.userlogs, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.quitlogs, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			logger.Warn("index creation failed (this might be expected)", "collection", idx.coll.Name(), "err", err)
		}
	}
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) InsertSession(ctx context.Context, session models.VoiceSession) error {
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to insert voice session: %w", err)
	}
	return nil
}

func (s *MongoStore) IncrementVoiceSeconds(ctx context.Context, userID, username string, seconds int64) error {
	update := bson.M{
		"$set": bson.M{"username": username},
		"$inc": bson.M{"durations.total_seconds": seconds},
	}
	if _, err := s.userlogs.UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to add voice seconds: %w", err)
	}
	return nil
}

// voiceLogFields is the $set document for entry, empty when there is
// nothing to write.
func voiceLogFields(entry models.VoiceLog) bson.M {
	fields := bson.M{}
	if !entry.JoinTime.IsZero() {
		fields["join_time"] = entry.JoinTime.UTC()
		fields["last_active"] = entry.JoinTime.UTC()
	}
	if !entry.LeaveTime.IsZero() {
		fields["leave_time"] = entry.LeaveTime.UTC()
	}
	if entry.Channel != "" {
		fields["channel"] = entry.Channel
	}
	if entry.Username != "" {
		fields["username"] = entry.Username
	}
	return fields
}

func (s *MongoStore) UpdateVoiceLog(ctx context.Context, entry models.VoiceLog) error {
	fields := voiceLogFields(entry)
	if len(fields) == 0 {
		return nil
	}
	if _, err := s.userlogs.UpdateOne(ctx, bson.M{"user_id": entry.UserID}, bson.M{"$set": fields}, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to update voice log: %w", err)
	}
	return nil
}

// sessionMatch maps a filter to its $match predicate.
func sessionMatch(filter models.Filter) bson.M {
	switch f := filter.(type) {
	case models.RangeFilter:
		return bson.M{"kst_date": bson.M{"$gte": f.Start, "$lte": f.End}}
	case models.MonthFilter:
		return bson.M{"kst_year": f.Year, "kst_month": f.Month}
	case models.MonthWeekFilter:
		return bson.M{"kst_year": f.Year, "kst_month": f.Month, "kst_week_of_month": f.Week}
	default:
		panic(fmt.Sprintf("database: unknown filter %T", filter))
	}
}

// leaderboardPipeline is match → group(sum) → sort → limit. Sessions are
// ordered by _id before grouping so $last picks the newest username.
func leaderboardPipeline(filter models.Filter, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: sessionMatch(filter)}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$user_id"},
			{Key: "username", Value: bson.D{{Key: "$last", Value: "$username"}}},
			{Key: "total_seconds", Value: bson.D{{Key: "$sum", Value: "$duration_seconds"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total_seconds", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}
}

func (s *MongoStore) AggregateSessions(ctx context.Context, filter models.Filter, limit int) ([]models.LeaderboardEntry, error) {
	cursor, err := s.sessions.Aggregate(ctx, leaderboardPipeline(filter, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate voice sessions: %w", err)
	}
	entries := []models.LeaderboardEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to read aggregation: %w", err)
	}
	return entries, nil
}

func (s *MongoStore) DeleteSessionsBefore(ctx context.Context, date string) (int64, error) {
	result, err := s.sessions.DeleteMany(ctx, bson.M{"kst_date": bson.M{"$lt": date}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old voice sessions: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *MongoStore) SaveJoinTime(ctx context.Context, userID, username string, at time.Time) error {
	doc := bson.M{"user_id": userID, "username": username, "joined_at_server": at.UTC()}
	if _, err := s.userlogs.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save join time: %w", err)
	}
	return nil
}

func (s *MongoStore) SaveGrantedRole(ctx context.Context, userID, username, role string, at time.Time) error {
	update := bson.M{
		"$set":      bson.M{"username": username, "granted_time": at.UTC()},
		"$addToSet": bson.M{"granted_role": role},
	}
	if _, err := s.userlogs.UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save granted role: %w", err)
	}
	return nil
}

func (s *MongoStore) UpsertMemberInfo(ctx context.Context, info models.MemberInfo) error {
	fields := bson.M{
		"username":        info.Username,
		"server_nickname": info.ServerNickname,
		"granted_role":    info.Roles,
	}
	if !info.JoinedAtServer.IsZero() {
		fields["joined_at_server"] = info.JoinedAtServer.UTC()
	}
	if _, err := s.userlogs.UpdateOne(ctx, bson.M{"user_id": info.UserID}, bson.M{"$set": fields}, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to sync member info: %w", err)
	}
	return nil
}

func (s *MongoStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var doc bson.M
	err := s.userlogs.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	profile := profileFromDoc(doc)
	return &profile, nil
}

func (s *MongoStore) ListProfiles(ctx context.Context) ([]models.UserProfile, error) {
	cursor, err := s.userlogs.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list user profiles: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read user profiles: %w", err)
	}
	profiles := make([]models.UserProfile, 0, len(docs))
	for _, doc := range docs {
		profiles = append(profiles, profileFromDoc(doc))
	}
	return profiles, nil
}

// quitLogUpdate builds the quitlogs upsert from a raw profile document.
func quitLogUpdate(profile bson.M, at time.Time) bson.M {
	fields := bson.M{}
	for k, v := range profile {
		switch k {
		case "_id", "user_id", "times":
			continue
		}
		fields[k] = v
	}
	fields["quit_time"] = at.UTC()
	return bson.M{"$set": fields, "$inc": bson.M{"times": 1}}
}

func (s *MongoStore) MoveToQuitLogs(ctx context.Context, userID string, at time.Time) (bool, error) {
	var profile bson.M
	err := s.userlogs.FindOne(ctx, bson.M{"user_id": userID}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read profile for quit log: %w", err)
	}

	if _, err := s.quitlogs.UpdateOne(ctx, bson.M{"user_id": userID}, quitLogUpdate(profile, at), options.Update().SetUpsert(true)); err != nil {
		return false, fmt.Errorf("failed to write quit log: %w", err)
	}
	if _, err := s.userlogs.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return true, fmt.Errorf("failed to delete moved profile: %w", err)
	}
	return true, nil
}

func (s *MongoStore) GetQuitLog(ctx context.Context, userID string) (*models.QuitLog, error) {
	var doc bson.M
	err := s.quitlogs.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quit log: %w", err)
	}
	return &models.QuitLog{
		UserProfile: profileFromDoc(doc),
		QuitTime:    docTime(doc["quit_time"]),
		Times:       int(docInt(doc["times"])),
	}, nil
}

// Profiles written by earlier versions of the bot hold timestamps as ISO
// strings, roles as a single string and durations as a number, a list
// or a sub-document. The doc* helpers read every one of those shapes.

func profileFromDoc(doc bson.M) models.UserProfile {
	return models.UserProfile{
		UserID:         docString(doc["user_id"]),
		Username:       docString(doc["username"]),
		ServerNickname: docString(doc["server_nickname"]),
		JoinedAtServer: docTime(doc["joined_at_server"]),
		GrantedRoles:   docStrings(doc["granted_role"]),
		GrantedTime:    docTime(doc["granted_time"]),
		JoinTime:       docTime(doc["join_time"]),
		LeaveTime:      docTime(doc["leave_time"]),
		LastActive:     docTime(doc["last_active"]),
		Channel:        docString(doc["channel"]),
		Durations:      models.VoiceDurations{TotalSeconds: docSeconds(doc["durations"])},
	}
}

func docString(v any) string {
	s, _ := v.(string)
	return s
}

func docTime(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case string:
		parsed, err := kst.ParseInstant(t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}

func docInt(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func docSeconds(v any) int64 {
	switch d := v.(type) {
	case bson.M:
		return docInt(d["total_seconds"])
	case bson.D:
		for _, e := range d {
			if e.Key == "total_seconds" {
				return docInt(e.Value)
			}
		}
		return 0
	case bson.A:
		var total int64
		for _, item := range d {
			total += docInt(item)
		}
		return total
	default:
		return docInt(v)
	}
}

func docStrings(v any) []string {
	switch r := v.(type) {
	case bson.A:
		out := make([]string, 0, len(r))
		for _, item := range r {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if r == "" {
			return nil
		}
		return []string{r}
	default:
		return nil
	}
}
