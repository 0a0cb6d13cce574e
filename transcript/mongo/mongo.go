// Package mongo provides a MongoDB-backed transcript store.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/transcript"
)

const (
	// ThreadsCollection holds one registry document per thread.
	ThreadsCollection = "user_threads"

	// TranscriptsCollection holds one document per thread with its
	// chat entries under "chats".
	TranscriptsCollection = "messages_thread"
)

// Store implements transcript.Store on MongoDB.
type Store struct {
	threads     *mongo.Collection
	transcripts *mongo.Collection
}

var _ transcript.Store = (*Store)(nil)

// NewStore creates a transcript store on the given database.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		threads:     db.Collection(ThreadsCollection),
		transcripts: db.Collection(TranscriptsCollection),
	}
}

type transcriptDoc struct {
	ThreadID string                 `bson:"thread_id"`
	UserID   string                 `bson:"user_id"`
	Chats    []transcript.ChatEntry `bson:"chats"`
}

// UpsertThread inserts or touches the registry entry, reporting whether the
// thread already existed.
func (s *Store) UpsertThread(ctx context.Context, th transcript.Thread) (bool, error) {
	now := time.Now()
	res, err := s.threads.UpdateOne(ctx,
		bson.M{"thread_id": th.ThreadID},
		bson.M{
			"$set": bson.M{"updated_at": now},
			"$setOnInsert": bson.M{
				"thread_id":  th.ThreadID,
				"user_id":    th.UserID,
				"email":      th.Email,
				"name":       th.Name,
				"created_at": now,
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return false, core.NewPersistenceError("upsert_thread", err)
	}
	return res.MatchedCount > 0, nil
}

// SetTitle stores the generated title for a thread.
func (s *Store) SetTitle(ctx context.Context, threadID, title string) error {
	_, err := s.threads.UpdateOne(ctx,
		bson.M{"thread_id": threadID},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now()}},
	)
	if err != nil {
		return core.NewPersistenceError("set_title", err)
	}
	return nil
}

// AppendTurn appends one chat entry to the thread's transcript document,
// creating the document on first write.
func (s *Store) AppendTurn(ctx context.Context, threadID, userID string, entry transcript.ChatEntry) error {
	_, err := s.transcripts.UpdateOne(ctx,
		bson.M{"thread_id": threadID},
		bson.M{
			"$push":        bson.M{"chats": entry},
			"$setOnInsert": bson.M{"thread_id": threadID, "user_id": userID},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return core.NewPersistenceError("append_turn", err)
	}
	return nil
}

// AttachFeedback sets feedback on the transcript entry matching messageID.
func (s *Store) AttachFeedback(ctx context.Context, threadID, messageID, feedback string) error {
	res, err := s.transcripts.UpdateOne(ctx,
		bson.M{"thread_id": threadID, "chats.id": messageID},
		bson.M{"$set": bson.M{"chats.$.feedback": feedback}},
	)
	if err != nil {
		return core.NewPersistenceError("attach_feedback", err)
	}
	if res.MatchedCount == 0 {
		return core.NewPersistenceError("attach_feedback", errors.New("transcript entry not found"))
	}
	return nil
}

// ListThreads returns the user's threads, most recently updated first.
func (s *Store) ListThreads(ctx context.Context, userID string) ([]transcript.Thread, error) {
	cur, err := s.threads.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, core.NewPersistenceError("list_threads", err)
	}
	defer cur.Close(ctx)

	var out []transcript.Thread
	if err := cur.All(ctx, &out); err != nil {
		return nil, core.NewPersistenceError("list_threads", err)
	}
	return out, nil
}

// GetTranscript returns the thread's chat entries in append order.
func (s *Store) GetTranscript(ctx context.Context, threadID string) ([]transcript.ChatEntry, error) {
	var doc transcriptDoc
	err := s.transcripts.FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewPersistenceError("get_transcript", err)
	}
	return doc.Chats, nil
}

// DeleteThread removes the registry entry and transcript together.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := s.threads.DeleteOne(ctx, bson.M{"thread_id": threadID}); err != nil {
		return core.NewPersistenceError("delete_thread", err)
	}
	if _, err := s.transcripts.DeleteOne(ctx, bson.M{"thread_id": threadID}); err != nil {
		return core.NewPersistenceError("delete_thread", err)
	}
	return nil
}
