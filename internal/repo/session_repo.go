package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tazhibayda/syncora/internal/session"
)

type sessionDoc struct {
	SID       string            `bson:"sid"` // sha256 of the cookie id
	Values    map[string]string `bson:"values"`
	ExpiresAt time.Time         `bson:"expires_at"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

// LoadSession returns (nil, nil) for unknown ids and for records the TTL
// monitor has not reaped yet.
func (s *Store) LoadSession(ctx context.Context, id string) (*session.Record, error) {
	var d sessionDoc
	err := s.colSessions.FindOne(ctx, bson.M{
		"sid":        id,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session.Record{ID: d.SID, Values: d.Values, ExpiresAt: d.ExpiresAt}, nil
}

func (s *Store) SaveSession(ctx context.Context, rec session.Record) error {
	_, err := s.colSessions.UpdateOne(ctx,
		bson.M{"sid": rec.ID},
		bson.M{"$set": sessionDoc{
			SID:       rec.ID,
			Values:    rec.Values,
			ExpiresAt: rec.ExpiresAt,
			UpdatedAt: time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.colSessions.DeleteOne(ctx, bson.M{"sid": id})
	return err
}
