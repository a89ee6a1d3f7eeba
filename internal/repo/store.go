// Package repo holds the MongoDB and Redis backed stores.
package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	Client *mongo.Client
	DB     *mongo.Database

	colUsers         *mongo.Collection
	colSessions      *mongo.Collection
	colEmails        *mongo.Collection
	colEvents        *mongo.Collection
	colTasks         *mongo.Collection
	colNotifications *mongo.Collection
}

func NewStore(ctx context.Context, uri, dbname string) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetRetryWrites(true).
		SetMaxPoolSize(50),
	)
	if err != nil {
		return nil, err
	}
	db := cli.Database(dbname)
	return &Store{
		Client:           cli,
		DB:               db,
		colUsers:         db.Collection("users"),
		colSessions:      db.Collection("sessions"),
		colEmails:        db.Collection("emails"),
		colEvents:        db.Collection("calendar_events"),
		colTasks:         db.Collection("tasks"),
		colNotifications: db.Collection("notifications"),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.colUsers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_google_id"),
		},
	})
	if err != nil {
		return err
	}

	_, err = s.colSessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_sid"),
		},
		{
			// TTL: mongo removes the record once expires_at passes
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expire"),
		},
	})
	if err != nil {
		return err
	}

	_, err = s.colEmails.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "received_at", Value: -1}},
			Options: options.Index().SetName("user_received_desc"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_user_message"),
		},
	})
	if err != nil {
		return err
	}

	if _, err = s.colEvents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "start_time", Value: 1}},
		Options: options.Index().SetName("user_start_asc"),
	}); err != nil {
		return err
	}
	if _, err = s.colTasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("user_created_desc"),
	}); err != nil {
		return err
	}
	_, err = s.colNotifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("user_created_desc"),
	})
	return err
}

func IsDup(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}
