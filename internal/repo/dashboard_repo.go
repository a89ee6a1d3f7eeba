package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tazhibayda/syncora/internal/domain"
)

const listLimit = 50

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	out := make([]T, 0)
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, cur.Err()
}

func insertedID(res *mongo.InsertOneResult) primitive.ObjectID {
	if res == nil {
		return primitive.NilObjectID
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid
}

// emails

func (s *Store) ListEmails(ctx context.Context, userID primitive.ObjectID) ([]domain.Email, error) {
	cur, err := s.colEmails.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetLimit(listLimit).SetSort(bson.D{{Key: "received_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Email](ctx, cur)
}

func (s *Store) GetEmail(ctx context.Context, userID, id primitive.ObjectID) (*domain.Email, error) {
	var e domain.Email
	err := s.colEmails.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) CreateEmail(ctx context.Context, e *domain.Email) error {
	e.CreatedAt = time.Now().UTC()
	res, err := s.colEmails.InsertOne(ctx, e)
	if err != nil {
		if IsDup(err) {
			return domain.ErrConflict
		}
		return err
	}
	e.ID = insertedID(res)
	return nil
}

// UpdateEmailAnalysis stores the assistant output and returns the updated email.
func (s *Store) UpdateEmailAnalysis(ctx context.Context, userID, id primitive.ObjectID, summary string, meeting *domain.MeetingDetails) (*domain.Email, error) {
	set := bson.M{"summary": summary}
	update := bson.M{"$set": set}
	if meeting.Empty() {
		update["$unset"] = bson.M{"extracted_meeting": ""}
	} else {
		set["extracted_meeting"] = meeting
	}
	var e domain.Email
	err := s.colEmails.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": userID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// calendar

func (s *Store) ListEvents(ctx context.Context, userID primitive.ObjectID) ([]domain.CalendarEvent, error) {
	cur, err := s.colEvents.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetLimit(listLimit).SetSort(bson.D{{Key: "start_time", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.CalendarEvent](ctx, cur)
}

func (s *Store) CreateEvent(ctx context.Context, ev *domain.CalendarEvent) error {
	ev.CreatedAt = time.Now().UTC()
	res, err := s.colEvents.InsertOne(ctx, ev)
	if err != nil {
		return err
	}
	ev.ID = insertedID(res)
	return nil
}

// tasks

func (s *Store) ListTasks(ctx context.Context, userID primitive.ObjectID) ([]domain.Task, error) {
	cur, err := s.colTasks.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Task](ctx, cur)
}

func (s *Store) GetTask(ctx context.Context, userID, id primitive.ObjectID) (*domain.Task, error) {
	var t domain.Task
	err := s.colTasks.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *domain.Task) error {
	t.CreatedAt = time.Now().UTC()
	res, err := s.colTasks.InsertOne(ctx, t)
	if err != nil {
		return err
	}
	t.ID = insertedID(res)
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, userID, id primitive.ObjectID, p domain.TaskPatch) (*domain.Task, error) {
	set := bson.M{}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Priority != nil {
		set["priority"] = *p.Priority
	}
	if p.IsCompleted != nil {
		set["is_completed"] = *p.IsCompleted
	}
	if p.DueDate != nil {
		set["due_date"] = p.DueDate.UTC()
	}
	if len(set) == 0 {
		return s.GetTask(ctx, userID, id)
	}
	var t domain.Task
	err := s.colTasks.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) DeleteTask(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := s.colTasks.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// notifications

func (s *Store) ListNotifications(ctx context.Context, userID primitive.ObjectID) ([]domain.Notification, error) {
	cur, err := s.colNotifications.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetLimit(listLimit).SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Notification](ctx, cur)
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	n.CreatedAt = time.Now().UTC()
	res, err := s.colNotifications.InsertOne(ctx, n)
	if err != nil {
		return err
	}
	n.ID = insertedID(res)
	return nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := s.colNotifications.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
