package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/tazhibayda/syncora/internal/domain"
)

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, "mongo.user.find_by_email", bson.M{"email": email})
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return s.findUser(ctx, "mongo.user.find_by_id", bson.M{"_id": id})
}

func (s *Store) FindUserByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	if googleID == "" {
		return nil, nil
	}
	return s.findUser(ctx, "mongo.user.find_by_google_id", bson.M{"google_id": googleID})
}

func (s *Store) findUser(ctx context.Context, op string, filter bson.M) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, op)
	defer sp.Finish()

	var u domain.User
	err := s.colUsers.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.insert")
	defer sp.Finish()

	u.CreatedAt = time.Now().UTC()
	res, err := s.colUsers.InsertOne(ctx, u)
	if err != nil {
		if IsDup(err) {
			return domain.ErrConflict
		}
		sp.SetTag("error", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

// UpdateUser applies p in one UpdateOne. Empty string fields are unset so the
// sparse google_id index keeps working.
func (s *Store) UpdateUser(ctx context.Context, id primitive.ObjectID, p domain.UserPatch) error {
	if p.Empty() {
		return nil
	}
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.update", tracer.Tag("user_id", id.Hex()))
	defer sp.Finish()

	set, unset := bson.M{}, bson.M{}
	str := func(field string, v *string) {
		switch {
		case v == nil:
		case *v == "":
			unset[field] = ""
		default:
			set[field] = *v
		}
	}
	str("google_id", p.GoogleID)
	str("profile_picture", p.ProfilePicture)
	str("two_factor_secret", p.TwoFactorSecret)
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.TwoFactorEnabled != nil {
		set["two_factor_enabled"] = *p.TwoFactorEnabled
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	_, err := s.colUsers.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if IsDup(err) {
			return domain.ErrConflict
		}
		sp.SetTag("error", err)
	}
	return err
}
