package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ UserRepo = (*MongoUserRepo)(nil)

// UserRepo defines the contract for user persistence.
type UserRepo interface {
	// FindPage retrieves one page of users with the given sort.
	FindPage(ctx context.Context, sortField string, ascending bool, skip, limit int64) ([]User, error)

	// CountAll returns the total number of stored users.
	CountAll(ctx context.Context) (int64, error)

	// FindByEmailOrUsername returns a user matching either field, or
	// (nil, nil) when none exists.
	FindByEmailOrUsername(ctx context.Context, email, username string) (*User, error)

	// Insert persists a new user. Fields are normalized and re-validated at
	// the write boundary; the unique indexes are the uniqueness backstop.
	Insert(ctx context.Context, params CreateUserParams) (*User, error)

	// UpdateByID applies the set fields and returns the post-update entity,
	// or (nil, nil) when the id does not exist.
	UpdateByID(ctx context.Context, id string, params UpdateUserParams) (*User, error)

	// DeleteByID removes a user and returns the deleted entity, or
	// (nil, nil) when the id does not exist.
	DeleteByID(ctx context.Context, id string) (*User, error)

	// CityAgeStats groups users by city with average/min/max age and count,
	// sorted by count descending, capped to the top 10 groups.
	CityAgeStats(ctx context.Context) ([]CityAgeStat, error)
}

// emailPattern matches the schema's email constraint at the write boundary.
var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

type MongoUserRepo struct {
	logger     *slog.Logger
	collection *mongo.Collection
}

func NewMongoUserRepo(db *mongo.Database, logger *slog.Logger) *MongoUserRepo {
	return &MongoUserRepo{
		logger:     logger,
		collection: db.Collection("users"),
	}
}

// EnsureIndexes creates the unique indexes on username and email. Uniqueness
// is enforced here, at the storage layer, so concurrent creates that pass the
// service-level pre-check still cannot produce duplicates.
func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepo) FindPage(ctx context.Context, sortField string, ascending bool, skip, limit int64) ([]User, error) {
	direction := -1
	if ascending {
		direction = 1
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: sortField, Value: direction}}).
		SetSkip(skip).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query users page: %w", err)
	}

	users := []User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users page: %w", err)
	}
	return users, nil
}

func (r *MongoUserRepo) CountAll(ctx context.Context) (int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

func (r *MongoUserRepo) FindByEmailOrUsername(ctx context.Context, email, username string) (*User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": strings.ToLower(email)},
		bson.M{"username": username},
	}}

	var found User
	err := r.collection.FindOne(ctx, filter).Decode(&found)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by email or username: %w", err)
	}
	return &found, nil
}

func (r *MongoUserRepo) Insert(ctx context.Context, params CreateUserParams) (*User, error) {
	doc, err := newUserDocument(params, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	r.logger.InfoContext(ctx, "User document inserted", slog.String("userID", doc.ID.Hex()))
	return &doc, nil
}

func (r *MongoUserRepo) UpdateByID(ctx context.Context, id string, params UpdateUserParams) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// A malformed id can never address a stored document.
		return nil, nil
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if params.Age != nil {
		set["age"] = *params.Age
	}
	if params.City != nil {
		set["city"] = strings.TrimSpace(*params.City)
	}

	// Write-time re-validation of the fields being set. The update path
	// bypasses the request validation layer, so this pass is load-bearing.
	var city *string
	if v, ok := set["city"].(string); ok {
		city = &v
	}
	if err := validateDocument("", "", params.Age, city); err != nil {
		return nil, err
	}

	var updated User
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &updated, nil
}

func (r *MongoUserRepo) DeleteByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var deleted User
	err = r.collection.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&deleted)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	return &deleted, nil
}

func (r *MongoUserRepo) CityAgeStats(ctx context.Context) ([]CityAgeStat, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$city"},
			{Key: "averageAge", Value: bson.D{{Key: "$avg", Value: "$age"}}},
			{Key: "minAge", Value: bson.D{{Key: "$min", Value: "$age"}}},
			{Key: "maxAge", Value: bson.D{{Key: "$max", Value: "$age"}}},
			{Key: "totalUsers", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "totalUsers", Value: -1}}}},
		bson.D{{Key: "$limit", Value: 10}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate city age stats: %w", err)
	}

	stats := []CityAgeStat{}
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode city age stats: %w", err)
	}
	return stats, nil
}

// newUserDocument normalizes the create payload into a storable document and
// runs the write-boundary schema pass on it.
func newUserDocument(params CreateUserParams, now time.Time) (User, error) {
	doc := User{
		Username:  strings.TrimSpace(params.Username),
		Email:     strings.ToLower(strings.TrimSpace(params.Email)),
		Age:       params.Age,
		City:      strings.TrimSpace(params.City),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Second, independent validation pass at the write boundary. The request
	// layer already validated the payload, but this path must hold on its own.
	if doc.Username == "" || doc.Email == "" {
		return User{}, fmt.Errorf("schema validation failed: username and email are required")
	}
	if err := validateDocument(doc.Username, doc.Email, &doc.Age, &doc.City); err != nil {
		return User{}, err
	}
	return doc, nil
}

// validateDocument enforces the schema constraints on the fields present.
// Empty username/email and nil age/city mean "not part of this write".
// Lengths are counted in characters, matching the request-time constraints.
func validateDocument(username, email string, age *int, city *string) error {
	if n := utf8.RuneCountInString(username); username != "" && (n < 3 || n > 50) {
		return fmt.Errorf("schema validation failed: username must be 3-50 characters")
	}
	if email != "" && !emailPattern.MatchString(email) {
		return fmt.Errorf("schema validation failed: invalid email %q", email)
	}
	if age != nil && (*age < 18 || *age > 120) {
		return fmt.Errorf("schema validation failed: age %d outside 18-120", *age)
	}
	if city != nil && *city == "" {
		return fmt.Errorf("schema validation failed: city must not be empty")
	}
	return nil
}
