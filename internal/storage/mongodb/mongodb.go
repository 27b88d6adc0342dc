package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetauth/internal/domain/models"
	"budgetauth/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Storage struct {
	client   *mongo.Client
	database *mongo.Database
	users    *mongo.Collection
	counters *mongo.Collection
	tokens   *mongo.Collection
}

type userDoc struct {
	ID        int64     `bson:"_id"`
	Username  string    `bson:"username"`
	Email     string    `bson:"email"`
	PassHash  []byte    `bson:"pass_hash"`
	Currency  string    `bson:"currency"`
	CreatedAt time.Time `bson:"created_at"`
}

type counterDoc struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
}

type tokenDoc struct {
	AccessToken  string    `bson:"_id"`
	UserID       int64     `bson:"user_id"`
	RefreshToken string    `bson:"refresh_token"`
	Status       bool      `bson:"status"`
	CreatedAt    time.Time `bson:"created_at"`
}

// New creates a new MongoDB storage instance and sets up indexes.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	s := &Storage{
		client:   client,
		database: db,
		users:    db.Collection("users"),
		counters: db.Collection("counters"),
		tokens:   db.Collection("tokens"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}

	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	// users.email unique
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users.email index: %w", err)
	}

	// users.username unique
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users.username index: %w", err)
	}

	// tokens: _id is the access token, unique by construction; index status for sweeps.
	_, err = s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("tokens.status index: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// nextID atomically increments and returns the next ID for a given collection.
func (s *Storage) nextID(ctx context.Context, collectionName string) (int64, error) {
	filter := bson.D{{Key: "_id", Value: collectionName}}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "value", Value: int64(1)}}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter counterDoc
	err := s.counters.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

// SaveUser saves a new user and returns the generated user ID.
func (s *Storage) SaveUser(ctx context.Context, username, email string, passHash []byte, currency string) (int64, error) {
	const op = "storage.mongodb.SaveUser"

	id, err := s.nextID(ctx, "users")
	if err != nil {
		return 0, fmt.Errorf("%s: nextID: %w", op, err)
	}

	doc := userDoc{
		ID:        id,
		Username:  username,
		Email:     email,
		PassHash:  passHash,
		Currency:  currency,
		CreatedAt: time.Now(),
	}

	_, err = s.users.InsertOne(ctx, doc)
	if err != nil {
		if isDuplicateKeyError(err) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// User retrieves a user by email.
func (s *Storage) User(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.mongodb.User"
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}}, op)
}

// UserByID retrieves a user by ID.
func (s *Storage) UserByID(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.mongodb.UserByID"
	return s.findUser(ctx, bson.D{{Key: "_id", Value: userID}}, op)
}

func (s *Storage) findUser(ctx context.Context, filter bson.D, op string) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.User{
		ID:       doc.ID,
		Username: doc.Username,
		Email:    doc.Email,
		PassHash: doc.PassHash,
		Currency: doc.Currency,
	}, nil
}

// UpdateUser replaces the mutable profile fields of an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	const op = "storage.mongodb.UpdateUser"

	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: user.ID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "username", Value: user.Username},
			{Key: "email", Value: user.Email},
			{Key: "pass_hash", Value: user.PassHash},
			{Key: "currency", Value: user.Currency},
		}}},
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}

// DeleteUser removes a user document.
func (s *Storage) DeleteUser(ctx context.Context, userID int64) error {
	const op = "storage.mongodb.DeleteUser"

	res, err := s.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: userID}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}

// SaveToken stores a new active token pair keyed by the access token.
func (s *Storage) SaveToken(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	const op = "storage.mongodb.SaveToken"

	doc := tokenDoc{
		AccessToken:  accessToken,
		UserID:       userID,
		RefreshToken: refreshToken,
		Status:       true,
		CreatedAt:    time.Now(),
	}

	_, err := s.tokens.InsertOne(ctx, doc)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrTokenAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// InvalidateToken flips the unique active record matching user and access token.
func (s *Storage) InvalidateToken(ctx context.Context, userID int64, accessToken string) error {
	const op = "storage.mongodb.InvalidateToken"

	res, err := s.tokens.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: accessToken},
			{Key: "user_id", Value: userID},
			{Key: "status", Value: true},
		},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: false}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
	}
	return nil
}

// TokenByAccess retrieves a token record by its access token.
func (s *Storage) TokenByAccess(ctx context.Context, accessToken string) (*models.TokenRecord, error) {
	const op = "storage.mongodb.TokenByAccess"

	var doc tokenDoc
	err := s.tokens.FindOne(ctx, bson.D{{Key: "_id", Value: accessToken}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenRecord{
		UserID:       doc.UserID,
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
		Status:       doc.Status,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// SweepTokens invalidates active records older than maxAge, then purges every
// invalidated record. Two independent writes, same convergence guarantees as the
// sqlite backend.
func (s *Storage) SweepTokens(ctx context.Context, now time.Time, maxAge time.Duration) (models.SweepResult, error) {
	const op = "storage.mongodb.SweepTokens"
	var res models.SweepResult

	threshold := now.Add(-maxAge)
	upd, err := s.tokens.UpdateMany(ctx,
		bson.D{
			{Key: "status", Value: true},
			{Key: "created_at", Value: bson.D{{Key: "$lt", Value: threshold}}},
		},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: false}}}},
	)
	if err != nil {
		return res, fmt.Errorf("%s: invalidate: %w", op, err)
	}
	res.Invalidated = upd.ModifiedCount

	del, err := s.tokens.DeleteMany(ctx, bson.D{{Key: "status", Value: false}})
	if err != nil {
		return res, fmt.Errorf("%s: purge: %w", op, err)
	}
	res.Purged = del.DeletedCount

	return res, nil
}

// SeedUser inserts a user with a fixed ID if absent (for dev/test).
func (s *Storage) SeedUser(ctx context.Context, id int64, username, email string, passHash []byte) error {
	const op = "storage.mongodb.SeedUser"

	doc := userDoc{
		ID:        id,
		Username:  username,
		Email:     email,
		PassHash:  passHash,
		Currency:  "EUR",
		CreatedAt: time.Now(),
	}

	_, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil // Already exists, skip
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// isDuplicateKeyError checks if the error is a MongoDB duplicate key error (code 11000).
func isDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
