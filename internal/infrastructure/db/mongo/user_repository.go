package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

type userDocument struct {
	ID              int64      `bson:"_id"`
	Username        string     `bson:"username"`
	Email           string     `bson:"email"`
	Sciper          int64      `bson:"sciper"`
	Unit            string     `bson:"unit,omitempty"`
	PasswordHash    string     `bson:"password_hash"`
	Roles           []string   `bson:"roles"`
	Token           string     `bson:"token,omitempty"`
	TokenExpiration *time.Time `bson:"token_expiration,omitempty"`
	CreatedAt       time.Time  `bson:"created_at"`
}

func toUserDocument(u *domain.User) userDocument {
	return userDocument{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		Sciper:          u.Sciper,
		Unit:            u.Unit,
		PasswordHash:    u.PasswordHash,
		Roles:           u.Roles.Strings(),
		Token:           u.Token,
		TokenExpiration: u.TokenExpiration,
		CreatedAt:       u.CreatedAt.UTC(),
	}
}

// toDomain trusts stored roles; unknown values are dropped rather than failing reads.
func (d userDocument) toDomain() *domain.User {
	roles := make(domain.Roles, 0, len(d.Roles))
	for _, r := range d.Roles {
		if role := domain.Role(r); role.Valid() {
			roles = append(roles, role)
		}
	}
	var exp *time.Time
	if d.TokenExpiration != nil {
		t := d.TokenExpiration.UTC()
		exp = &t
	}
	return &domain.User{
		ID:              d.ID,
		Username:        d.Username,
		Email:           d.Email,
		Sciper:          d.Sciper,
		Unit:            d.Unit,
		PasswordHash:    d.PasswordHash,
		Roles:           roles,
		Token:           d.Token,
		TokenExpiration: exp,
		CreatedAt:       d.CreatedAt.UTC(),
	}
}

// UserRepository implements ports.UserRepository using MongoDB.
type UserRepository struct {
	db      *mongo.Database
	col     *mongo.Collection
	timeout time.Duration
}

// NewUserRepository creates a UserRepository. A non-positive timeout selects
// the package default.
func NewUserRepository(db *mongo.Database, timeout time.Duration) *UserRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &UserRepository{db: db, col: db.Collection(collectionUsers), timeout: timeout}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id, err := nextID(ctx, r.db, collectionUsers)
	if err != nil {
		return nil, err
	}
	doc := toUserDocument(user)
	doc.ID = id

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, writeError("insert user", err)
	}
	return doc.toDomain(), nil
}

// Update writes only the fields set in changes. A role write is conditional
// on the stored set still matching ExpectedRoles.
func (r *UserRepository) Update(ctx context.Context, id int64, changes ports.UserChanges) (*domain.User, error) {
	set := bson.M{}
	if changes.Username != nil {
		set["username"] = *changes.Username
	}
	if changes.Email != nil {
		set["email"] = *changes.Email
	}
	if changes.Sciper != nil {
		set["sciper"] = *changes.Sciper
	}
	if changes.Unit != nil {
		set["unit"] = *changes.Unit
	}
	filter := bson.M{"_id": id}
	if changes.Roles != nil {
		set["roles"] = changes.Roles.Strings()
		filter["roles"] = rolesFilter(changes.ExpectedRoles)
	}
	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc userDocument
	err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, writeError("update user", err)
	}
	if changes.Roles == nil {
		return nil, domain.ErrUserNotFound
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrUserNotFound
	}
	return nil, domain.Errorf(domain.ErrConflict, "roles of user %d changed concurrently", id)
}

// rolesFilter matches a stored role array holding exactly expected, in any
// order. $all never matches an empty list, so the empty set is spelled out.
func rolesFilter(expected domain.Roles) bson.M {
	if len(expected) == 0 {
		return bson.M{"$in": bson.A{nil, bson.A{}}}
	}
	return bson.M{"$size": len(expected), "$all": expected.Strings()}
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByToken matches the token string exactly, whether or not it expired.
func (r *UserRepository) FindByToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"token": token})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) List(ctx context.Context, page, limit int) ([]*domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	cur, err := r.col.Find(ctx, bson.M{}, paging(page, limit).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}

	users := make([]*domain.User, len(docs))
	for i := range docs {
		users[i] = docs[i].toDomain()
	}
	return users, total, nil
}

func (r *UserRepository) CountTokenCollisions(ctx context.Context, token string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{"token": token}, options.Count().SetLimit(1))
	if err != nil {
		return 0, fmt.Errorf("count token collisions: %w", err)
	}
	return n, nil
}

// SetToken swaps previous for token. A stored token other than previous means
// another writer got there first, and a token already held by another user
// fails the unique index; both surface as domain.ErrConflict.
func (r *UserRepository) SetToken(ctx context.Context, id int64, previous, token string, expiration time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, tokenFilter(id, previous), bson.M{"$set": bson.M{
		"token":            token,
		"token_expiration": expiration.UTC(),
	}})
	if err != nil {
		return writeError("set token", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return domain.Errorf(domain.ErrConflict, "token of user %d changed concurrently", id)
}

// tokenFilter matches user id while its stored token is still previous. An
// empty previous matches a missing token field.
func tokenFilter(id int64, previous string) bson.M {
	if previous == "" {
		return bson.M{"_id": id, "token": bson.M{"$in": bson.A{nil, ""}}}
	}
	return bson.M{"_id": id, "token": previous}
}

func (r *UserRepository) SetTokenExpiration(ctx context.Context, id int64, expiration time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"token_expiration": expiration.UTC()}})
	if err != nil {
		return fmt.Errorf("set token expiration: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ExpireAllTokens moves every still valid expiration to expiration in one
// UpdateMany.
func (r *UserRepository) ExpireAllTokens(ctx context.Context, now, expiration time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateMany(ctx,
		bson.M{
			"token":            bson.M{"$type": "string"},
			"token_expiration": bson.M{"$gt": now.UTC()},
		},
		bson.M{"$set": bson.M{"token_expiration": expiration.UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("expire tokens: %w", err)
	}
	return res.ModifiedCount, nil
}
