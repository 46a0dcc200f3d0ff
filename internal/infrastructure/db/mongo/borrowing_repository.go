package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

type borrowingDocument struct {
	ID            int64     `bson:"_id"`
	UserID        *int64    `bson:"user_id"`
	ItemID        *int64    `bson:"item_id"`
	CreatedAt     time.Time `bson:"created_at"`
	BorrowingDate time.Time `bson:"borrowing_date"`
	ReturnDate    time.Time `bson:"return_date"`
	Quantity      int       `bson:"borrowed_quantity"`
	Description   string    `bson:"borrowing_description"`
	Remarks       string    `bson:"remarks"`
}

func toBorrowingDocument(b *domain.Borrowing) borrowingDocument {
	return borrowingDocument{
		ID:            b.ID,
		UserID:        b.UserID,
		ItemID:        b.ItemID,
		CreatedAt:     b.CreatedAt.UTC(),
		BorrowingDate: b.BorrowingDate.UTC(),
		ReturnDate:    b.ReturnDate.UTC(),
		Quantity:      b.Quantity,
		Description:   b.Description,
		Remarks:       b.Remarks,
	}
}

func (d borrowingDocument) toDomain() *domain.Borrowing {
	return &domain.Borrowing{
		ID:            d.ID,
		UserID:        d.UserID,
		ItemID:        d.ItemID,
		CreatedAt:     d.CreatedAt.UTC(),
		BorrowingDate: d.BorrowingDate.UTC(),
		ReturnDate:    d.ReturnDate.UTC(),
		Quantity:      d.Quantity,
		Description:   d.Description,
		Remarks:       d.Remarks,
	}
}

func borrowingFilter(f ports.ListBorrowingsFilter) bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	if f.ItemID != nil {
		filter["item_id"] = *f.ItemID
	}
	return filter
}

// BorrowingRepository implements ports.BorrowingRepository using MongoDB.
// User and item references are plain numeric fields.
type BorrowingRepository struct {
	db      *mongo.Database
	col     *mongo.Collection
	timeout time.Duration
}

func NewBorrowingRepository(db *mongo.Database, timeout time.Duration) *BorrowingRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &BorrowingRepository{db: db, col: db.Collection(collectionBorrowings), timeout: timeout}
}

func (r *BorrowingRepository) Create(ctx context.Context, b *domain.Borrowing) (*domain.Borrowing, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id, err := nextID(ctx, r.db, collectionBorrowings)
	if err != nil {
		return nil, err
	}
	doc := toBorrowingDocument(b)
	doc.ID = id

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, writeError("insert borrowing", err)
	}
	return doc.toDomain(), nil
}

func (r *BorrowingRepository) FindByID(ctx context.Context, id int64) (*domain.Borrowing, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc borrowingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBorrowingNotFound
		}
		return nil, fmt.Errorf("find borrowing: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *BorrowingRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete borrowing: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrBorrowingNotFound
	}
	return nil
}

// List returns matching borrowings, newest first.
func (r *BorrowingRepository) List(ctx context.Context, f ports.ListBorrowingsFilter) ([]*domain.Borrowing, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := borrowingFilter(f)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count borrowings: %w", err)
	}

	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	cur, err := r.col.Find(ctx, filter, paging(f.Page, f.Limit).SetSort(sort))
	if err != nil {
		return nil, 0, fmt.Errorf("list borrowings: %w", err)
	}
	var docs []borrowingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode borrowings: %w", err)
	}

	out := make([]*domain.Borrowing, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, total, nil
}

// DetachUser nulls the borrower of every borrowing made by userID.
func (r *BorrowingRepository) DetachUser(ctx context.Context, userID int64) error {
	return r.detach(ctx, "user_id", userID)
}

// DetachItem nulls the item of every borrowing of itemID.
func (r *BorrowingRepository) DetachItem(ctx context.Context, itemID int64) error {
	return r.detach(ctx, "item_id", itemID)
}

func (r *BorrowingRepository) detach(ctx context.Context, field string, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.col.UpdateMany(ctx, bson.M{field: id}, bson.M{"$set": bson.M{field: nil}}); err != nil {
		return fmt.Errorf("detach %s: %w", field, err)
	}
	return nil
}
