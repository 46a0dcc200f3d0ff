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

type itemDocument struct {
	ID                int64      `bson:"_id"`
	Name              string     `bson:"name"`
	Description       string     `bson:"description,omitempty"`
	BoxName           string     `bson:"box_name,omitempty"`
	Location          string     `bson:"location,omitempty"`
	Unit              string     `bson:"unit,omitempty"`
	Quantity          int        `bson:"quantity"`
	ExpiryDate        *time.Time `bson:"expiry_date,omitempty"`
	Power             int        `bson:"power,omitempty"`
	Value             int        `bson:"value,omitempty"`
	NeedsCleaning     bool       `bson:"needs_cleaning"`
	Condition         string     `bson:"condition,omitempty"`
	Remarks           string     `bson:"remarks,omitempty"`
	AccessControlList []string   `bson:"access_control_list"`
}

func toItemDocument(i *domain.Item) itemDocument {
	return itemDocument{
		ID:                i.ID,
		Name:              i.Name,
		Description:       i.Description,
		BoxName:           i.BoxName,
		Location:          i.Location,
		Unit:              i.Unit,
		Quantity:          i.Quantity,
		ExpiryDate:        i.ExpiryDate,
		Power:             i.Power,
		Value:             i.Value,
		NeedsCleaning:     i.NeedsCleaning,
		Condition:         i.Condition,
		Remarks:           i.Remarks,
		AccessControlList: i.AccessControlList.Strings(),
	}
}

// toDomain keeps unknown ACL roles as-is so that an item guarded by a role
// this build does not know stays hidden from everyone.
func (d itemDocument) toDomain() *domain.Item {
	acl := make(domain.Roles, len(d.AccessControlList))
	for i, r := range d.AccessControlList {
		acl[i] = domain.Role(r)
	}
	var expiry *time.Time
	if d.ExpiryDate != nil {
		t := d.ExpiryDate.UTC()
		expiry = &t
	}
	return &domain.Item{
		ID:                d.ID,
		Name:              d.Name,
		Description:       d.Description,
		BoxName:           d.BoxName,
		Location:          d.Location,
		Unit:              d.Unit,
		Quantity:          d.Quantity,
		ExpiryDate:        expiry,
		Power:             d.Power,
		Value:             d.Value,
		NeedsCleaning:     d.NeedsCleaning,
		Condition:         d.Condition,
		Remarks:           d.Remarks,
		AccessControlList: acl,
	}
}

// visibleTo matches items whose ACL is a subset of roles: no ACL entry may
// lie outside the caller's roles.
func visibleTo(roles domain.Roles) bson.M {
	return bson.M{"access_control_list": bson.M{
		"$not": bson.M{"$elemMatch": bson.M{"$nin": roles.Strings()}},
	}}
}

// ItemRepository implements ports.ItemRepository using MongoDB.
type ItemRepository struct {
	db      *mongo.Database
	col     *mongo.Collection
	timeout time.Duration
}

func NewItemRepository(db *mongo.Database, timeout time.Duration) *ItemRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ItemRepository{db: db, col: db.Collection(collectionItems), timeout: timeout}
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id, err := nextID(ctx, r.db, collectionItems)
	if err != nil {
		return nil, err
	}
	doc := toItemDocument(item)
	doc.ID = id

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, writeError("insert item", err)
	}
	return doc.toDomain(), nil
}

func (r *ItemRepository) Update(ctx context.Context, item *domain.Item) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": item.ID}, toItemDocument(item))
	if err != nil {
		return writeError("update item", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *ItemRepository) FindByID(ctx context.Context, id int64) (*domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc itemDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ItemRepository) List(ctx context.Context, f ports.ListItemsFilter) ([]*domain.Item, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := visibleTo(f.VisibleTo)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	cur, err := r.col.Find(ctx, filter, paging(f.Page, f.Limit).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	var docs []itemDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode items: %w", err)
	}

	items := make([]*domain.Item, len(docs))
	for i := range docs {
		items[i] = docs[i].toDomain()
	}
	return items, total, nil
}
