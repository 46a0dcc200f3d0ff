package domain

import "time"

// DateLayout is the wire format of borrowing and return dates.
const DateLayout = "2006-01-02"

// Borrowing records that a user took a quantity of an item for a period.
// UserID and ItemID become nil when the referenced record is deleted; the
// borrowing itself is kept as history.
type Borrowing struct {
	ID            int64     `json:"id"`
	UserID        *int64    `json:"user_id"`
	ItemID        *int64    `json:"item_id"`
	CreatedAt     time.Time `json:"timestamp"`
	BorrowingDate time.Time `json:"borrowing_date"`
	ReturnDate    time.Time `json:"return_date"`
	Quantity      int       `json:"borrowed_quantity"`
	Description   string    `json:"borrowing_description"`
	Remarks       string    `json:"remarks"`
}

// BelongsTo reports whether the borrowing was made by userID.
func (b *Borrowing) BelongsTo(userID int64) bool {
	return b.UserID != nil && *b.UserID == userID
}

// DateOf truncates t to its calendar day, expressed as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
