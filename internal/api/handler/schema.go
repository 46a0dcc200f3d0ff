package handler

import (
	"encoding/json"
	"time"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// --- Tokens ---

type tokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// --- Users ---

// createUserRequest rejects any role field: role and roles are captured raw
// only to detect their presence.
type createUserRequest struct {
	Username string          `json:"username" validate:"required,max=64"`
	Email    string          `json:"email"    validate:"required,email,max=120"`
	Password string          `json:"password" validate:"required"`
	Sciper   int64           `json:"sciper"   validate:"required,gt=0"`
	Unit     string          `json:"unit"     validate:"max=64"`
	Role     json.RawMessage `json:"role,omitempty"  swaggerignore:"true"`
	Roles    json.RawMessage `json:"roles,omitempty" swaggerignore:"true"`
}

type updateUserRequest struct {
	Username *string   `json:"username" validate:"omitempty,max=64"`
	Email    *string   `json:"email"    validate:"omitempty,email,max=120"`
	Sciper   *int64    `json:"sciper"   validate:"omitempty,gt=0"`
	Unit     *string   `json:"unit"     validate:"omitempty,max=64"`
	Roles    *[]string `json:"roles"`
}

type userLinks struct {
	Self       string `json:"self"`
	Borrowings string `json:"borrowings"`
}

// userResponse is the public view; the private fields are filled only for
// the user itself and for staff.
type userResponse struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email,omitempty"`
	Sciper   int64     `json:"sciper,omitempty"`
	Unit     string    `json:"unit,omitempty"`
	Roles    []string  `json:"roles,omitempty"`
	Links    userLinks `json:"_links"`
}

// --- Items ---

// itemRequest serves create and update; absent fields are left unchanged.
type itemRequest struct {
	Name              *string   `json:"name"                validate:"omitempty,max=64"`
	Description       *string   `json:"description"         validate:"omitempty,max=256"`
	BoxName           *string   `json:"box_name"            validate:"omitempty,max=64"`
	Location          *string   `json:"location"            validate:"omitempty,max=64"`
	Unit              *string   `json:"unit"                validate:"omitempty,max=32"`
	Quantity          *int      `json:"quantity"`
	ExpiryDate        *string   `json:"expiry_date"         validate:"omitempty,datetime=2006-01-02"`
	Power             *int      `json:"power"`
	Value             *int      `json:"value"`
	NeedsCleaning     *bool     `json:"needs_cleaning"`
	Condition         *string   `json:"condition"           validate:"omitempty,max=64"`
	Remarks           *string   `json:"remarks"             validate:"omitempty,max=256"`
	AccessControlList *[]string `json:"access_control_list"`
}

type itemLinks struct {
	Self       string `json:"self"`
	Borrowings string `json:"borrowings"`
	Borrow     string `json:"borrow"`
}

// itemResponse is the public view; the private fields are filled only for
// staff.
type itemResponse struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Unit              string    `json:"unit"`
	Quantity          int       `json:"quantity"`
	ExpiryDate        string    `json:"expiry_date,omitempty"`
	Condition         string    `json:"condition"`
	Remarks           string    `json:"remarks"`
	BoxName           string    `json:"box_name,omitempty"`
	Location          string    `json:"location,omitempty"`
	Value             *int      `json:"value,omitempty"`
	Power             *int      `json:"power,omitempty"`
	NeedsCleaning     *bool     `json:"needs_cleaning,omitempty"`
	AccessControlList []string  `json:"access_control_list,omitempty"`
	Links             itemLinks `json:"_links"`
}

// --- Borrowings ---

type borrowRequest struct {
	BorrowingDate string `json:"borrowing_date"        validate:"required,datetime=2006-01-02"`
	ReturnDate    string `json:"return_date"           validate:"required,datetime=2006-01-02"`
	Quantity      *int   `json:"borrowed_quantity"     validate:"required"`
	Description   string `json:"borrowing_description"`
	Remarks       string `json:"remarks"`
}

type borrowingLinks struct {
	Self string `json:"self"`
	User string `json:"user,omitempty"`
	Item string `json:"item,omitempty"`
}

type borrowingResponse struct {
	ID            int64          `json:"id"`
	UserID        *int64         `json:"user_id"`
	ItemID        *int64         `json:"item_id"`
	Timestamp     time.Time      `json:"timestamp"`
	BorrowingDate string         `json:"borrowing_date"`
	ReturnDate    string         `json:"return_date"`
	Quantity      int            `json:"borrowed_quantity"`
	Description   string         `json:"borrowing_description"`
	Remarks       string         `json:"remarks"`
	Links         borrowingLinks `json:"_links"`
}

// --- Listing ---

type paginationResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

type listResponse[T any] struct {
	Data       []T                `json:"data"`
	Pagination paginationResponse `json:"pagination"`
}
