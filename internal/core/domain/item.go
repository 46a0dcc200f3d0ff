package domain

import "time"

// Item is a physical object of the inventory.
type Item struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	BoxName       string     `json:"box_name,omitempty"`
	Location      string     `json:"location,omitempty"`
	Unit          string     `json:"unit,omitempty"`
	Quantity      int        `json:"quantity"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	Power         int        `json:"power,omitempty"`
	Value         int        `json:"value,omitempty"`
	NeedsCleaning bool       `json:"needs_cleaning"`
	Condition     string     `json:"condition,omitempty"`
	Remarks       string     `json:"remarks,omitempty"`
	// AccessControlList holds the roles a caller needs, all of them, to see
	// or borrow the item. Empty means public.
	AccessControlList Roles `json:"access_control_list"`
}

// IsPublic reports whether the item has no role requirement.
func (i *Item) IsPublic() bool { return len(i.AccessControlList) == 0 }
