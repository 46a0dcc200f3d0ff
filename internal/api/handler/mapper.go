package handler

import (
	"fmt"
	"time"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
)

const apiPrefix = "/api"

// privateView reports whether viewer may see private fields of target.
func privateView(viewer *domain.User, target *domain.User) bool {
	return viewer.IsStaff() || (target != nil && viewer != nil && viewer.ID == target.ID)
}

func toUserResponse(viewer, u *domain.User) userResponse {
	resp := userResponse{
		ID:       u.ID,
		Username: u.Username,
		Links: userLinks{
			Self:       fmt.Sprintf("%s/users/%d", apiPrefix, u.ID),
			Borrowings: fmt.Sprintf("%s/borrowings/for_user/%d", apiPrefix, u.ID),
		},
	}
	if privateView(viewer, u) {
		resp.Email = u.Email
		resp.Sciper = u.Sciper
		resp.Unit = u.Unit
		resp.Roles = u.Roles.Strings()
	}
	return resp
}

func toItemResponse(viewer *domain.User, it *domain.Item) itemResponse {
	resp := itemResponse{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Unit:        it.Unit,
		Quantity:    it.Quantity,
		ExpiryDate:  formatDate(it.ExpiryDate),
		Condition:   it.Condition,
		Remarks:     it.Remarks,
		Links: itemLinks{
			Self:       fmt.Sprintf("%s/items/%d", apiPrefix, it.ID),
			Borrowings: fmt.Sprintf("%s/borrowings/with_item/%d", apiPrefix, it.ID),
		},
	}
	if viewer != nil {
		resp.Links.Borrow = fmt.Sprintf("%s/borrowings/borrow/%d/%d", apiPrefix, it.ID, viewer.ID)
	}
	if viewer.IsStaff() {
		value, power, needsCleaning := it.Value, it.Power, it.NeedsCleaning
		resp.BoxName = it.BoxName
		resp.Location = it.Location
		resp.Value = &value
		resp.Power = &power
		resp.NeedsCleaning = &needsCleaning
		resp.AccessControlList = it.AccessControlList.Strings()
	}
	return resp
}

func toBorrowingResponse(b *domain.Borrowing) borrowingResponse {
	resp := borrowingResponse{
		ID:            b.ID,
		UserID:        b.UserID,
		ItemID:        b.ItemID,
		Timestamp:     b.CreatedAt.UTC(),
		BorrowingDate: b.BorrowingDate.Format(domain.DateLayout),
		ReturnDate:    b.ReturnDate.Format(domain.DateLayout),
		Quantity:      b.Quantity,
		Description:   b.Description,
		Remarks:       b.Remarks,
		Links: borrowingLinks{
			Self: fmt.Sprintf("%s/borrowings/%d", apiPrefix, b.ID),
		},
	}
	if b.UserID != nil {
		resp.Links.User = fmt.Sprintf("%s/users/%d", apiPrefix, *b.UserID)
	}
	if b.ItemID != nil {
		resp.Links.Item = fmt.Sprintf("%s/items/%d", apiPrefix, *b.ItemID)
	}
	return resp
}

func toListResponse[T, R any](page *ports.Page[T], mapFn func(T) R) listResponse[R] {
	data := make([]R, 0, len(page.Items))
	for _, item := range page.Items {
		data = append(data, mapFn(item))
	}
	return listResponse[R]{
		Data: data,
		Pagination: paginationResponse{
			Total:      page.Total,
			Page:       page.Page,
			PerPage:    page.Limit,
			TotalPages: page.TotalPages,
		},
	}
}

func toUpdateUserInput(req updateUserRequest) ports.UpdateUserInput {
	return ports.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Sciper:   req.Sciper,
		Unit:     req.Unit,
		Roles:    req.Roles,
	}
}

func toItemInput(req itemRequest) (ports.ItemInput, error) {
	in := ports.ItemInput{
		Name:              req.Name,
		Description:       req.Description,
		BoxName:           req.BoxName,
		Location:          req.Location,
		Unit:              req.Unit,
		Quantity:          req.Quantity,
		Power:             req.Power,
		Value:             req.Value,
		NeedsCleaning:     req.NeedsCleaning,
		Condition:         req.Condition,
		Remarks:           req.Remarks,
		AccessControlList: req.AccessControlList,
	}
	if req.ExpiryDate != nil {
		d, err := parseDate("expiry_date", *req.ExpiryDate)
		if err != nil {
			return ports.ItemInput{}, err
		}
		in.ExpiryDate = &d
	}
	return in, nil
}

func toBorrowInput(req borrowRequest) (ports.BorrowInput, error) {
	from, err := parseDate("borrowing_date", req.BorrowingDate)
	if err != nil {
		return ports.BorrowInput{}, err
	}
	to, err := parseDate("return_date", req.ReturnDate)
	if err != nil {
		return ports.BorrowInput{}, err
	}
	return ports.BorrowInput{
		BorrowingDate: from,
		ReturnDate:    to,
		Quantity:      *req.Quantity,
		Description:   req.Description,
		Remarks:       req.Remarks,
	}, nil
}

func parseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, domain.Errorf(domain.ErrInvalidArgument, "%s must be a date formatted as %s", field, domain.DateLayout)
	}
	return d, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}
