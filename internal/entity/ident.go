package entity

// Ident is a device identity issued to a unit.
type Ident struct {
	ID          string  `json:"id"`
	UnitCode    *string `json:"unit_code"`
	License     *string `json:"license"`
	Status      string  `json:"status"`
	Mac         *string `json:"mac"`
	IP          *string `json:"ip"`
	ActivedAt   *string `json:"actived_at"`
	ReactivedAt *string `json:"reactived_at"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	DeviceName  *string `json:"device_name"`
	ManagerName *string `json:"manager_name"`
	Unit        *string `json:"unit"`
	Region      any     `json:"region"`
	UID         *string `json:"uid"`
	TokenInfo   *string `json:"token_info"`
	TokenDomain *string `json:"token_domain"`
	IsSend      int     `json:"isSend"`
	SentAt      *string `json:"sent_at"`
}

// PaginateRequest is the body accepted by the remote paginate endpoints.
type PaginateRequest struct {
	Filter string `json:"filter"`
	Page   int    `json:"page,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Sort   string `json:"sort,omitempty"`
}

type PaginateResponse[T any] struct {
	CountTotal int `json:"countTotal"`
	Items      []T `json:"items"`
}

// ListQuery is what the dashboard sends when it lists idents or licenses.
type ListQuery struct {
	Status             string `json:"status"`
	Q                  string `json:"q"`
	Page               int    `json:"page"`
	Limit              int    `json:"limit"`
	IncludeDescendants bool   `json:"include_descendants"`
}

// Offset derives the row offset from 1-based page and page size.
func (q ListQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}

	return (q.Page - 1) * q.Limit
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type IdentStats struct {
	FromCache bool       `json:"fromCache"`
	Data      []DayCount `json:"data"`
}

// IdentCreateRequest registers a device for a unit. The unit falls back to
// the caller's selection when omitted.
type IdentCreateRequest struct {
	UnitCode    string `json:"unit_code"`
	License     string `json:"license,omitempty"`
	UID         string `json:"uid,omitempty"`
	Mac         string `json:"mac"`
	IP          string `json:"ip"`
	DeviceName  string `json:"device_name"`
	ManagerName string `json:"manager_name,omitempty"`
}
