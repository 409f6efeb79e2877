package entity

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEditor || r == RoleViewer
}

type User struct {
	Username  string    `json:"username" db:"username"`
	Password  *string   `json:"password,omitempty" db:"password"`
	Role      Role      `json:"role" db:"role"`
	UnitCode  string    `json:"unit_code" db:"unit_code"`
	Region    *Region   `json:"region" db:"region"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type UserPatch struct {
	Password *string `json:"password"`
	Role     *Role   `json:"role"`
	UnitCode *string `json:"unit_code"`
	Region   *Region `json:"region"`
}

type GetUsersParams struct {
	Q        *string
	Region   *Region
	UnitCode *string
	Page     *int
	Limit    *int
}
