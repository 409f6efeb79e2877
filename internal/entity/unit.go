package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Region is the geographic zone a unit belongs to.
type Region string

const (
	RegionNorth   Region = "bac"
	RegionCentral Region = "trung"
	RegionSouth   Region = "nam"
)

var ErrInvalidRegion = errors.New("invalid region")

// ParseRegion accepts the region name or its numeric code (1, 2, 3).
func ParseRegion(v string) (Region, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "bac", "1":
		return RegionNorth, nil
	case "trung", "2":
		return RegionCentral, nil
	case "nam", "3":
		return RegionSouth, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidRegion, v)
}

// Code returns the numeric form used by the remote API.
func (r Region) Code() int {
	switch r {
	case RegionNorth:
		return 1
	case RegionCentral:
		return 2
	case RegionSouth:
		return 3
	}

	return 0
}

func (r Region) Label() string {
	switch r {
	case RegionNorth:
		return "Miền Bắc"
	case RegionCentral:
		return "Miền Trung"
	case RegionSouth:
		return "Miền Nam"
	}

	return "-"
}

func (r Region) Valid() bool {
	return r.Code() != 0
}

// UnmarshalJSON accepts the region name or its numeric code. Values it does
// not recognize are kept as is and fail Valid.
func (r *Region) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var num json.Number
		if numErr := json.Unmarshal(data, &num); numErr != nil {
			return fmt.Errorf("%w: %s", ErrInvalidRegion, string(data))
		}
		raw = num.String()
	}

	if parsed, err := ParseRegion(raw); err == nil {
		*r = parsed
		return nil
	}

	*r = Region(strings.TrimSpace(raw))
	return nil
}

type Unit struct {
	UnitCode       string    `json:"unit_code" db:"unit_code"`
	ParentUnitCode *string   `json:"parent_unit_code" db:"parent_unit_code"`
	UnitName       string    `json:"unit_name" db:"unit_name"`
	FullName       string    `json:"full_name" db:"full_name"`
	Region         Region    `json:"region" db:"region"`
	Level          int       `json:"level" db:"level"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Parent returns the parent code, or "" when the unit has none.
func (u Unit) Parent() string {
	if u.ParentUnitCode == nil {
		return ""
	}

	return *u.ParentUnitCode
}

// NullableString tells an absent JSON key apart from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}

	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	n.Value = &v
	return nil
}

type UnitPatch struct {
	ParentUnitCode NullableString `json:"parent_unit_code"`
	UnitName       *string        `json:"unit_name"`
	FullName       *string        `json:"full_name"`
	Region         *Region        `json:"region"`
	Level          *int           `json:"level"`
}

type SelectionRequest struct {
	UnitCode           *string `json:"unit_code"`
	IncludeDescendants bool    `json:"include_descendants"`
}

type SelectionResponse struct {
	UnitCode           *string `json:"unit_code"`
	UnitName           string  `json:"unit_name,omitempty"`
	IncludeDescendants bool    `json:"include_descendants"`
}
