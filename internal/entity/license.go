package entity

type License struct {
	ID           string  `json:"id"`
	UnitCode     *string `json:"unit_code"`
	License      *string `json:"license"`
	Status       *string `json:"status"`
	Mac          *string `json:"mac"`
	IP           *string `json:"ip"`
	ActivedAt    *string `json:"actived_at"`
	ReactivedAt  *string `json:"reactived_at"`
	CreatedAt    *string `json:"created_at"`
	UpdatedAt    *string `json:"updated_at"`
	DeviceName   *string `json:"device_name"`
	ManagerName  *string `json:"manager_name"`
	Unit         *string `json:"unit"`
	Region       *int    `json:"region"`
	UID          *string `json:"uid"`
	TokenInfo    *string `json:"token_info"`
	TokenDomain  *string `json:"token_domain"`
	IsSend       *int    `json:"isSend"`
	SentAt       *string `json:"sent_at"`
	ResentAt     *string `json:"resent_at"`
	ReissueCount *int    `json:"reissue_count"`
}

// LicenseCreateRequest carries the fields the dashboard fills in; the unit
// falls back to the caller's selection when omitted.
type LicenseCreateRequest struct {
	UnitCode    string `json:"unit_code"`
	UID         string `json:"uid"`
	Mac         string `json:"mac"`
	IP          string `json:"ip"`
	DeviceName  string `json:"device_name"`
	ManagerName string `json:"manager_name"`
	Status      string `json:"status,omitempty"`
}

type LicensePatch struct {
	UnitCode    *string `json:"unit_code,omitempty"`
	Status      *string `json:"status,omitempty"`
	Mac         *string `json:"mac,omitempty"`
	IP          *string `json:"ip,omitempty"`
	DeviceName  *string `json:"device_name,omitempty"`
	ManagerName *string `json:"manager_name,omitempty"`
}

func (p LicensePatch) Empty() bool {
	return p.UnitCode == nil && p.Status == nil && p.Mac == nil && p.IP == nil && p.DeviceName == nil && p.ManagerName == nil
}
