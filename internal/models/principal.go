package models

// Principal is the authenticated caller as seen by the services layer.
type Principal struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
