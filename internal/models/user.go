package models

import (
	"net/mail"
	"strings"
	"time"
)

type Role string

const (
	RoleRequester Role = "requester"
	RoleHelper    Role = "helper"
	RoleAdmin     Role = "admin"
)

// ParseRole accepts the legacy "resident" spelling as an alias of requester.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "requester", "resident":
		return RoleRequester, true
	case "helper":
		return RoleHelper, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ContactInfo     string    `json:"contactInfo"`
	PasswordHash    string    `json:"-"`
	Role            Role      `json:"role"`
	IsApproved      bool      `json:"isApproved"`
	Location        string    `json:"location,omitempty"`
	FullAddress     string    `json:"fullAddress,omitempty"`
	AbstractAddress string    `json:"abstractAddress,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CanHelp reports whether the user may offer on or be assigned to requests.
func (u *User) CanHelp() bool {
	return u != nil && u.Role == RoleHelper && u.IsApproved
}

type RegisterRequest struct {
	Name            string `json:"name"`
	ContactInfo     string `json:"contactInfo"`
	Password        string `json:"password"`
	Role            string `json:"role"`
	Location        string `json:"location"`
	FullAddress     string `json:"fullAddress"`
	AbstractAddress string `json:"abstractAddress"`
}

type LoginRequest struct {
	ContactInfo string `json:"contactInfo"`
	Password    string `json:"password"`
}

type UpdateProfileRequest struct {
	Name            *string `json:"name"`
	ContactInfo     *string `json:"contactInfo"`
	Location        *string `json:"location"`
	FullAddress     *string `json:"fullAddress"`
	AbstractAddress *string `json:"abstractAddress"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

func (r *RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	name := strings.TrimSpace(r.Name)
	if name == "" {
		errors["name"] = "Name is required"
	} else if len(name) < 2 || len(name) > 255 {
		errors["name"] = "Name must be between 2 and 255 characters"
	}
	if strings.TrimSpace(r.ContactInfo) == "" {
		errors["contactInfo"] = "Contact info is required"
	} else if !isEmail(r.ContactInfo) {
		errors["contactInfo"] = "Contact info must be a valid email address"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if len(r.Password) < 6 {
		errors["password"] = "Password must be at least 6 characters"
	} else if len(r.Password) > MaxPasswordBytes {
		errors["password"] = "Password must be at most 72 bytes"
	}
	if r.Role != "" {
		if _, ok := ParseRole(r.Role); !ok {
			errors["role"] = "Role must be one of: requester, helper, admin"
		}
	}

	return errors
}

func (r *LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.ContactInfo) == "" {
		errors["contactInfo"] = "Contact info is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

func (r *UpdateProfileRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if len(name) < 2 || len(name) > 255 {
			errors["name"] = "Name must be between 2 and 255 characters"
		}
	}
	if r.ContactInfo != nil && !isEmail(*r.ContactInfo) {
		errors["contactInfo"] = "Contact info must be a valid email address"
	}
	if r.Location != nil && strings.TrimSpace(*r.Location) == "" {
		errors["location"] = "Location cannot be empty"
	}
	if r.Name == nil && r.ContactInfo == nil && r.Location == nil && r.FullAddress == nil && r.AbstractAddress == nil {
		errors["body"] = "No valid fields to update"
	}

	return errors
}

func isEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Address == strings.TrimSpace(s)
}
