package model

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Roles, from most to least privileged.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleGuest = "guest"
)

var roleRank = map[string]int{RoleAdmin: 0, RoleUser: 1, RoleGuest: 2}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User is an account. The password hash is nil for accounts authenticated
// by an external provider.
type User struct {
	Base
	Username     string  `gorm:"type:varchar(255);not null;uniqueIndex:user_username_unique_ix" json:"username"`
	PasswordHash *string `gorm:"column:password;type:varchar(255)" json:"-"`
	Role         string  `gorm:"type:varchar(16);not null;default:'guest'" json:"role"`
	Fullname     string  `gorm:"type:varchar(255);not null;default:''" json:"fullname"`
	Email        *string `gorm:"type:varchar(255)" json:"email"`
	Language     string  `gorm:"type:varchar(8);not null;default:''" json:"lang"`
	Timezone     string  `gorm:"type:varchar(64);not null;default:''" json:"timezone"`
	MfaEnabled   bool    `gorm:"column:mfa;not null;default:false" json:"mfa"`
	Status       Status  `gorm:"type:varchar(16);not null;default:'enabled'" json:"status"`
	SearchIndex  string  `gorm:"column:search_string;type:text;not null" json:"-"`
}

// TableName specifies the table name for User.
func (User) TableName() string { return "user" }

// ModelName implements Entity.
func (User) ModelName() string { return "user" }

// Summary implements Auditable.
func (u *User) Summary() string {
	if u.Fullname != "" {
		return u.Fullname
	}
	return u.Username
}

// SearchString implements Auditable.
func (u *User) SearchString() string {
	parts := []string{u.Username, u.Fullname}
	if u.Email != nil {
		parts = append(parts, *u.Email)
	}
	return strings.Join(parts, " ")
}

// AuditAttributes implements Auditable. The password is tracked through
// a short fingerprint of the hash: a password change shows up in the
// change log without the hash itself ever leaving the row.
func (u *User) AuditAttributes() map[string]interface{} {
	return map[string]interface{}{
		"username": u.Username,
		"password": u.passwordFingerprint(),
		"role":     u.Role,
		"fullname": u.Fullname,
		"email":    strOrNil(u.Email),
		"lang":     u.Language,
		"timezone": u.Timezone,
		"mfa":      u.MfaEnabled,
		"status":   string(u.Status),
	}
}

func (u *User) passwordFingerprint() interface{} {
	if u.PasswordHash == nil || *u.PasswordHash == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(*u.PasswordHash))
	return hex.EncodeToString(sum[:4])
}

// Validate implements the pre-commit validation hook. Usernames are
// case insensitive and stored lowercase.
func (u *User) Validate() error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	if u.Username == "" {
		return NewValidationError("username", "username cannot be empty")
	}
	if _, ok := roleRank[u.Role]; !ok {
		return NewValidationError("role", "`%s` is not a valid role", u.Role)
	}
	if !u.Status.Valid() || u.Status == StatusDeleted {
		return NewValidationError("status", "invalid status")
	}
	if u.Email != nil && *u.Email != "" && !emailPattern.MatchString(*u.Email) {
		return NewValidationError("email", "`%s` does not appear to be a valid email address", *u.Email)
	}
	return nil
}

// SetPassword hashes and stores the clear text password.
func (u *User) SetPassword(clear string) error {
	if clear == "" {
		return NewValidationError("password", "password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(clear), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s := string(hash)
	u.PasswordHash = &s
	return nil
}

// CheckPassword verifies the clear text password against the stored hash.
// Always false when the account has no local password.
func (u *User) CheckPassword(clear string) bool {
	if u.PasswordHash == nil || *u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(clear)) == nil
}

// HasRole reports whether the user's role grants at least the given role.
func (u *User) HasRole(role string) bool {
	have, ok := roleRank[u.Role]
	if !ok {
		return false
	}
	want, ok := roleRank[role]
	if !ok {
		return false
	}
	return have <= want
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
