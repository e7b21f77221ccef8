package account

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the lifecycle status of an account
type AccountStatus string

const (
	// AccountStatusPending is a freshly registered, not yet activated account
	AccountStatusPending AccountStatus = "pending"
	// AccountStatusActive is an activated account that may log in
	AccountStatusActive AccountStatus = "active"
	// AccountStatusInactive is an account deactivated after activation
	AccountStatusInactive AccountStatus = "inactive"
	// AccountStatusLocked is an account locked out after repeated failed logins
	AccountStatusLocked AccountStatus = "locked"
)

// AccountRole is the account's role, carried as data only
type AccountRole = string

const (
	RoleCustomer         AccountRole = "customer"
	RoleTeller           AccountRole = "teller"
	RoleAccountExecutive AccountRole = "account_executive"
	RoleBranchManager    AccountRole = "branch_manager"
	RoleAdmin            AccountRole = "admin"
)

// SecurityQuestion is one of the closed set of recovery questions
type SecurityQuestion = string

const (
	QuestionMotherMaidenName SecurityQuestion = "What is the name of your mother?"
	QuestionChildhoodFriend  SecurityQuestion = "What is the name of your childhood friend?"
	QuestionFavoriteColor    SecurityQuestion = "What is your favorite color?"
	QuestionBirthCity        SecurityQuestion = "What is the name of the city you were born in?"
)

// Account is the account model
type Account struct {
	bun.BaseModel       `bun:"table:accounts,alias:acct"`
	ID                  uuid.UUID        `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email               string           `bun:"email,notnull,unique" json:"email,omitempty"`
	Username            string           `bun:"username,notnull,unique" json:"username,omitempty"`
	FirstName           string           `bun:"first_name,notnull" json:"first_name,omitempty"`
	MiddleName          string           `bun:"middle_name" json:"middle_name,omitempty"`
	LastName            string           `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone               string           `bun:"phone_number" json:"phone_number,omitempty"`
	IDNo                int64            `bun:"id_no,notnull,unique" json:"id_no,omitempty"`
	Role                AccountRole      `bun:"account_role,notnull" json:"account_role,omitempty"`
	SecurityQuestion    SecurityQuestion `bun:"security_question" json:"security_question,omitempty"`
	SecurityAnswer      string           `bun:"security_answer" json:"-"`
	PasswordHash        string           `bun:"password_hash" json:"-"`
	Status              AccountStatus    `bun:"account_status,notnull" json:"account_status,omitempty"`
	FailedLoginAttempts int              `bun:"failed_login_attempts" json:"failed_login_attempts,omitempty"`
	LastFailedLogin     *time.Time       `bun:"last_failed_login,nullzero" json:"last_failed_login,omitempty"`
	OTP                 string           `bun:"otp" json:"-"`
	OTPExpiryTime       *time.Time       `bun:"otp_expiry_time,nullzero" json:"otp_expiry_time,omitempty"`
	CreatedAt           *time.Time       `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time       `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus defaults the zero value to pending, the status every
// account starts its life in
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = AccountStatusPending
	}
}

// IsActive is a derived view of the status enum; there is no stored
// boolean that could drift out of sync with it
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// IsPending checks for the pending status
func (a *Account) IsPending() bool {
	return a.Status == AccountStatusPending
}

// IsLocked checks for the locked status
func (a *Account) IsLocked() bool {
	return a.Status == AccountStatusLocked
}

// HasOutstandingOTP reports whether a login challenge is in flight
func (a *Account) HasOutstandingOTP() bool {
	return a.OTP != ""
}

// FullName joins the name parts, skipping an empty middle name
func (a *Account) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.FirstName, a.MiddleName, a.LastName} {
		if p = titleWord(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func titleWord(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
