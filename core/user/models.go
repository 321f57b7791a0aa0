package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/quizroom/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	// SignupRoles are the roles a user may pick for themselves.
	SignupRoles = []string{RoleStudent, RoleTeacher}
	AllRoles    = []string{RoleAdmin, RoleTeacher, RoleStudent}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is an account along with its role profile.
// Role is empty for accounts created through an OAuth provider until the user picks one.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) HasUsablePassword() bool { return len(u.PasswordHash) > 0 }

func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) HasRole() bool   { return u.Role != "" }

// NewUser contains information needed to sign up.
type NewUser struct {
	FirstName       string `json:"first_name" validate:"required,max=30"`
	LastName        string `json:"last_name" validate:"required,max=30"`
	Username        string `json:"username" validate:"required,max=30,alphanum_"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"required,signuprole"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateProfile defines what information a user may change on their own account.
// Blank fields keep their current value.
type UpdateProfile struct {
	FirstName string `json:"first_name" validate:"max=30"`
	LastName  string `json:"last_name" validate:"max=30"`
	Username  string `json:"username" validate:"required,max=30,alphanum_"`
	Email     string `json:"email" validate:"required,email"`
}

func (up *UpdateProfile) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	fill := func(val, orig string, lower bool) string {
		if v := core.CleanString(val, lower); v != "" {
			return v
		}
		return orig
	}
	up.FirstName = fill(up.FirstName, origUsr.FirstName, false)
	up.LastName = fill(up.LastName, origUsr.LastName, false)
	up.Username = fill(up.Username, origUsr.Username, true)
	up.Email = fill(up.Email, origUsr.Email, true)

	if err := validate.Struct(up); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, up.Username, up.Email, origUsr.ID)
}

type ChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	usr User // checked against the password policy
}

func (cp *ChangePassword) Validate(usr User, validate *validator.Validate) error {
	cp.usr = usr
	if err := validate.Struct(cp); err != nil {
		return err
	}
	if err := usr.CheckPassword(cp.CurrentPassword); err != nil {
		return core.NewValidationError(
			ErrWrongPassword,
			core.FieldError{Field: "current_password", Error: ErrWrongPassword.Error()},
		)
	}
	return nil
}

// SetRole lets an account created without a role (OAuth sign up) pick one and set a password.
type SetRole struct {
	Role            string `json:"role" validate:"required,signuprole"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	usr User
}

func (sr *SetRole) Validate(usr User, validate *validator.Validate) error {
	if usr.HasRole() {
		return ErrRoleAlreadySet
	}
	sr.Role = core.CleanString(sr.Role, true /* lower */)
	sr.usr = usr
	return validate.Struct(sr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// OAuthProfile is the identity returned by an OAuth provider.
type OAuthProfile struct {
	Provider  string
	Email     string
	FirstName string
	LastName  string
}

type GetFilter struct {
	ID              string
	Email           string
	UsernameOrEmail string
}

type QueryFilter struct {
	Search   string   `query:"q"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
	Limit    int      `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OAuthProvider signs users in through a third party.
type OAuthProvider interface {
	Name() string
	AuthURL(state string) string
	// Profile exchanges the authorization code and fetches the user identity.
	Profile(ctx context.Context, code string) (OAuthProfile, error)
}
