package user

import (
	"context"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizroom/core"
)

const maxStudentSearchResults = 10

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrWrongPassword  = errors.New("current password is incorrect")
	ErrRoleAlreadySet = core.NewRequestError("role has already been set")
	ErrInvalidReset   = core.NewRequestError("invalid password reset link")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists if another user (not in excludedIDs) holds them.
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of names, username or email.
		QueryUsers(ctx context.Context, filter *QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error
		Signup(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error)
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error)
		SetRole(ctx context.Context, usr User, sr SetRole) (User, error)
		Delete(ctx context.Context, id string) error
		SearchStudents(ctx context.Context, search string) ([]User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		GetOrCreateFromOAuth(ctx context.Context, profile OAuthProfile) (usr User, created bool, err error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		events  core.EventPublisher
		tokens  tokenGenerator
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, events core.EventPublisher, conf *core.Config) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		events:  events,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedIDs...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Signup(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.events.Publish(ctx, core.EventUserSignedUp, signedUpEvent{UserID: usr.ID, Role: usr.Role})
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// GetByUsernameOrEmail looks a user up by email first, then by username.
func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	usr.FirstName = up.FirstName
	usr.LastName = up.LastName
	usr.Username = up.Username
	usr.Email = up.Email
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.SetPassword(cp.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetRole(ctx context.Context, usr User, sr SetRole) (User, error) {
	if usr.HasRole() {
		return User{}, ErrRoleAlreadySet
	}
	if err := usr.SetPassword(sr.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.Role = sr.Role
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUser(ctx, id)
}

// SearchStudents returns up to 10 active students matching `search`.
func (svc *service) SearchStudents(ctx context.Context, search string) ([]User, error) {
	filter := QueryFilter{Search: search}
	filter.Clean()
	if filter.Search == "" {
		return []User{}, nil
	}
	active := true
	filter.Roles = []string{RoleStudent}
	filter.IsActive = &active
	filter.Limit = maxStudentSearchResults
	return svc.repo.QueryUsers(ctx, &filter)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *service) sendPasswordResetMail(usr User) error {
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.FullName(),
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return ErrInvalidReset
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return ErrInvalidReset
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return ErrInvalidReset
		}
		return errors.Wrap(err, "verifying token")
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// GetOrCreateFromOAuth finds the account matching the provider email or creates one without role nor password.
func (svc *service) GetOrCreateFromOAuth(ctx context.Context, profile OAuthProfile) (User, bool, error) {
	email := core.CleanString(profile.Email, true /* lower */)
	if email == "" {
		return User{}, false, core.NewRequestError("the provider did not share an email address")
	}
	usr, err := svc.GetByEmail(ctx, email)
	if err == nil {
		return usr, false, nil
	}
	if !core.IsNotFound(err) {
		return User{}, false, errors.Wrap(err, "finding user by email")
	}

	uname, err := svc.availableUsername(ctx, email)
	if err != nil {
		return User{}, false, err
	}
	now := time.Now().UTC()
	usr, err = svc.repo.CreateUser(ctx, User{
		FirstName: core.CleanString(profile.FirstName),
		LastName:  core.CleanString(profile.LastName),
		Username:  uname,
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return User{}, false, errors.Wrap(err, "creating user")
	}
	return usr, true, nil
}

// availableUsername derives a free username from the local part of an email.
func (svc *service) availableUsername(ctx context.Context, email string) (string, error) {
	base := usernameFromEmail(email)
	uname := base
	for i := 1; i < 100; i++ {
		if _, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: uname}); core.IsNotFound(err) {
			return uname, nil
		} else if err != nil {
			return "", errors.Wrap(err, "finding user by username")
		}
		uname = base + "_" + strconv.Itoa(i)
	}
	return "", errors.New("could not generate a username")
}

var nonWordRegex = regexp.MustCompile(`\W+`)

func usernameFromEmail(email string) string {
	local := email
	if i := strings.Index(email, "@"); i > 0 {
		local = email[:i]
	}
	uname := nonWordRegex.ReplaceAllString(strings.ToLower(local), "_")
	if len(uname) > 25 {
		uname = uname[:25]
	}
	if uname == "" {
		uname = "user"
	}
	return uname
}

type signedUpEvent struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
