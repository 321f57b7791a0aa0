package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/quizroom/core"
)

func newValidate() (*validator.Validate, func(validator.FieldError) string) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, func(fe validator.FieldError) string { return fe.Translate(translator) }
}

func TestPasswordPolicy(t *testing.T) {
	validate, translate := newValidate()

	commonPasswordsMu.Lock()
	commonPasswords = []string{"p@ssw0rd!a"}
	commonPasswordsMu.Unlock()
	defer func() {
		commonPasswordsMu.Lock()
		commonPasswords = nil
		commonPasswordsMu.Unlock()
	}()

	tests := []struct {
		name    string
		pwd     string
		wantTag string
		wantMsg string
	}{
		{name: "too short", pwd: "Sh0rt!", wantTag: pwdMinLenTag, wantMsg: pwdMinLenText},
		{name: "whitespace", pwd: "Has Space1!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678", wantTag: pwdNotAllNumTag, wantMsg: "password cannot be entirely numeric"},
		{name: "no uppercase", pwd: "lowercase1!", wantTag: pwdComplexityTag},
		{name: "no special", pwd: "NoSpecial123", wantTag: pwdComplexityTag},
		{name: "common", pwd: "P@ssw0rd!A", wantTag: pwdNoCommonTag, wantMsg: pwdNoCommonText},
		{name: "valid", pwd: "S3cure!Passw0rd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(ResetUserPassword{Token: "t", UID: "u", Password: tt.pwd, PasswordConfirm: tt.pwd})
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			if !assert.True(t, ok, "got %v", err) || !assert.Len(t, verrs, 1) {
				return
			}
			assert.Equal(t, "password", verrs[0].Field())
			assert.Equal(t, tt.wantTag, verrs[0].Tag())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, translate(verrs[0]))
			}
		})
	}
}

func TestPasswordPolicy_userAttributes(t *testing.T) {
	validate, _ := newValidate()

	nu := NewUser{
		FirstName:       "John",
		LastName:        "Smith",
		Username:        "johnsmith",
		Email:           "john@test.cd",
		Role:            RoleStudent,
		Password:        "Johnsmith1!",
		PasswordConfirm: "Johnsmith1!",
	}
	err := validate.Struct(nu)
	if verrs, ok := err.(validator.ValidationErrors); assert.True(t, ok, "got %v", err) && assert.Len(t, verrs, 1) {
		assert.Equal(t, pwdAttrSimTag, verrs[0].Tag())
	}

	nu.Password, nu.PasswordConfirm = "S3cure!Passw0rd", "S3cure!Passw0rd"
	assert.NoError(t, validate.Struct(nu))

	nu.Role = RoleAdmin
	err = validate.Struct(nu)
	if verrs, ok := err.(validator.ValidationErrors); assert.True(t, ok) && assert.Len(t, verrs, 1) {
		assert.Equal(t, "role", verrs[0].Field())
		assert.Equal(t, signupRoleTag, verrs[0].Tag())
	}
}

func TestUsernameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{email: "jane.doe@test.cd", want: "jane_doe"},
		{email: "JOHN+quiz@test.cd", want: "john_quiz"},
		{email: "@test.cd", want: "_test_cd"},
		{email: "averyveryveryverylongemailaddress@test.cd", want: "averyveryveryverylongemai"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, usernameFromEmail(tt.email))
		})
	}
}
