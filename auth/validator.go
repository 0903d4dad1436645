package auth

import (
	"unicode"

	"github.com/go-playground/validator/v10"
	"talkify/errors"
)

var validate = validator.New()

type RegisterRequest struct {
	Username          string `validate:"required,min=3,max=32,alphanum"`
	Email             string `validate:"omitempty,email"`
	Password          string `validate:"required,min=12,max=72"`
	PreferredLanguage string `validate:"omitempty,bcp47_language_tag"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

// ProfileRequest covers the fields a profile update may touch; empty fields
// pass untouched through the omitempty rules.
type ProfileRequest struct {
	Email             string `validate:"omitempty,email"`
	PreferredLanguage string `validate:"omitempty,bcp47_language_tag"`
}

func ValidateProfile(req ProfileRequest) error {
	return validate.Struct(req)
}

func isPasswordComplex(s string) bool {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
