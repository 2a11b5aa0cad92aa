package chat

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	errCredentialsRequired = errors.New("username and password are required")
	errCredentialsTooLong  = errors.New("username must be at most 64 characters and password at most 72")
	errUsernameWhitespace  = errors.New("username must not contain whitespace")
)

// validateCredentials checks a Register or Login request. Password strength
// is not checked.
func validateCredentials(req any) error {
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Tag() == "max" {
					return errCredentialsTooLong
				}
			}
		}
		return errCredentialsRequired
	}

	var username string
	switch r := req.(type) {
	case Register:
		username = r.Username
	case Login:
		username = r.Username
	}
	if strings.ContainsFunc(username, unicode.IsSpace) {
		return errUsernameWhitespace
	}
	return nil
}

func validRoomName(room string) bool {
	room = strings.TrimSpace(room)
	return room != "" && len(room) <= 64
}
