package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Column widths of the users table.
const (
	MaxUsernameLen = 80
	MaxEmailLen    = 120
	MaxMessageLen  = 4000

	// bcrypt ignores input beyond 72 bytes.
	MaxPasswordBytes = 72
)

func Email(v string) error {
	if v == "" {
		return model.NewValidationError(model.KindMissingField, "email", "email is required")
	}
	if len(v) > MaxEmailLen || !emailRx.MatchString(v) {
		return model.NewValidationError(model.KindInvalidFormat, "email", "invalid email")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return model.NewValidationError(model.KindMissingField, field, fmt.Sprintf("%s is required", field))
	}
	return nil
}

func MaxLen(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return model.NewValidationError(model.KindInvalidFormat, field, fmt.Sprintf("%s exceeds %d characters", field, limit))
	}
	return nil
}

// Password enforces length bounds only; any characters are allowed.
func Password(v string, minLen int) error {
	if err := NonEmpty("password", v); err != nil {
		return err
	}
	if utf8.RuneCountInString(v) < minLen {
		return model.NewValidationError(model.KindWeakPassword, "password",
			fmt.Sprintf("password must be at least %d characters", minLen))
	}
	if len(v) > MaxPasswordBytes {
		return model.NewValidationError(model.KindInvalidFormat, "password",
			fmt.Sprintf("password exceeds %d bytes", MaxPasswordBytes))
	}
	return nil
}

// -------- Request specific helpers ----------

// Signup expects trimmed username and email. Missing fields are reported
// before format and strength problems.
func Signup(username, email, password string, minPasswordLen int) error {
	if username == "" || email == "" || password == "" {
		return model.NewValidationError(model.KindMissingField, missingField(username, email, password), "all fields are required")
	}
	if err := MaxLen("username", username, MaxUsernameLen); err != nil {
		return err
	}
	if err := Email(email); err != nil {
		return err
	}
	return Password(password, minPasswordLen)
}

// Login expects a trimmed login (username or email).
func Login(login, password string) error {
	if login == "" || password == "" {
		field := "username"
		if login != "" {
			field = "password"
		}
		return model.NewValidationError(model.KindMissingField, field, "username and password are required")
	}
	return nil
}

// ChatMessage rejects empty or whitespace-only input.
func ChatMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return model.NewValidationError(model.KindEmptyInput, "message", "message cannot be empty")
	}
	return MaxLen("message", text, MaxMessageLen)
}

func missingField(username, email, password string) string {
	switch {
	case username == "":
		return "username"
	case email == "":
		return "email"
	default:
		return "password"
	}
}
