package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// EmailRegex validates email format
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// UsernameRegex validates username format
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// IDRegex validates prefixed entity IDs
	IDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Email validates an email address.
func Email(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// Username validates a username.
func Username(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// Password validates a password.
func Password(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if len(password) > 128 {
		return fmt.Errorf("password is too long (max 128 characters)")
	}
	return nil
}

// PostBody validates the body of a post.
func PostBody(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("post body is required")
	}
	if utf8.RuneCountInString(body) > 2000 {
		return fmt.Errorf("post body is too long (max 2000 characters)")
	}
	return nil
}

// StreamTitle validates a stream title.
func StreamTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("stream title is required")
	}
	if utf8.RuneCountInString(title) > 140 {
		return fmt.Errorf("stream title is too long (max 140 characters)")
	}
	return nil
}

// ConstellationName validates a constellation name.
func ConstellationName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("constellation name is required")
	}
	if utf8.RuneCountInString(name) > 100 {
		return fmt.Errorf("constellation name is too long (max 100 characters)")
	}
	return nil
}

// EntityID validates a prefixed entity ID.
func EntityID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("id is too long (max 100 characters)")
	}
	if !IDRegex.MatchString(id) {
		return fmt.Errorf("invalid id format")
	}
	return nil
}
