package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID generates a prefixed unique ID.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// GenerateUserID generates a unique user ID
func GenerateUserID() string {
	return GenerateID("user")
}

// GenerateSessionID generates a unique session ID
func GenerateSessionID() string {
	return GenerateID("session")
}

// GeneratePostID generates a unique post ID
func GeneratePostID() string {
	return GenerateID("post")
}

// GenerateStreamID generates a unique stream ID
func GenerateStreamID() string {
	return GenerateID("stream")
}

// GenerateActionID generates a unique action ID
func GenerateActionID() string {
	return GenerateID("action")
}

// GenerateConstellationID generates a unique constellation ID
func GenerateConstellationID() string {
	return GenerateID("constellation")
}

// GenerateInstanceID generates a unique relay instance ID
func GenerateInstanceID() string {
	return GenerateID("relay")
}
