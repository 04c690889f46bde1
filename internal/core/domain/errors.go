package domain

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserExists            = errors.New("user already exists")
	ErrPostNotFound          = errors.New("post not found")
	ErrStreamNotFound        = errors.New("stream not found")
	ErrStreamNotLive         = errors.New("stream is not live")
	ErrConstellationNotFound = errors.New("constellation not found")
	ErrStaleRevision         = errors.New("stale constellation revision")
	ErrActionThrottled       = errors.New("action throttled")
	ErrUnknownAction         = errors.New("unknown action type")
	ErrNotAvatarOwner        = errors.New("avatar updates must come from the owning user")
	ErrNotStreamHost         = errors.New("only the host can end the stream")
)
