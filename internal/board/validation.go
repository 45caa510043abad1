package board

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultNickname replaces a blank nickname.
	DefaultNickname = "anonymous"
	// MaxNicknameLength caps nicknames, in runes.
	MaxNicknameLength = 20
	// MaxContentLength caps post content, in runes.
	MaxContentLength = 1000
	// MaxImageBytes caps attached images.
	MaxImageBytes int64 = 5 * 1024 * 1024
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// AllowedImageTypes returns the accepted image media types
func AllowedImageTypes() []string {
	return []string{"image/jpeg", "image/png", "image/webp"}
}

// NormalizeNickname trims the nickname and falls back to DefaultNickname.
func NormalizeNickname(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultNickname, nil
	}
	if utf8.RuneCountInString(trimmed) > MaxNicknameLength {
		return "", NewValidationError(MsgNicknameTooLong)
	}
	return trimmed, nil
}

// NormalizeContent trims the content and enforces 1..MaxContentLength runes.
func NormalizeContent(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", NewValidationError(MsgEmptyContent)
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", NewValidationError(MsgContentTooLong)
	}
	return trimmed, nil
}

// ValidateImage checks an image's declared media type and byte size
// against the default limit.
func ValidateImage(mediaType string, size int64) error {
	return validateImage(mediaType, size, MaxImageBytes)
}

func validateImage(mediaType string, size, maxBytes int64) error {
	if !allowedImageTypes[normalizeMediaType(mediaType)] {
		return NewValidationError(MsgUnsupportedType)
	}
	if size > maxBytes {
		return NewValidationError(MsgImageTooLarge)
	}
	return nil
}

// normalizeMediaType drops parameters and lowercases "image/PNG; foo=bar".
func normalizeMediaType(mediaType string) string {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
