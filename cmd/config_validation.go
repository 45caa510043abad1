package cmd

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/internal/board/storage"
	"github.com/Laisky/sparkboard/internal/library/llm"
)

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
// It returns an error when any configured value is malformed or violates constraints.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.S.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
// It accepts a value getter and returns nil when all configured values are valid.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validateBoardConfig(get, &validationErrs)
	validateStorageConfig(get, &validationErrs)
	validateLLMConfig(get, &validationErrs)
	validateArchiveConfig(get, &validationErrs)
	validateTelegramConfig(get, &validationErrs)
	validateWebConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

// validateBoardConfig validates the board limits and storage keys.
func validateBoardConfig(get configGetter, errs *[]string) {
	validateOptionalStorageKey(get, "settings.board.posts_key", errs)
	validateOptionalStorageKey(get, "settings.board.rate_limit_key", errs)
	validateOptionalInt64Min(get, "settings.board.cooldown_ms", 0, errs)
	validateOptionalInt64Min(get, "settings.board.max_image_bytes", 1, errs)
	validateOptionalIntMin(get, "settings.board.summary_posts", 1, errs)

	postsKey, _ := parseStrictString(get("settings.board.posts_key"))
	rateKey, _ := parseStrictString(get("settings.board.rate_limit_key"))
	if postsKey != "" && strings.TrimSpace(postsKey) == strings.TrimSpace(rateKey) {
		appendValidationError(errs, "settings.board.posts_key and settings.board.rate_limit_key must differ")
	}
}

// validateStorageConfig validates the selected backend and its required fields.
func validateStorageConfig(get configGetter, errs *[]string) {
	backend := backendSQLite
	if raw := get("settings.storage.backend"); raw != nil {
		value, err := parseStrictString(raw)
		if err != nil {
			appendValidationError(errs, "settings.storage.backend must be a string")
			return
		}
		if value = strings.ToLower(strings.TrimSpace(value)); value != "" {
			backend = value
		}
	}

	switch backend {
	case backendMemory, backendSQLite:
		validateOptionalStringNonEmpty(get, "settings.storage.sqlite.dsn", errs)
	case backendPostgres:
		if isBlankConfigValue(get("settings.storage.postgres.dsn")) {
			validateRequiredString(get, "settings.storage.postgres.addr", errs)
			validateRequiredString(get, "settings.storage.postgres.db", errs)
			validateOptionalIntMin(get, "settings.storage.postgres.port", 1, errs)
		}
	case backendRedis:
		validateRequiredString(get, "settings.storage.redis.addr", errs)
		validateOptionalIntMin(get, "settings.storage.redis.db", 0, errs)
	case backendFirestore:
		validateRequiredString(get, "settings.storage.firestore.project_id", errs)
		validateFirestoreImageLimit(get, errs)
	case backendMongo:
		validateRequiredString(get, "settings.storage.mongo.uri", errs)
		validateRequiredString(get, "settings.storage.mongo.db", errs)
	default:
		appendValidationError(errs, "settings.storage.backend must be one of [%s]", strings.Join([]string{
			backendSQLite, backendPostgres, backendRedis, backendFirestore, backendMongo, backendMemory,
		}, ", "))
	}
}

// validateFirestoreImageLimit requires an image cap that fits a firestore document.
func validateFirestoreImageLimit(get configGetter, errs *[]string) {
	limit := board.MaxImageBytes
	if raw := get("settings.board.max_image_bytes"); raw != nil {
		value, err := parseStrictInt64(raw)
		if err != nil {
			return // reported by validateBoardConfig
		}
		limit = value
	}

	if limit > storage.FirestoreMaxImageBytes {
		appendValidationError(errs,
			"settings.board.max_image_bytes must be <= %d with the firestore backend (got %d)",
			storage.FirestoreMaxImageBytes, limit)
	}
}

// validateLLMConfig validates the moderation and summary endpoint.
func validateLLMConfig(get configGetter, errs *[]string) {
	validateOptionalOneOf(get, "settings.llm.provider", []string{llm.ProviderOpenAI, llm.ProviderGemini}, errs)
	validateOptionalURL(get, "settings.llm.base_url", errs)
	validateOptionalStringNonEmpty(get, "settings.llm.model", errs)
	validateOptionalIntMin(get, "settings.llm.timeout_ms", 1, errs)
}

// validateArchiveConfig validates the MinIO image archive.
func validateArchiveConfig(get configGetter, errs *[]string) {
	validateOptionalBool(get, "settings.archive.minio.enabled", errs)
	validateOptionalBool(get, "settings.archive.minio.secure", errs)
	if !isEnabled(get, "settings.archive.minio.enabled") {
		return
	}

	validateRequiredString(get, "settings.archive.minio.endpoint", errs)
	validateRequiredString(get, "settings.archive.minio.bucket", errs)
	if endpoint, err := parseStrictString(get("settings.archive.minio.endpoint")); err == nil &&
		strings.Contains(endpoint, "://") {
		appendValidationError(errs, "settings.archive.minio.endpoint must be host[:port] without scheme")
	}
}

// validateTelegramConfig validates the new-post notifier.
func validateTelegramConfig(get configGetter, errs *[]string) {
	validateOptionalBool(get, "settings.telegram.enabled", errs)
	validateOptionalURL(get, "settings.telegram.api", errs)
	if !isEnabled(get, "settings.telegram.enabled") {
		return
	}

	validateRequiredString(get, "settings.telegram.token", errs)
	raw := get("settings.telegram.chat_id")
	if raw == nil {
		appendValidationError(errs, "settings.telegram.chat_id is required")
		return
	}
	if chatID, err := parseStrictInt64(raw); err != nil || chatID == 0 {
		appendValidationError(errs, "settings.telegram.chat_id must be a non-zero integer")
	}
}

// validateWebConfig validates CORS hosts.
func validateWebConfig(get configGetter, errs *[]string) {
	raw := get("settings.web.allowed_hosts")
	if raw == nil {
		return
	}

	hosts, ok := raw.([]any)
	if !ok {
		if typed, typedOK := raw.([]string); typedOK {
			for _, h := range typed {
				hosts = append(hosts, h)
			}
		} else {
			appendValidationError(errs, "settings.web.allowed_hosts must be a list of hosts")
			return
		}
	}

	for i, h := range hosts {
		host, err := parseStrictString(h)
		if err != nil || !isValidHost(host) {
			appendValidationError(errs, "settings.web.allowed_hosts[%d] must be a valid host", i)
		}
	}
}

// isEnabled reports whether key holds a true boolean.
func isEnabled(get configGetter, key string) bool {
	raw := get(key)
	if raw == nil {
		return false
	}
	enabled, ok := parseStrictBool(raw)
	return ok && enabled
}

// validateOptionalBool validates an optionally configured boolean key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalInt64Min validates an optionally configured int64 key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalInt64Min(get configGetter, key string, min int64, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt64(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalURL validates an optionally configured absolute URL key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalURL(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string URL", key)
		return
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		appendValidationError(errs, "%s must not be empty", key)
		return
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		appendValidationError(errs, "%s must be a valid absolute URL", key)
	}
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// validateRequiredString validates that key is configured as a non-empty string.
func validateRequiredString(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		appendValidationError(errs, "%s is required", key)
		return
	}

	text, parseErr := parseStrictString(raw)
	if parseErr != nil || strings.TrimSpace(text) == "" {
		appendValidationError(errs, "%s must be a non-empty string", key)
	}
}

// validateOptionalStorageKey validates a key name used inside a storage backend.
func validateOptionalStorageKey(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil || !isValidStorageKey(value) {
		appendValidationError(errs, "%s must match [a-zA-Z0-9_]{1,64}", key)
	}
}

// isValidStorageKey mirrors the key rule of the sql kv table.
func isValidStorageKey(key string) bool {
	if key == "" || len(key) > 64 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// parseStrictBool parses a value as boolean using strict conversion rules.
// It accepts a raw value and returns the parsed boolean and whether parsing succeeded.
func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		if math.Trunc(v) != v {
			return false, false
		}
		return int64(v) != 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false, false
		}
		switch strings.ToLower(trimmed) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

// parseStrictInt parses a value as a strict integer.
// It accepts a raw value and returns the parsed int and an error when parsing fails.
func parseStrictInt(value any) (int, error) {
	parsed, err := parseStrictInt64(value)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if parsed > math.MaxInt || parsed < math.MinInt {
		return 0, errors.Errorf("%d overflows int", parsed)
	}
	return int(parsed), nil
}

// parseStrictInt64 parses a value as a strict int64.
// It accepts a raw value and returns the parsed int64 and an error when parsing fails.
func parseStrictInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "parse int")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictString parses a value as a strict string.
// It accepts a raw value and returns the parsed string and an error when parsing fails.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// isValidHost validates a host string without scheme or path components.
// It accepts a host string and returns true when the host is syntactically acceptable.
func isValidHost(host string) bool {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "://") || strings.Contains(trimmed, "/") {
		return false
	}
	return true
}

// appendValidationError appends a formatted validation error to the collector.
// It accepts an error slice pointer, a format string, and format arguments, and has no return value.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}

func isBlankConfigValue(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}

// validateOptionalOneOf validates an optional case-insensitive enum value.
func validateOptionalOneOf(get configGetter, key string, allowed []string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	text, parseErr := parseStrictString(raw)
	if parseErr == nil {
		text = strings.ToLower(strings.TrimSpace(text))
		if slices.Contains(allowed, text) {
			return
		}
	}
	appendValidationError(errs, "%s must be one of [%s]", key, strings.Join(allowed, ", "))
}
