// Package config loads the yaml settings file into the shared go-config store.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/sparkboard/library/log"
)

// EnvOverrides maps environment variables to the settings they replace.
// Secrets are usually supplied this way instead of through the yaml file.
var EnvOverrides = map[string]string{
	"SPARKBOARD_LLM_API_KEY":          "settings.llm.api_key",
	"SPARKBOARD_LLM_PROVIDER":         "settings.llm.provider",
	"SPARKBOARD_POSTGRES_DSN":         "settings.storage.postgres.dsn",
	"SPARKBOARD_REDIS_PASSWORD":       "settings.storage.redis.password",
	"SPARKBOARD_MONGO_URI":            "settings.storage.mongo.uri",
	"SPARKBOARD_MINIO_ACCESS_KEY":     "settings.archive.minio.access_key",
	"SPARKBOARD_MINIO_SECRET_KEY":     "settings.archive.minio.secret_key",
	"SPARKBOARD_TELEGRAM_TOKEN":       "settings.telegram.token",
	"SPARKBOARD_FIRESTORE_CREDENTIAL": "settings.storage.firestore.credential_file",
}

// LoadFromFile loads cfgPath into gconfig.Shared.
func LoadFromFile(cfgPath string) error {
	gconfig.Shared.Set("cfg_dir", filepath.Dir(cfgPath))
	if err := gconfig.Shared.LoadFromFile(cfgPath); err != nil {
		return errors.Wrapf(err, "load configuration %s", cfgPath)
	}

	log.Logger.Info("load configuration", zap.String("config", cfgPath))
	return nil
}

// ApplyEnvOverrides copies every non-empty variable of EnvOverrides into
// gconfig.Shared and returns the settings keys it changed.
func ApplyEnvOverrides() []string {
	return applyEnvOverrides(os.LookupEnv, gconfig.Shared.Set)
}

func applyEnvOverrides(lookup func(string) (string, bool), set func(string, any)) (changed []string) {
	for env, key := range EnvOverrides {
		value, ok := lookup(env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}

		set(key, strings.TrimSpace(value))
		changed = append(changed, key)
	}

	return changed
}
