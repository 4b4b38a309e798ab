package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ga-insights/core/internal/modules/ai"
	"github.com/joho/godotenv"
)

func loadEnvFiles(files ...string) {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		// godotenv.Load never overrides variables that are already set.
		_ = godotenv.Load(file)
	}
}

// applyEnv lets the well-known variables override the YAML values.
func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if v := get("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	cfg.Env = firstNonEmpty(get("APP_ENV"), cfg.Env)
	cfg.Timezone = firstNonEmpty(get("TZ_NAME"), cfg.Timezone)
	cfg.Paths.Logs = firstNonEmpty(get("LOG_DIR"), cfg.Paths.Logs)

	cfg.Analytics.PropertyID = firstNonEmpty(get("GA_PROPERTY_ID"), cfg.Analytics.PropertyID)
	cfg.Analytics.CredentialsFile = firstNonEmpty(get("GOOGLE_APPLICATION_CREDENTIALS"), cfg.Analytics.CredentialsFile)
	cfg.Analytics.CredentialsJSON = firstNonEmpty(get("GA_CREDENTIALS_JSON"), cfg.Analytics.CredentialsJSON)

	cfg.AI.Provider = firstNonEmpty(get("AI_PROVIDER"), cfg.AI.Provider)
	cfg.AI.Endpoint = firstNonEmpty(get("AI_ENDPOINT"), cfg.AI.Endpoint)
	// OPENAI_* only apply to the openai provider; AI_API_KEY applies to any.
	if ai.NormalizeType(cfg.AI.Provider) == ai.TypeOpenAI {
		cfg.AI.APIKey = firstNonEmpty(get("OPENAI_API_KEY"), cfg.AI.APIKey)
		cfg.AI.Model = firstNonEmpty(get("OPENAI_MODEL"), cfg.AI.Model)
	}
	cfg.AI.APIKey = firstNonEmpty(get("AI_API_KEY"), cfg.AI.APIKey)

	cfg.Redis.URL = firstNonEmpty(get("REDIS_URL"), cfg.Redis.URL)
	cfg.Proxy.BackendURL = firstNonEmpty(get("BACKEND_URL"), cfg.Proxy.BackendURL)
	cfg.Proxy.APIKey = firstNonEmpty(get("BACKEND_API_KEY"), cfg.Proxy.APIKey)
	if err := setDuration(&cfg.Proxy.CacheTTL, get("CACHE_TTL"), "CACHE_TTL"); err != nil {
		return err
	}
	return nil
}

// setDuration parses raw into dst when raw is set. Bare numbers are seconds.
func setDuration(dst *time.Duration, raw, field string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := parseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	var d time.Duration
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return 0, err
		}
		d = parsed
	}
	if d <= 0 {
		return 0, errors.New("expected a positive duration")
	}
	return d, nil
}
