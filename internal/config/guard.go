package config

import "fmt"

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"staging": true,
	"prod":    true,
}

var validSigningModes = map[string]bool{
	SigningModeRequired: true,
	SigningModeOptional: true,
	SigningModeDisabled: true,
}

// StartupBlockers evaluates the fail-closed preflight. Any returned reason
// blocks the process from serving; an empty slice means ready.
// migrationHead is the database's current migration version, empty when
// unknown.
func StartupBlockers(cfg Config, migrationHead string) []string {
	var blockers []string

	if !validEnvs[cfg.Env] {
		blockers = append(blockers, fmt.Sprintf("LEDGER_ENV %q is not one of dev, test, staging, prod", cfg.Env))
	}
	if !validSigningModes[cfg.SigningMode] {
		blockers = append(blockers, fmt.Sprintf("SIGNING_MODE %q is not one of required, optional, disabled", cfg.SigningMode))
	}

	switch cfg.SigningMode {
	case SigningModeRequired:
		if !cfg.HasSigningKey() {
			blockers = append(blockers, "SIGNING_MODE=required but SIGNING_IDENTITY_ID or SIGNING_PRIVATE_KEY_SEED_HEX is missing")
		}
	case SigningModeDisabled:
		if cfg.HasSigningKey() {
			blockers = append(blockers, "SIGNING_MODE=disabled but signing key material is configured")
		}
	}

	if cfg.ExpectedMigrationHead != "" && migrationHead != cfg.ExpectedMigrationHead {
		blockers = append(blockers, fmt.Sprintf("migration head %q does not match expected %q", migrationHead, cfg.ExpectedMigrationHead))
	}

	if cfg.Env == "prod" {
		if cfg.LogLevel == "debug" {
			blockers = append(blockers, "debug logging is not allowed in prod")
		}
		if cfg.AutoCreateSchema {
			blockers = append(blockers, "AUTO_CREATE_SCHEMA is not allowed in prod")
		}
		if cfg.PostgresDSN == "" {
			blockers = append(blockers, "POSTGRES_DSN is required in prod")
		}
		if cfg.AdminAPIKey == "" {
			blockers = append(blockers, "ADMIN_API_KEY is required in prod")
		}
		// Running unsigned in prod must be an explicit decision, never the
		// result of a missing key.
		if cfg.SigningMode != SigningModeDisabled && !cfg.HasSigningKey() {
			blockers = append(blockers, "prod requires signing key material or an explicit SIGNING_MODE=disabled")
		}
	}

	return blockers
}
