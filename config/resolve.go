package config

import (
	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/logger"
	"github.com/CoReason-AI/omopcloudetl-core/secrets"
)

// needsSecret reports whether the password must come from a provider.
func (c *ProjectConfig) needsSecret() bool {
	return c.Secrets != nil && c.Connection.PasswordSecretID != "" && c.Connection.Password == ""
}

// ResolveSecrets returns a copy of cfg with the connection password read
// from provider when only password_secret_id is set. cfg is not modified.
// A direct password wins over a secret reference; the reference is then
// ignored with a warning.
func ResolveSecrets(cfg *ProjectConfig, provider secrets.Provider, log *logger.Logger) (*ProjectConfig, error) {
	if log == nil {
		log = logger.Nop()
	}
	out := cfg.Clone()
	conn := out.Connection

	if conn.PasswordSecretID == "" {
		return out, nil
	}
	if conn.Password != "" {
		log.Warn("connection has both password and password_secret_id; using the direct password",
			logger.Fields("password_secret_id", conn.PasswordSecretID))
		return out, nil
	}
	if out.Secrets == nil {
		return nil, errors.ConfigurationError("password_secret_id is set but no secrets provider is configured", nil)
	}
	if provider == nil {
		return nil, errors.ConfigurationError("no secrets provider available to resolve password_secret_id", nil)
	}

	value, err := provider.GetSecret(conn.PasswordSecretID)
	if err != nil {
		return nil, err
	}
	out.Connection.Password = Secret(value)
	log.Debug("resolved connection password from secrets provider",
		logger.Fields("provider", out.Secrets.ProviderType))
	return out, nil
}
