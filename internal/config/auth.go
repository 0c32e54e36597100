package config

import (
	"git.home.luguber.info/inful/docship/internal/foundation/normalization"
)

// AuthType enumerates supported authentication methods (stringly for YAML compatibility)
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

var authTypeNormalizer = normalization.NewNormalizer(map[string]AuthType{
	"none":  AuthTypeNone,
	"token": AuthTypeToken,
	"basic": AuthTypeBasic,
}, AuthTypeNone)

// NormalizeAuthType canonicalizes case and whitespace. Unrecognized values
// pass through untouched so validation can report them by name.
func NormalizeAuthType(raw AuthType) AuthType {
	if v, ok := authTypeNormalizer.Lookup(string(raw)); ok {
		return v
	}
	return raw
}

// AuthConfig represents source repository authentication.
type AuthConfig struct {
	Type     AuthType `yaml:"type"` // token|basic|none
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
}

// IsZero reports whether no auth method is specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }
