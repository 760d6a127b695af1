package providers

import (
	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-server/internal/auth"
	"github.com/readmarkapp/readmark-server/internal/config"
	"github.com/readmarkapp/readmark-server/internal/logger"
)

// AuthKey wraps the token verification key bytes.
type AuthKey []byte

// ProvideAuthKey loads the shared token key from config, or from (or
// into) the data directory when none is configured.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key := cfg.Auth.AccessTokenKey
	if len(key) == 0 {
		loaded, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
		if err != nil {
			return nil, err
		}
		key = loaded
		cfg.Auth.AccessTokenKey = loaded
	}

	log.Info("Token verification key loaded")

	return AuthKey(key), nil
}

// ProvideTokenVerifier provides the PASETO token verifier.
func ProvideTokenVerifier(i do.Injector) (*auth.TokenVerifier, error) {
	authKey := do.MustInvoke[AuthKey](i)
	return auth.NewTokenVerifier([]byte(authKey))
}
