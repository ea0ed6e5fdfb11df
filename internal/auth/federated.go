package auth

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
	"github.com/markbates/goth/providers/microsoftonline"

	"github.com/arcade-social/internal/config"
)

// InitProviders registers the configured OAuth providers with goth and
// returns their names
func InitProviders(cfg *config.AuthConfig, logger *slog.Logger) []string {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store

	var providers []goth.Provider
	var names []string
	for name, p := range cfg.Providers {
		if p.ClientID == "" {
			logger.Warn("oauth provider has no client id, skipping", "provider", name)
			continue
		}
		switch name {
		case "google":
			providers = append(providers, google.New(p.ClientID, p.ClientSecret, p.CallbackURL, "email", "profile"))
		case "facebook":
			providers = append(providers, facebook.New(p.ClientID, p.ClientSecret, p.CallbackURL, "email"))
		case "microsoft":
			providers = append(providers, microsoftonline.New(p.ClientID, p.ClientSecret, p.CallbackURL))
		default:
			logger.Warn("unsupported oauth provider", "provider", name)
			continue
		}
		names = append(names, name)
	}

	if len(providers) == 0 {
		logger.Warn("no oauth providers configured, federated sign-in disabled")
		return nil
	}
	goth.UseProviders(providers...)
	sort.Strings(names)

	logger.Info("oauth providers initialized", "providers", names)
	return names
}

// FromGoth converts a completed goth login
func FromGoth(u goth.User) FederatedUser {
	name := u.Name
	if name == "" {
		name = u.NickName
	}
	return FederatedUser{
		Provider:       providerName(u.Provider),
		ProviderUserID: u.UserID,
		Email:          u.Email,
		DisplayName:    name,
		PhotoURL:       u.AvatarURL,
	}
}

func providerName(gothName string) string {
	if gothName == "microsoftonline" {
		return "microsoft"
	}
	return gothName
}

// GothName maps a configured provider name to goth's registry name
func GothName(name string) string {
	if name == "microsoft" {
		return "microsoftonline"
	}
	return name
}
