// Command composer serves a multi-tenant component content platform.
// All deployment settings come from environment variables; the site
// registry itself is a TOML file.
package main

import (
	"log"
	"os"
	"strings"

	"github.com/eringen/composer"
)

func main() {
	cfg := composer.Config{
		RegistryPath:   envOr("COMPOSER_REGISTRY", "config/sites.toml"),
		Addr:           envOr("COMPOSER_ADDR", ":3000"),
		DatabasePath:   envOr("COMPOSER_DB", "data/resources.db"),
		EditorPassword: os.Getenv("COMPOSER_EDITOR_PASSWORD"),
		SessionSecret:  os.Getenv("COMPOSER_SESSION_SECRET"),
		CookieSecure:   strings.EqualFold(os.Getenv("COMPOSER_COOKIE_SECURE"), "true"),
	}

	app := composer.New(cfg)
	defer app.Close()

	log.Printf("composer listening on %s (registry %s)", cfg.Addr, cfg.RegistryPath)
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// envOr returns the value of the environment variable key, or fallback if empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
