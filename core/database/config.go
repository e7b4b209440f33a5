package database

import (
	"fmt"
	"net"
	"net/url"

	coreconfig "github.com/m3rciful/petbot/core/config"
)

// Config holds PostgreSQL connection settings for the transcript archive.
type Config = coreconfig.DatabaseConfig

// PostgresDSN renders the key/value DSN understood by lib/pq.
func PostgresDSN(cfg Config) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

// PostgresURL renders the URL form required by golang-migrate.
func PostgresURL(cfg Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}
