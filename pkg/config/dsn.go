package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const redactedPassword = "xxxxx"

// ParsedDatabaseURL holds the parsed components of a database connection URL.
type ParsedDatabaseURL struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Options  map[string]string
}

// DefaultSSLMode is the sslmode used when neither the URL nor the config
// names one: TLS is required in staging and production, off locally.
func DefaultSSLMode(environment string) string {
	if IsProductionLike(environment) {
		return "require"
	}
	return "disable"
}

// ParseDatabaseURL parses a postgres:// or postgresql:// URL. defaultSSLMode
// is used when the URL has no sslmode parameter.
func ParseDatabaseURL(rawURL, defaultSSLMode string) (*ParsedDatabaseURL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("invalid database URL scheme: %s (expected postgres or postgresql)", u.Scheme)
	}

	result := &ParsedDatabaseURL{
		Host:     u.Hostname(),
		Port:     5432,
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  defaultSSLMode,
		Options:  make(map[string]string),
	}

	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port in database URL: %w", err)
		}
		result.Port = port
	}

	if u.User != nil {
		result.User = u.User.Username()
		result.Password, _ = u.User.Password()
	}

	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "sslmode" {
			result.SSLMode = values[0]
			continue
		}
		result.Options[key] = values[0]
	}

	return result, nil
}

// ToDSN converts the components to a libpq key/value string. Options are
// emitted in key order and values are quoted when libpq requires it.
func (p *ParsedDatabaseURL) ToDSN() string {
	pairs := []string{
		"host=" + dsnValue(p.Host),
		"port=" + strconv.Itoa(p.Port),
		"user=" + dsnValue(p.User),
		"password=" + dsnValue(p.Password),
		"dbname=" + dsnValue(p.Database),
	}
	if p.SSLMode != "" {
		pairs = append(pairs, "sslmode="+dsnValue(p.SSLMode))
	}
	for _, key := range p.optionKeys() {
		pairs = append(pairs, key+"="+dsnValue(p.Options[key]))
	}
	return strings.Join(pairs, " ")
}

// Redacted renders the components as a URL with the password masked, for
// startup logs.
func (p *ParsedDatabaseURL) Redacted() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	switch {
	case p.Password != "":
		u.User = url.UserPassword(p.User, redactedPassword)
	case p.User != "":
		u.User = url.User(p.User)
	}

	query := url.Values{}
	if p.SSLMode != "" {
		query.Set("sslmode", p.SSLMode)
	}
	for key, value := range p.Options {
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String()
}

func (p *ParsedDatabaseURL) optionKeys() []string {
	keys := make([]string, 0, len(p.Options))
	for key := range p.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// dsnValue quotes a libpq value that is empty or contains spaces, quotes
// or backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// components returns the connection settings, preferring URL when it parses.
func (c *DatabaseConfig) components() *ParsedDatabaseURL {
	if c.URL != "" {
		if parsed, err := ParseDatabaseURL(c.URL, c.SSLMode); err == nil {
			return parsed
		}
		// Fall through to individual fields if URL parsing fails
	}

	return &ParsedDatabaseURL{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.SSLMode,
	}
}

// DSN returns the PostgreSQL connection string.
// If URL is set, it parses and uses that. Otherwise, it builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	return c.components().ToDSN()
}

// Redacted returns the connection target as a URL with the password masked
func (c *DatabaseConfig) Redacted() string {
	return c.components().Redacted()
}
