package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/todokeeper/internal/flagx"
	"github.com/dmitrijs2005/todokeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "24h" and integer nanoseconds are accepted. Fields left out of the
// file keep their current values.
type JsonConfig struct {
	EndpointAddrHTTP        *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPCHealth  *string         `json:"endpoint_addr_grpc_health"`
	DatabaseDSN             *string         `json:"database_dsn"`
	SecretKey               *string         `json:"secret_key"`
	CSRFKey                 *string         `json:"csrf_key"`
	SecureCookies           *bool           `json:"secure_cookies"`
	SessionValidityDuration *timex.Duration `json:"session_validity_duration"`
	RedisAddr               *string         `json:"redis_addr"`
	BcryptCost              *int            `json:"bcrypt_cost"`
	MinPasswordLength       *int            `json:"min_password_length"`
	TimeZone                *string         `json:"time_zone"`
	RequestTimeout          *timex.Duration `json:"request_timeout"`
}

// parseJson overlays the JSON file named by -c/-config (or $CONFIG) onto
// config. No path means nothing to do. An unreadable or invalid file panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPCHealth, c.EndpointAddrGRPCHealth)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.CSRFKey, c.CSRFKey)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.TimeZone, c.TimeZone)

	if c.SessionValidityDuration != nil {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	if c.RequestTimeout != nil {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.MinPasswordLength != nil {
		config.MinPasswordLength = *c.MinPasswordLength
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
