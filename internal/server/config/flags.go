package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":3000")
//	-g string   gRPC health bind address, empty disables
//	-d string   PostgreSQL DSN
//	-s string   session JWT secret
//	-k string   CSRF secret
//	-t int      session validity, minutes
//	-r string   Redis address for the session registry
//	-b int      bcrypt cost
//	-m int      minimum password length
//	-z string   time zone for task buckets
//	-o int      per-request store timeout, seconds
//
// Unknown arguments are filtered out first so the JSON -c/-config flag does
// not collide with this set. Parse errors panic.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-k", "-t", "-r", "-b", "-m", "-z", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPCHealth, "g", config.EndpointAddrGRPCHealth, "address and port of gRPC health service")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session secret key")
	fs.StringVar(&config.CSRFKey, "k", config.CSRFKey, "CSRF secret key")
	sessionValidity := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session validity (in minutes)")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address for sessions")
	fs.IntVar(&config.BcryptCost, "b", config.BcryptCost, "bcrypt cost")
	fs.IntVar(&config.MinPasswordLength, "m", config.MinPasswordLength, "minimum password length")
	fs.StringVar(&config.TimeZone, "z", config.TimeZone, "time zone for due dates")
	requestTimeout := fs.Int("o", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
	config.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
