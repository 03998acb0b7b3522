/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*

Package config reads the environment-variable table into a
Config value. A server process under test is better served by an
explicit, immutable value returned from Load and threaded through by
the caller than by a package-level mutable settings global.

*/
package config

import "fmt"
import "os"
import "strconv"
import "time"

// Config is the fully-resolved process configuration.
type Config struct {
	StreamsDir       string
	Listen           string
	JWTSecret        []byte
	JWTPublicKeyPath string
	JWTAudience      string
	MaxOpenStreams   int
	EvictWait        time.Duration
	LogLevel         string
	OTLPEndpoint     string // empty disables OTLP export
}

const (
	envStreamsDir     = "HEMATITE_STREAMS_DIR"
	envListen         = "HEMATITE_LISTEN"
	envJWTSecret      = "HEMATITE_JWT_SECRET"
	envJWTPublicKey   = "HEMATITE_JWT_PUBLIC_KEY"
	envJWTAudience    = "HEMATITE_JWT_AUDIENCE"
	envMaxOpenStreams = "HEMATITE_MAX_OPEN_STREAMS"
	envLogLevel       = "HEMATITE_LOG"
	envOTLPEndpoint   = "HEMATITE_OTLP_ENDPOINT"
)

const (
	DefaultListen         = "0.0.0.0:8080"
	DefaultJWTAudience    = "hematite"
	DefaultMaxOpenStreams = 1024
	DefaultLogLevel       = "info"
)

// Load reads Config from the process environment. HEMATITE_STREAMS_DIR is
// required, and so is one of HEMATITE_JWT_SECRET or HEMATITE_JWT_PUBLIC_KEY;
// every other variable falls back to its documented default.
func Load() (Config, error) {
	cfg := Config{
		Listen:         DefaultListen,
		JWTAudience:    DefaultJWTAudience,
		MaxOpenStreams: DefaultMaxOpenStreams,
		LogLevel:       DefaultLogLevel,
	}

	cfg.StreamsDir = os.Getenv(envStreamsDir)
	if cfg.StreamsDir == "" {
		return Config{}, fmt.Errorf("config: %s is required", envStreamsDir)
	}

	if v := os.Getenv(envListen); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv(envJWTSecret); v != "" {
		cfg.JWTSecret = []byte(v)
	}
	cfg.JWTPublicKeyPath = os.Getenv(envJWTPublicKey)
	if cfg.JWTSecret == nil && cfg.JWTPublicKeyPath == "" {
		return Config{}, fmt.Errorf("config: one of %s or %s is required", envJWTSecret, envJWTPublicKey)
	}
	if v := os.Getenv(envJWTAudience); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv(envMaxOpenStreams); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: %s must be a positive integer, got %q", envMaxOpenStreams, v)
		}
		cfg.MaxOpenStreams = n
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}
	cfg.OTLPEndpoint = os.Getenv(envOTLPEndpoint)

	return cfg, nil
}
