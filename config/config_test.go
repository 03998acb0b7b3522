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
package config

import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HEMATITE_STREAMS_DIR", "HEMATITE_LISTEN", "HEMATITE_JWT_SECRET",
		"HEMATITE_JWT_PUBLIC_KEY", "HEMATITE_JWT_AUDIENCE",
		"HEMATITE_MAX_OPEN_STREAMS", "HEMATITE_LOG", "HEMATITE_OTLP_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresStreamsDir(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresJWTKeyMaterial(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEMATITE_STREAMS_DIR", t.TempDir())
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEMATITE_STREAMS_DIR", t.TempDir())
	t.Setenv("HEMATITE_JWT_SECRET", "shh")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultJWTAudience, cfg.JWTAudience)
	assert.Equal(t, DefaultMaxOpenStreams, cfg.MaxOpenStreams)
}

func TestLoadRejectsNonIntegerMaxOpenStreams(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEMATITE_STREAMS_DIR", t.TempDir())
	t.Setenv("HEMATITE_JWT_SECRET", "shh")
	t.Setenv("HEMATITE_MAX_OPEN_STREAMS", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEMATITE_STREAMS_DIR", t.TempDir())
	t.Setenv("HEMATITE_JWT_SECRET", "shh")
	t.Setenv("HEMATITE_LISTEN", "127.0.0.1:9999")
	t.Setenv("HEMATITE_MAX_OPEN_STREAMS", "7")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
	assert.Equal(t, 7, cfg.MaxOpenStreams)
}
