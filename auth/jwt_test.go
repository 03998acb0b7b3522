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
package auth

import "net/http"
import "net/http/httptest"
import "testing"
import "time"

import "github.com/golang-jwt/jwt/v5"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func signHS256(t *testing.T, secret []byte, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestVerifyRequestAcceptsValidToken(t *testing.T) {
	secret := []byte("shh")
	v := NewHMACVerifier(secret, "hematite")
	tok := signHS256(t, secret, jwt.RegisteredClaims{
		Subject:   "alice",
		Audience:  jwt.ClaimStrings{"hematite"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	req := httptest.NewRequest(http.MethodGet, "/streams/s1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	id, err := v.VerifyRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Subject)
}

func TestVerifyRequestRejectsMissingHeader(t *testing.T) {
	v := NewHMACVerifier([]byte("shh"), "hematite")
	req := httptest.NewRequest(http.MethodGet, "/streams/s1", nil)
	_, err := v.VerifyRequest(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyRequestRejectsExpiredToken(t *testing.T) {
	secret := []byte("shh")
	v := NewHMACVerifier(secret, "hematite")
	tok := signHS256(t, secret, jwt.RegisteredClaims{
		Subject:   "alice",
		Audience:  jwt.ClaimStrings{"hematite"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	req := httptest.NewRequest(http.MethodGet, "/streams/s1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	_, err := v.VerifyRequest(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyRequestRejectsWrongAudience(t *testing.T) {
	secret := []byte("shh")
	v := NewHMACVerifier(secret, "hematite")
	tok := signHS256(t, secret, jwt.RegisteredClaims{
		Subject:   "alice",
		Audience:  jwt.ClaimStrings{"someone-else"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	req := httptest.NewRequest(http.MethodGet, "/streams/s1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	_, err := v.VerifyRequest(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyRequestRejectsWrongSecret(t *testing.T) {
	v := NewHMACVerifier([]byte("correct"), "hematite")
	tok := signHS256(t, []byte("wrong"), jwt.RegisteredClaims{
		Subject:   "alice",
		Audience:  jwt.ClaimStrings{"hematite"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	req := httptest.NewRequest(http.MethodGet, "/streams/s1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	_, err := v.VerifyRequest(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIdentityOnlyPolicyAllowsAnyStream(t *testing.T) {
	var p IdentityOnly
	assert.True(t, p.Authorize(Identity{Subject: "alice"}, "any-stream"))
}
