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

Package auth authenticates inbound requests by the JWT carried in the
Authorization header. It supports both a symmetric (HS256)
secret and an RSA (RS256) public key, selected by whichever key material
is configured, and enforces the required claims: sub, aud, exp.

*/
package auth

import "crypto/rsa"
import "errors"
import "fmt"
import "net/http"
import "strings"
import "sync/atomic"

import "github.com/golang-jwt/jwt/v5"

// ErrUnauthenticated covers every way a request fails authentication:
// missing header, malformed token, bad signature, wrong audience, or
// expiry. All of these map to 401.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Identity is the authenticated caller, extracted from validated claims.
type Identity struct {
	Subject string
}

// Verifier validates bearer tokens and extracts the caller's identity.
type Verifier struct {
	audience string

	secret    atomic.Pointer[[]byte]  // HS256 key material, live-reloadable
	publicKey atomic.Pointer[rsa.PublicKey] // RS256 key material, live-reloadable
}

// NewHMACVerifier builds a Verifier that checks HS256-signed tokens
// against secret.
func NewHMACVerifier(secret []byte, audience string) *Verifier {
	v := &Verifier{audience: audience}
	v.SetSecret(secret)
	return v
}

// NewRSAVerifier builds a Verifier that checks RS256-signed tokens
// against pub.
func NewRSAVerifier(pub *rsa.PublicKey, audience string) *Verifier {
	v := &Verifier{audience: audience}
	v.SetPublicKey(pub)
	return v
}

// SetSecret atomically swaps the HMAC key material, for live key
// rotation without dropping in-flight requests.
func (v *Verifier) SetSecret(secret []byte) {
	cp := append([]byte(nil), secret...)
	v.secret.Store(&cp)
}

// SetPublicKey atomically swaps the RSA key material.
func (v *Verifier) SetPublicKey(pub *rsa.PublicKey) {
	v.publicKey.Store(pub)
}

// VerifyRequest extracts and validates the Authorization: Bearer <JWT>
// header, returning the authenticated Identity or ErrUnauthenticated.
func (v *Verifier) VerifyRequest(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Identity{}, ErrUnauthenticated
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if tokenString == "" {
		return Identity{}, ErrUnauthenticated
	}
	return v.Verify(tokenString)
}

// Verify validates a raw JWT string.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, &claims, v.keyFunc,
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{Subject: claims.Subject}, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.Alg() {
	case "HS256":
		secret := v.secret.Load()
		if secret == nil {
			return nil, errors.New("auth: no HMAC secret configured")
		}
		return []byte(*secret), nil
	case "RS256":
		pub := v.publicKey.Load()
		if pub == nil {
			return nil, errors.New("auth: no RSA public key configured")
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("auth: unsupported signing method %q", token.Method.Alg())
	}
}
