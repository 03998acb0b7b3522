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

import "crypto/rsa"
import "fmt"
import "os"

import "github.com/fsnotify/fsnotify"
import "github.com/golang-jwt/jwt/v5"

// ParseRSAPublicKeyFile reads and parses a PEM-encoded RSA public key.
func ParseRSAPublicKeyFile(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("config: parsing RSA public key in %s: %w", path, err)
	}
	return key, nil
}

// WatchPublicKey loads path once, applies it via reload, and then
// continues watching path for changes so a rotated key is picked up
// without a process restart.
//
// The returned stop func releases the underlying watcher; callers should
// defer it.
func WatchPublicKey(path string, reload func(pub *rsa.PublicKey) error) (stop func(), err error) {
	if err := loadAndApply(path, reload); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: starting key watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					_ = loadAndApply(path, reload) // best-effort; keep serving the old key on failure
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}

func loadAndApply(path string, reload func(pub *rsa.PublicKey) error) error {
	pub, err := ParseRSAPublicKeyFile(path)
	if err != nil {
		return err
	}
	return reload(pub)
}
