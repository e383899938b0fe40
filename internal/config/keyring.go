/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// Service/keys for OS keyring.
const (
	keyringService = "MuralSynth"
	keyringAPIKey  = "api_key"
)

// ErrNoAPIKey is returned when neither MSY_API_KEY nor the keychain holds a key.
var ErrNoAPIKey = errors.New("no api key configured")

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = &osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (k *osKeyring) Get(service, key string) (string, error) { return keyringGet(service, key) }
func (k *osKeyring) Set(service, key, value string) error    { return keyringSet(service, key, value) }
func (k *osKeyring) Delete(service, key string) error        { return keyringDelete(service, key) }

var (
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
)

// KeySource tells where the active API key came from.
type KeySource string

const (
	SourceNone    KeySource = "none"
	SourceEnv     KeySource = "env"
	SourceKeyring KeySource = "keyring"
)

// APIKey returns the credential for the generation service. MSY_API_KEY wins over the keychain.
func APIKey() (string, KeySource) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return v, SourceEnv
	}
	v, err := tokenStore.Get(keyringService, keyringAPIKey)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", SourceNone
	}
	return v, SourceKeyring
}

// SaveAPIKey stores the credential in the OS keychain.
func SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrNoAPIKey
	}
	return tokenStore.Set(keyringService, keyringAPIKey, key)
}

// DeleteAPIKey removes the stored credential. A missing entry is not an error.
func DeleteAPIKey() error {
	err := tokenStore.Delete(keyringService, keyringAPIKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
