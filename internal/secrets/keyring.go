// Package secrets keeps API tokens in the OS keychain.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups jobsync's secrets in the OS keychain.
const KeyringService = "jobsync"

const notionAccount = "notion:token"

var (
	// ErrNotFound is returned when no token is stored.
	ErrNotFound = errors.New("secret not found")
	// ErrEmptySecret is returned when asked to store a blank token.
	ErrEmptySecret = errors.New("token is empty")
)

// Store reads stored tokens.
type Store interface {
	NotionToken() (string, error)
}

// Keyring stores tokens in the OS keychain.
type Keyring struct {
	service string
}

// NewKeyring returns a keychain store for the jobsync service.
func NewKeyring() *Keyring {
	return &Keyring{service: KeyringService}
}

// NotionToken returns the stored Notion integration token.
func (k *Keyring) NotionToken() (string, error) {
	token, err := keyring.Get(k.service, notionAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keychain: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// SetNotionToken stores the Notion integration token.
func (k *Keyring) SetNotionToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptySecret
	}
	if err := keyring.Set(k.service, notionAccount, token); err != nil {
		return fmt.Errorf("failed to write keychain: %w", err)
	}
	return nil
}

// DeleteNotionToken removes the stored Notion token. Deleting a missing
// token is not an error.
func (k *Keyring) DeleteNotionToken() error {
	err := keyring.Delete(k.service, notionAccount)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keychain: %w", err)
	}
	return nil
}
