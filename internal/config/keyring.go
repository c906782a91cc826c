package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "gymthon"
	keyringLLMUser = "llm-api-key"
)

var (
	ErrKeyNotFound        = errors.New("llm api key not found in keyring")
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
	errEmptyKeyringSecret = errors.New("llm api key cannot be empty")
)

// GetLLMKey reads the completion API key stored by SetLLMKey.
func GetLLMKey() (string, error) {
	key, err := keyring.Get(keyringService, keyringLLMUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return key, nil
}

func SetLLMKey(key string) error {
	if key == "" {
		return errEmptyKeyringSecret
	}
	if err := keyring.Set(keyringService, keyringLLMUser, key); err != nil {
		return fmt.Errorf("storing llm api key in keyring: %w", err)
	}
	return nil
}

func DeleteLLMKey() error {
	if err := keyring.Delete(keyringService, keyringLLMUser); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("deleting llm api key from keyring: %w", err)
	}
	return nil
}
