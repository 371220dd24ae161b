package vault

import (
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
	"github.com/sirupsen/logrus"
)

// Client wraps the Vault KV v2 API for API-key storage. Keys live under
// secret/data/binance/accounts/<identifier>.
type Client struct {
	client *vault.Client
	logger *logrus.Entry
}

// Config holds Vault connection settings.
type Config struct {
	Address string
	Token   string
}

// NewClient creates a new Vault client and verifies the server is
// reachable and unsealed.
func NewClient(config Config) (*Client, error) {
	if config.Address == "" {
		config.Address = os.Getenv("VAULT_ADDR")
		if config.Address == "" {
			config.Address = "http://localhost:8200"
		}
	}
	if config.Token == "" {
		config.Token = os.Getenv("VAULT_TOKEN")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(config.Token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("vault is not healthy: %w", err)
	}
	if health.Sealed {
		return nil, fmt.Errorf("vault is sealed")
	}

	logger := logrus.WithField("component", "vault")
	logger.Infof("connected to Vault at %s", config.Address)

	return &Client{client: client, logger: logger}, nil
}

func accountPath(identifier string) string {
	return fmt.Sprintf("secret/data/binance/accounts/%s", identifier)
}

// StoreAccountKeys stores the API key pair for one account.
func (c *Client) StoreAccountKeys(identifier, apiKey, apiSecret string, active bool) error {
	data := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":    apiKey,
			"secret_key": apiSecret,
			"active":     active,
		},
	}
	if _, err := c.client.Logical().Write(accountPath(identifier), data); err != nil {
		return fmt.Errorf("failed to store keys for %s: %w", identifier, err)
	}
	c.logger.Infof("stored API keys for account %s", identifier)
	return nil
}

// GetAccountKeys retrieves the stored fields for one account. A missing
// entry returns nil, nil so callers can apply their own not-found policy.
func (c *Client) GetAccountKeys(identifier string) (map[string]string, error) {
	secret, err := c.client.Logical().Read(accountPath(identifier))
	if err != nil {
		return nil, fmt.Errorf("failed to read keys for %s: %w", identifier, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format for %s", identifier)
	}

	result := make(map[string]string)
	for k, v := range data {
		switch val := v.(type) {
		case string:
			result[k] = val
		case bool:
			result[k] = fmt.Sprintf("%t", val)
		}
	}
	return result, nil
}

// DeleteAccountKeys removes the key pair for one account.
func (c *Client) DeleteAccountKeys(identifier string) error {
	path := fmt.Sprintf("secret/metadata/binance/accounts/%s", identifier)
	if _, err := c.client.Logical().Delete(path); err != nil {
		return fmt.Errorf("failed to delete keys for %s: %w", identifier, err)
	}
	c.logger.Infof("deleted API keys for account %s", identifier)
	return nil
}
