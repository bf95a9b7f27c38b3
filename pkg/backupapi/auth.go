package backupapi

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const authTokenPath = "/dna/system/api/v1/auth/token"

type tokenResponse struct {
	Token string `json:"Token"`
}

// Authenticate exchanges the configured credentials for a session token and
// stores it on the client.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.logger.Debug("authenticating against appliance", zap.String("host", c.ServerURL.Host))

	var tr tokenResponse
	if err := c.call(ctx, OpAuth, authTokenPath, nil, &tr); err != nil {
		return "", err
	}
	if tr.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidData)
	}

	c.mu.Lock()
	c.token = tr.Token
	c.mu.Unlock()
	return tr.Token, nil
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if t := c.currentToken(); t != "" {
		return t, nil
	}
	return c.Authenticate(ctx)
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
