package authclient

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// Client verifies bearer tokens as Google ID tokens and resolves the caller
// identity from the token subject. Token issuance is the identity provider's
// concern; this side only validates.
type Client struct {
	validator *idtoken.Validator
	audience  string
}

// NewClient creates a token verifier for the given audience.
func NewClient(ctx context.Context, audience string) (*Client, error) {
	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create id token validator: %w", err)
	}

	return &Client{
		validator: validator,
		audience:  audience,
	}, nil
}

// Verify validates the token signature, expiry and audience, and returns the
// subject as the caller's caregiver id.
func (c *Client) Verify(ctx context.Context, token string) (string, error) {
	payload, err := c.validator.Validate(ctx, token, c.audience)
	if err != nil {
		return "", fmt.Errorf("failed to validate token: %w", err)
	}
	if payload.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return payload.Subject, nil
}
