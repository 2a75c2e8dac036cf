// ABOUTME: Enrollment flows layered on the CA client
// ABOUTME: Idempotent admin bootstrap and ordered register+enroll for new users

package ca

import (
	"context"
	"fmt"

	"github.com/assetlink/ledger-gateway/internal/wallet"
)

// EnrollAdmin performs the one-time enrollment of the organization's
// administrative principal using its bootstrap secret and stores the result
// under the wallet's reserved admin label. If the admin identity is already
// in the wallet this is a no-op, not an error.
func (c *Client) EnrollAdmin(ctx context.Context, w *wallet.Wallet, mspID, adminID, adminSecret string) error {
	exists, err := w.Exists(wallet.AdminLabel)
	if err != nil {
		return fmt.Errorf("checking admin identity: %w", err)
	}
	if exists {
		c.logger.Debug("admin identity already enrolled")
		return nil
	}

	certPEM, keyPEM, err := c.Enroll(ctx, adminID, adminSecret)
	if err != nil {
		return fmt.Errorf("enrolling admin: %w", err)
	}

	if err := w.Put(wallet.AdminLabel, &wallet.Identity{
		MSPID:       mspID,
		Certificate: certPEM,
		PrivateKey:  keyPEM,
	}); err != nil {
		return fmt.Errorf("storing admin identity: %w", err)
	}

	c.logger.Info("enrolled admin identity", "msp_id", mspID)
	return nil
}

// RegisterAndEnroll registers username with the CA under the admin identity's
// authority, immediately enrolls it with the allocated one-time secret, and
// stores the resulting identity in the wallet under username. The CA
// reporting a duplicate surfaces as ErrAlreadyRegistered; a duplicate wallet
// entry surfaces as wallet.ErrAlreadyExists. Registration must have been
// preceded by EnrollAdmin.
func (c *Client) RegisterAndEnroll(ctx context.Context, w *wallet.Wallet, mspID, username, affiliation string) error {
	admin, err := w.Get(wallet.AdminLabel)
	if err != nil {
		return fmt.Errorf("loading admin identity: %w", err)
	}

	exists, err := w.Exists(username)
	if err != nil {
		return fmt.Errorf("checking wallet entry: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", wallet.ErrAlreadyExists, username)
	}

	secret, err := c.Register(ctx, admin, &RegistrationRequest{
		Name:        username,
		Type:        "client",
		Affiliation: affiliation,
	})
	if err != nil {
		return err
	}

	certPEM, keyPEM, err := c.Enroll(ctx, username, secret)
	if err != nil {
		return fmt.Errorf("enrolling %s: %w", username, err)
	}

	if err := w.Put(username, &wallet.Identity{
		MSPID:       mspID,
		Certificate: certPEM,
		PrivateKey:  keyPEM,
	}); err != nil {
		return fmt.Errorf("storing identity for %s: %w", username, err)
	}

	c.logger.Info("registered and enrolled ledger identity", "username", username, "msp_id", mspID)
	return nil
}
