// ABOUTME: Request-scoped ledger access bound to wallet identities
// ABOUTME: Opens a fresh session per call and guarantees teardown

package ledger

import (
	"log/slog"

	"github.com/assetlink/ledger-gateway/internal/config"
	"github.com/assetlink/ledger-gateway/internal/wallet"
)

// Gateway executes contract operations as wallet identities. Every call opens
// its own session and closes it before returning, so no connection state
// outlives a request.
type Gateway struct {
	cfg    *config.FabricConfig
	wallet *wallet.Wallet
	logger *slog.Logger
}

// NewGateway creates a Gateway over the configured peer and wallet.
func NewGateway(cfg *config.FabricConfig, w *wallet.Wallet) *Gateway {
	return &Gateway{
		cfg:    cfg,
		wallet: w,
		logger: slog.Default().With("component", "ledger"),
	}
}

// withExecutor resolves username's credentials, opens a session, and runs fn
// against an executor for the configured contract.
func (g *Gateway) withExecutor(username string, fn func(*Executor) error) error {
	creds, err := WalletCredentials(g.wallet, username)
	if err != nil {
		return err
	}

	sess, err := Open(g.cfg, creds)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			g.logger.Warn("closing session", "username", username, "error", cerr)
		}
	}()

	return fn(NewExecutor(sess.Contract()))
}

// InitLedger seeds the baseline asset set as username.
func (g *Gateway) InitLedger(username string) error {
	return g.withExecutor(username, func(e *Executor) error {
		return e.InitLedger()
	})
}

// GetAllAssets returns every world-state asset visible to username.
func (g *Gateway) GetAllAssets(username string) ([]Asset, error) {
	var assets []Asset
	err := g.withExecutor(username, func(e *Executor) error {
		var err error
		assets, err = e.GetAllAssets()
		return err
	})
	return assets, err
}

// ReadAsset returns the asset stored under id, queried as username.
func (g *Gateway) ReadAsset(username, id string) (*Asset, error) {
	var asset *Asset
	err := g.withExecutor(username, func(e *Executor) error {
		var err error
		asset, err = e.ReadAsset(id)
		return err
	})
	return asset, err
}

// CreateAsset submits a new asset as username and returns its allocated ID.
func (g *Gateway) CreateAsset(username string, req *CreateAssetRequest) (string, error) {
	var id string
	err := g.withExecutor(username, func(e *Executor) error {
		var err error
		id, err = e.CreateAsset(req)
		return err
	})
	return id, err
}
