// ABOUTME: Resolves stored credentials into a gateway identity and signing function
// ABOUTME: Wallet-backed per-user variant and filesystem fixed-identity variant

package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperledger/fabric-gateway/pkg/identity"

	"github.com/assetlink/ledger-gateway/internal/config"
	"github.com/assetlink/ledger-gateway/internal/wallet"
)

// Credentials binds an X.509 gateway identity to its signing function. The
// signing function closes over the parsed private key; the raw key material
// is never retained or exposed past construction.
type Credentials struct {
	Identity *identity.X509Identity
	Sign     identity.Sign
}

// WalletCredentials resolves the ledger identity stored under username into
// signing credentials. Key bytes are read fresh from the wallet on every call
// so a rotated identity takes effect without a restart.
func WalletCredentials(w *wallet.Wallet, username string) (*Credentials, error) {
	id, err := w.Get(username)
	if err != nil {
		return nil, err
	}
	return newCredentials(id.MSPID, []byte(id.Certificate), []byte(id.PrivateKey))
}

// FileCredentials resolves the fixed deployment identity from flat files: the
// configured certificate plus the single private key file in the key
// directory. Zero or more than one key file is a configuration error.
func FileCredentials(cfg *config.FabricConfig) (*Credentials, error) {
	certPEM, err := os.ReadFile(cfg.CertPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading certificate %s: %v", ErrConfiguration, cfg.CertPath, err)
	}

	keyPEM, err := readSoleKeyFile(cfg.KeyDirectoryPath)
	if err != nil {
		return nil, err
	}

	return newCredentials(cfg.MSPID, certPEM, keyPEM)
}

// readSoleKeyFile reads the one private key file expected in dir.
func readSoleKeyFile(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading key directory %s: %v", ErrConfiguration, dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	if len(names) != 1 {
		return nil, fmt.Errorf("%w: key directory %s must contain exactly one file, found %d", ErrConfiguration, dir, len(names))
	}

	keyPEM, err := os.ReadFile(filepath.Join(dir, names[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: reading private key: %v", ErrConfiguration, err)
	}
	return keyPEM, nil
}

func newCredentials(mspID string, certPEM, keyPEM []byte) (*Credentials, error) {
	cert, err := identity.CertificateFromPEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}

	id, err := identity.NewX509Identity(mspID, cert)
	if err != nil {
		return nil, fmt.Errorf("building identity: %w", err)
	}

	key, err := identity.PrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	sign, err := identity.NewPrivateKeySign(key)
	if err != nil {
		return nil, fmt.Errorf("building signer: %w", err)
	}

	return &Credentials{Identity: id, Sign: sign}, nil
}
