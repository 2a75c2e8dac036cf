// ABOUTME: Filesystem-backed wallet mapping usernames to ledger identities
// ABOUTME: One JSON document per identity holding mspId, certificate, and private key

package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no identity is stored under the requested label
var ErrNotFound = errors.New("identity not found in wallet")

// ErrAlreadyExists is returned when putting an identity under a label that is taken
var ErrAlreadyExists = errors.New("identity already exists in wallet")

// ErrInvalidLabel is returned for labels that cannot be used as wallet keys
var ErrInvalidLabel = errors.New("invalid wallet label")

// AdminLabel is the reserved wallet key for the administrative identity.
// Usernames are validated elsewhere to never start with an underscore, so
// this label cannot collide with any application user.
const AdminLabel = "__gateway-admin"

// Identity is a ledger identity: the MSP the certificate belongs to plus the
// PEM-encoded certificate and private key pair.
type Identity struct {
	MSPID       string
	Certificate string
	PrivateKey  string
}

// identityDocument is the on-disk JSON layout, matching the .id documents
// written by the Fabric SDK wallets so stores can be shared between tools.
type identityDocument struct {
	Version     int    `json:"version"`
	MSPID       string `json:"mspId"`
	Type        string `json:"type"`
	Credentials struct {
		Certificate string `json:"certificate"`
		PrivateKey  string `json:"privateKey"`
	} `json:"credentials"`
}

// Wallet is a directory-per-identity credential store. It is read far more
// often than written; single put/get operations are atomic at the file level
// and no further concurrency guarantee is provided.
type Wallet struct {
	dir    string
	logger *slog.Logger
}

// New opens (creating if necessary) a wallet rooted at dir.
func New(dir string) (*Wallet, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating wallet directory: %w", err)
	}
	return &Wallet{
		dir:    dir,
		logger: slog.Default().With("component", "wallet"),
	}, nil
}

// Exists reports whether an identity is stored under label.
func (w *Wallet) Exists(label string) (bool, error) {
	path, err := w.path(label)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking wallet entry: %w", err)
	}
	return true, nil
}

// Get loads the identity stored under label.
func (w *Wallet) Get(label string) (*Identity, error) {
	path, err := w.path(label)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, label)
		}
		return nil, fmt.Errorf("reading wallet entry: %w", err)
	}

	var doc identityDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding wallet entry %s: %w", label, err)
	}

	return &Identity{
		MSPID:       doc.MSPID,
		Certificate: doc.Credentials.Certificate,
		PrivateKey:  doc.Credentials.PrivateKey,
	}, nil
}

// Put stores identity under label. It fails with ErrAlreadyExists if the
// label is taken; use Replace to overwrite explicitly.
func (w *Wallet) Put(label string, identity *Identity) error {
	exists, err := w.Exists(label)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, label)
	}
	return w.write(label, identity)
}

// Replace stores identity under label, overwriting any existing entry.
func (w *Wallet) Replace(label string, identity *Identity) error {
	return w.write(label, identity)
}

// Remove deletes the identity stored under label, if any.
func (w *Wallet) Remove(label string) error {
	path, err := w.path(label)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing wallet entry: %w", err)
	}
	return nil
}

func (w *Wallet) write(label string, identity *Identity) error {
	path, err := w.path(label)
	if err != nil {
		return err
	}

	var doc identityDocument
	doc.Version = 1
	doc.MSPID = identity.MSPID
	doc.Type = "X.509"
	doc.Credentials.Certificate = identity.Certificate
	doc.Credentials.PrivateKey = identity.PrivateKey

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding wallet entry: %w", err)
	}

	// Private key material: owner-only permissions
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing wallet entry: %w", err)
	}

	w.logger.Debug("stored wallet identity", "label", label, "msp_id", identity.MSPID)
	return nil
}

// path maps a label to its file, rejecting labels that would escape the
// wallet directory.
func (w *Wallet) path(label string) (string, error) {
	if label == "" || strings.ContainsAny(label, "/\\") || strings.Contains(label, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return filepath.Join(w.dir, label+".id"), nil
}
