// ABOUTME: Tests for session open and teardown
// ABOUTME: gRPC channel creation is lazy, so no live peer is needed

package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetlink/ledger-gateway/internal/config"
)

func sessionConfig(t *testing.T) *config.FabricConfig {
	t.Helper()

	caPEM, _, _ := testIdentityPEM(t, "tlsca.org1.example.com")
	tlsPath := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(tlsPath, []byte(caPEM), 0o600))

	return &config.FabricConfig{
		ChannelName:   "mychannel",
		ChaincodeName: "basic",
		MSPID:         "Org1MSP",
		TLSCertPath:   tlsPath,
		PeerEndpoint:  "localhost:7051",
		PeerHostAlias: "peer0.org1.example.com",
	}
}

func sessionCredentials(t *testing.T) *Credentials {
	t.Helper()

	certPEM, keyPEM, _ := testIdentityPEM(t, "alice")
	creds, err := newCredentials("Org1MSP", []byte(certPEM), []byte(keyPEM))
	require.NoError(t, err)
	return creds
}

func TestOpen_MissingTLSCert(t *testing.T) {
	cfg := sessionConfig(t)
	cfg.TLSCertPath = filepath.Join(t.TempDir(), "missing.crt")

	_, err := Open(cfg, sessionCredentials(t))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestOpen_InvalidTLSCert(t *testing.T) {
	cfg := sessionConfig(t)
	require.NoError(t, os.WriteFile(cfg.TLSCertPath, []byte("not a certificate"), 0o600))

	_, err := Open(cfg, sessionCredentials(t))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSession_OpenAndClose(t *testing.T) {
	sess, err := Open(sessionConfig(t), sessionCredentials(t))
	require.NoError(t, err)
	require.NotNil(t, sess.Contract())

	require.NoError(t, sess.Close())

	// Close is idempotent
	assert.NoError(t, sess.Close())
}
