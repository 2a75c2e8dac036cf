// ABOUTME: Gateway session lifecycle over a mutually-authenticated gRPC channel
// ABOUTME: Opens, scopes, and tears down per-request connections to the peer

package ledger

import (
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/assetlink/ledger-gateway/internal/config"
)

// Per-phase deadlines for ledger operations. Commit status gets the longest
// window because it waits for ordering and validation across the network.
const (
	evaluateTimeout     = 5 * time.Second
	endorseTimeout      = 15 * time.Second
	submitTimeout       = 5 * time.Second
	commitStatusTimeout = time.Minute
)

// Session is a live gateway connection bound to one identity. Sessions are
// cheap to open and intended to be scoped to a single request: open, use the
// contract, close.
type Session struct {
	gateway *client.Gateway
	conn    *grpc.ClientConn
	cfg     *config.FabricConfig
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Open establishes a TLS-secured gRPC channel to the configured peer and
// connects a gateway instance signing as creds. The returned session owns the
// underlying connection; Close releases both.
func Open(cfg *config.FabricConfig, creds *Credentials) (*Session, error) {
	conn, err := newPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	gw, err := client.Connect(
		creds.Identity,
		client.WithSign(creds.Sign),
		client.WithClientConnection(conn),
		client.WithEvaluateTimeout(evaluateTimeout),
		client.WithEndorseTimeout(endorseTimeout),
		client.WithSubmitTimeout(submitTimeout),
		client.WithCommitStatusTimeout(commitStatusTimeout),
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: connecting gateway: %v", ErrTransport, err)
	}

	return &Session{
		gateway: gw,
		conn:    conn,
		cfg:     cfg,
		logger:  slog.Default().With("component", "ledger"),
	}, nil
}

// Contract returns the configured chaincode contract on the configured
// channel.
func (s *Session) Contract() *client.Contract {
	return s.gateway.GetNetwork(s.cfg.ChannelName).GetContract(s.cfg.ChaincodeName)
}

// Close tears down the gateway and its gRPC connection. Safe to call more
// than once; both halves are always attempted even if the first fails.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	gwErr := s.gateway.Close()
	connErr := s.conn.Close()
	if err := errors.Join(gwErr, connErr); err != nil {
		return fmt.Errorf("closing ledger session: %w", err)
	}
	return nil
}

// newPeerConnection builds the gRPC channel to the peer, authenticating the
// server against the organization's TLS CA and overriding the expected
// hostname for test-network style deployments that dial through localhost.
func newPeerConnection(cfg *config.FabricConfig) (*grpc.ClientConn, error) {
	pemBytes, err := os.ReadFile(cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading TLS certificate %s: %v", ErrConfiguration, cfg.TLSCertPath, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrConfiguration, cfg.TLSCertPath)
	}
	transport := credentials.NewClientTLSFromCert(pool, cfg.PeerHostAlias)

	conn, err := grpc.NewClient(cfg.PeerEndpoint, grpc.WithTransportCredentials(transport))
	if err != nil {
		return nil, fmt.Errorf("%w: dialing peer %s: %v", ErrTransport, cfg.PeerEndpoint, err)
	}
	return conn, nil
}
