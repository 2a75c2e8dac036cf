// ABOUTME: REST client for the organization's fabric-ca server
// ABOUTME: Implements CSR-based enroll and token-signed register calls

package ca

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/assetlink/ledger-gateway/internal/wallet"
)

// ErrAlreadyRegistered is returned when the CA reports that the identity
// being registered already exists.
var ErrAlreadyRegistered = errors.New("identity already registered with CA")

// Client talks to a fabric-ca server over its REST API.
type Client struct {
	url    string
	caName string
	httpc  *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New creates a CA client for the server at url. The test-network CA serves
// a self-signed TLS certificate, so verification follows the connection
// profile convention (verify: false) rather than the system trust store.
func New(url, caName string, opts ...Option) *Client {
	c := &Client{
		url:    strings.TrimRight(url, "/"),
		caName: caName,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		logger: slog.Default().With("component", "ca"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegistrationRequest describes an identity to register with the CA.
type RegistrationRequest struct {
	Name           string
	Type           string
	Affiliation    string
	MaxEnrollments int
}

// caResponse is the envelope every fabric-ca endpoint answers with.
type caResponse struct {
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result"`
	Errors   []caError       `json:"errors"`
	Messages []caError       `json:"messages"`
}

type caError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Enroll generates a fresh P-256 key pair, submits a CSR for enrollmentID
// authenticated with the enrollment secret, and returns the signed
// certificate together with the private key, both PEM-encoded.
func (c *Client) Enroll(ctx context.Context, enrollmentID, secret string) (certPEM, keyPEM string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating key: %w", err)
	}

	csrDER, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: enrollmentID},
		SignatureAlgorithm: x509.ECDSAWithSHA256,
	}, key)
	if err != nil {
		return "", "", fmt.Errorf("creating CSR: %w", err)
	}
	csrPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csrDER})

	body, err := json.Marshal(map[string]any{
		"certificate_request": string(csrPEM),
		"caname":              c.caName,
	})
	if err != nil {
		return "", "", fmt.Errorf("encoding enroll request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v1/enroll", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("building enroll request: %w", err)
	}
	req.SetBasicAuth(enrollmentID, secret)
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Cert string `json:"Cert"`
	}
	if err := c.do(req, &result); err != nil {
		return "", "", fmt.Errorf("enrolling %s: %w", enrollmentID, err)
	}

	certBytes, err := base64.StdEncoding.DecodeString(result.Cert)
	if err != nil {
		return "", "", fmt.Errorf("decoding enrollment certificate: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("encoding private key: %w", err)
	}
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}))

	c.logger.Debug("enrolled identity", "enrollment_id", enrollmentID)
	return string(certBytes), keyPEM, nil
}

// Register registers a new identity with the CA using the registrar's signing
// authority and returns the one-time enrollment secret the CA allocated.
func (c *Client) Register(ctx context.Context, registrar *wallet.Identity, request *RegistrationRequest) (string, error) {
	body, err := json.Marshal(map[string]any{
		"id":              request.Name,
		"type":            request.Type,
		"affiliation":     request.Affiliation,
		"max_enrollments": request.MaxEnrollments,
		"caname":          c.caName,
	})
	if err != nil {
		return "", fmt.Errorf("encoding register request: %w", err)
	}

	token, err := authToken(registrar, body)
	if err != nil {
		return "", fmt.Errorf("building auth token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v1/register", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building register request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Secret string `json:"secret"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("registering %s: %w", request.Name, err)
	}

	c.logger.Debug("registered identity", "name", request.Name, "affiliation", request.Affiliation)
	return result.Secret, nil
}

// do executes the request and unmarshals the CA's result payload into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("calling CA: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading CA response: %w", err)
	}

	var envelope caResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decoding CA response (status %d): %w", resp.StatusCode, err)
	}

	if !envelope.Success {
		msg := "unknown CA error"
		if len(envelope.Errors) > 0 {
			msg = envelope.Errors[0].Message
		}
		if strings.Contains(msg, "already registered") {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, msg)
		}
		return fmt.Errorf("CA request failed (status %d): %s", resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decoding CA result: %w", err)
		}
	}
	return nil
}

// authToken builds the fabric-ca authorization token: the registrar's
// base64 certificate joined with a base64 ECDSA signature over
// "b64(body).b64(cert)".
func authToken(registrar *wallet.Identity, body []byte) (string, error) {
	block, _ := pem.Decode([]byte(registrar.PrivateKey))
	if block == nil {
		return "", errors.New("registrar private key is not PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parsing registrar key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("registrar key is %T, want ECDSA", parsed)
	}

	b64Body := base64.StdEncoding.EncodeToString(body)
	b64Cert := base64.StdEncoding.EncodeToString([]byte(registrar.Certificate))

	digest := sha256.Sum256([]byte(b64Body + "." + b64Cert))
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return b64Cert + "." + base64.StdEncoding.EncodeToString(sig), nil
}
