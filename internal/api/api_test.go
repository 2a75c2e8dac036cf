// ABOUTME: Tests for the HTTP API handlers and auth middleware
// ABOUTME: Uses httptest with a fake ledger and an in-memory user store

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetlink/ledger-gateway/internal/auth"
	"github.com/assetlink/ledger-gateway/internal/ledger"
	"github.com/assetlink/ledger-gateway/internal/store"
	"github.com/assetlink/ledger-gateway/internal/wallet"
)

// fakeLedger records the identity each call ran as and replays canned data.
type fakeLedger struct {
	lastUsername string
	assets       []ledger.Asset
	err          error
}

func (f *fakeLedger) InitLedger(username string) error {
	f.lastUsername = username
	return f.err
}

func (f *fakeLedger) GetAllAssets(username string) ([]ledger.Asset, error) {
	f.lastUsername = username
	return f.assets, f.err
}

func (f *fakeLedger) ReadAsset(username, id string) (*ledger.Asset, error) {
	f.lastUsername = username
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.assets {
		if f.assets[i].ID == id {
			return &f.assets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: asset %s", ledger.ErrNotFound, id)
}

func (f *fakeLedger) CreateAsset(username string, req *ledger.CreateAssetRequest) (string, error) {
	f.lastUsername = username
	if f.err != nil {
		return "", f.err
	}
	return "asset1756500000000", nil
}

type fakeEnroller struct{}

func (fakeEnroller) EnrollAdmin(ctx context.Context, w *wallet.Wallet, mspID, adminID, adminSecret string) error {
	return nil
}

func (fakeEnroller) RegisterAndEnroll(ctx context.Context, w *wallet.Wallet, mspID, username, affiliation string) error {
	return nil
}

type testAPI struct {
	server *httptest.Server
	ledger *fakeLedger
}

func createTestAPI(t *testing.T) *testAPI {
	t.Helper()

	users, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { users.Close() })

	w, err := wallet.New(filepath.Join(t.TempDir(), "wallet"))
	require.NoError(t, err)

	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	accounts := auth.NewService(users, w, fakeEnroller{}, verifier, auth.EnrollmentConfig{
		MSPID:       "Org1MSP",
		AdminID:     "admin",
		AdminSecret: "adminpw",
		Affiliation: "org1.department1",
	}, time.Hour)

	fl := &fakeLedger{}
	mux := http.NewServeMux()
	NewHandler(accounts, verifier, fl).Routes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testAPI{server: server, ledger: fl}
}

func (a *testAPI) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testAPI) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	resp := a.request(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username, "password": "pw123456",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username, "password": "pw123456",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.NotEmpty(t, login.Token)
	return login.Token
}

// --- Auth Endpoint Tests ---

func TestHealthCheck(t *testing.T) {
	api := createTestAPI(t)

	resp := api.request(t, http.MethodGet, "/health-check", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	api := createTestAPI(t)

	resp := api.request(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "password": "pw123456", "firstname": "Alice", "lastname": "Liddell",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Alice", user.Firstname)
}

func TestRegister_Duplicate(t *testing.T) {
	api := createTestAPI(t)
	api.registerAndLogin(t, "alice")

	resp := api.request(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "password": "pw123456",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRegister_InvalidUsername(t *testing.T) {
	api := createTestAPI(t)

	resp := api.request(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "_reserved", "password": "pw123456",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_WrongPassword(t *testing.T) {
	api := createTestAPI(t)
	api.registerAndLogin(t, "alice")

	resp := api.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfile(t *testing.T) {
	api := createTestAPI(t)
	token := api.registerAndLogin(t, "alice")

	resp := api.request(t, http.MethodGet, "/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)
}

// --- Middleware Tests ---

func TestAuthMiddleware(t *testing.T) {
	api := createTestAPI(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, api.server.URL+"/auth/profile", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := api.server.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

// --- Ledger Endpoint Tests ---

func TestAllAssets(t *testing.T) {
	api := createTestAPI(t)
	token := api.registerAndLogin(t, "alice")
	api.ledger.assets = []ledger.Asset{
		{ID: "asset1", Color: "blue", Size: 5, Owner: "Tomoko", AppraisedValue: 300},
	}

	resp := api.request(t, http.MethodGet, "/networks/all-assets", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var assets []ledger.Asset
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&assets))
	require.Len(t, assets, 1)
	assert.Equal(t, "asset1", assets[0].ID)

	// Ledger calls run as the token's identity
	assert.Equal(t, "alice", api.ledger.lastUsername)
}

func TestReadAsset(t *testing.T) {
	api := createTestAPI(t)
	token := api.registerAndLogin(t, "alice")
	api.ledger.assets = []ledger.Asset{{ID: "asset7", Color: "green", Size: 12, Owner: "Ana", AppraisedValue: 700}}

	resp := api.request(t, http.MethodGet, "/networks/read-asset/asset7", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var asset ledger.Asset
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&asset))
	assert.Equal(t, "green", asset.Color)
}

func TestReadAsset_NotFound(t *testing.T) {
	api := createTestAPI(t)
	token := api.registerAndLogin(t, "alice")

	resp := api.request(t, http.MethodGet, "/networks/read-asset/asset99", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAsset(t *testing.T) {
	api := createTestAPI(t)
	token := api.registerAndLogin(t, "alice")

	resp := api.request(t, http.MethodPost, "/networks/create-asset", token, map[string]any{
		"color": "purple", "size": 8, "owner": "Dana", "appraisedValue": 950,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created CreateAssetResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
}

func TestInitLedger(t *testing.T) {
	api := createTestAPI(t)
	token := api.registerAndLogin(t, "alice")

	resp := api.request(t, http.MethodPost, "/networks/init-ledger", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", api.ledger.lastUsername)
}

// --- Error Mapping Tests ---

func TestLedgerErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"timeout", ledger.ErrTimeout, http.StatusGatewayTimeout},
		{"transport", ledger.ErrTransport, http.StatusBadGateway},
		{"malformed", ledger.ErrMalformedResult, http.StatusBadGateway},
		{"missing wallet identity", wallet.ErrNotFound, http.StatusNotFound},
		{"configuration", ledger.ErrConfiguration, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := createTestAPI(t)
			token := api.registerAndLogin(t, "alice")
			api.ledger.err = tt.err

			resp := api.request(t, http.MethodGet, "/networks/all-assets", token, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
