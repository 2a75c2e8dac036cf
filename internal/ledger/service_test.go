// ABOUTME: Tests for the transaction executor and its error classification
// ABOUTME: Runs against an in-memory fake contract, no peer required

package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeContract records calls and replays canned results per function name.
type fakeContract struct {
	results map[string][]byte
	errs    map[string]error

	evaluated []string
	submitted []string
	lastArgs  []string
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		results: map[string][]byte{},
		errs:    map[string]error{},
	}
}

func (f *fakeContract) EvaluateTransaction(name string, args ...string) ([]byte, error) {
	f.evaluated = append(f.evaluated, name)
	f.lastArgs = args
	return f.results[name], f.errs[name]
}

func (f *fakeContract) SubmitTransaction(name string, args ...string) ([]byte, error) {
	f.submitted = append(f.submitted, name)
	f.lastArgs = args
	return f.results[name], f.errs[name]
}

// --- Query Tests ---

func TestGetAllAssets(t *testing.T) {
	fc := newFakeContract()
	fc.results["GetAllAssets"] = []byte(`[
		{"ID":"asset1","Color":"blue","Size":5,"Owner":"Tomoko","AppraisedValue":300},
		{"ID":"asset2","Color":"red","Size":5,"Owner":"Brad","AppraisedValue":400}
	]`)

	assets, err := NewExecutor(fc).GetAllAssets()
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "asset1", assets[0].ID)
	assert.Equal(t, 300, assets[0].AppraisedValue)

	assert.Equal(t, []string{"GetAllAssets"}, fc.evaluated)
	assert.Empty(t, fc.submitted, "queries must not submit transactions")
}

func TestGetAllAssets_EmptyWorldState(t *testing.T) {
	assets, err := NewExecutor(newFakeContract()).GetAllAssets()
	require.NoError(t, err)
	assert.Empty(t, assets)
	assert.NotNil(t, assets)
}

func TestGetAllAssets_MalformedResult(t *testing.T) {
	fc := newFakeContract()
	fc.results["GetAllAssets"] = []byte(`{"not":"an array"}`)

	_, err := NewExecutor(fc).GetAllAssets()
	assert.ErrorIs(t, err, ErrMalformedResult)
}

func TestReadAsset(t *testing.T) {
	fc := newFakeContract()
	fc.results["ReadAsset"] = []byte(`{"ID":"asset7","Color":"green","Size":12,"Owner":"Ana","AppraisedValue":700}`)

	asset, err := NewExecutor(fc).ReadAsset("asset7")
	require.NoError(t, err)
	assert.Equal(t, "asset7", asset.ID)
	assert.Equal(t, "green", asset.Color)
	assert.Equal(t, []string{"asset7"}, fc.lastArgs)
}

func TestReadAsset_NotFound(t *testing.T) {
	fc := newFakeContract()
	fc.errs["ReadAsset"] = errors.New("the asset asset99 does not exist")

	_, err := NewExecutor(fc).ReadAsset("asset99")
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Mutation Tests ---

func TestInitLedger(t *testing.T) {
	fc := newFakeContract()
	require.NoError(t, NewExecutor(fc).InitLedger())
	assert.Equal(t, []string{"InitLedger"}, fc.submitted)
}

func TestCreateAsset(t *testing.T) {
	fc := newFakeContract()

	id, err := NewExecutor(fc).CreateAsset(&CreateAssetRequest{
		Color:          "purple",
		Size:           8,
		Owner:          "Dana",
		AppraisedValue: 950,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "asset"), "id %q must carry the asset prefix", id)

	require.Equal(t, []string{"CreateAsset"}, fc.submitted)
	require.Len(t, fc.lastArgs, 5)
	assert.Equal(t, id, fc.lastArgs[0])
	assert.Equal(t, []string{"purple", "8", "Dana", "950"}, fc.lastArgs[1:])
}

func TestCreateAsset_SubmitFailure(t *testing.T) {
	fc := newFakeContract()
	fc.errs["CreateAsset"] = status.Error(codes.Unavailable, "peer unreachable")

	id, err := NewExecutor(fc).CreateAsset(&CreateAssetRequest{Color: "gray", Size: 1, Owner: "x", AppraisedValue: 1})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Empty(t, id)
}

// --- Error Classification Tests ---

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline exceeded status", status.Error(codes.DeadlineExceeded, "evaluate timed out"), ErrTimeout},
		{"unavailable status", status.Error(codes.Unavailable, "connection refused"), ErrTransport},
		{"chaincode missing key", errors.New("the asset asset1 does not exist"), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeContract()
			fc.errs["GetAllAssets"] = tt.err

			_, err := NewExecutor(fc).GetAllAssets()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMapError_UnknownPassesThrough(t *testing.T) {
	fc := newFakeContract()
	fc.errs["GetAllAssets"] = errors.New("endorsement mismatch")

	_, err := NewExecutor(fc).GetAllAssets()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "endorsement mismatch")
}
