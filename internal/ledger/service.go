// ABOUTME: Transaction executor for the asset-transfer contract
// ABOUTME: Wraps evaluate/submit with error classification and structured logging

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Contract is the slice of the gateway contract API the executor needs.
// *client.Contract satisfies it.
type Contract interface {
	EvaluateTransaction(name string, args ...string) ([]byte, error)
	SubmitTransaction(name string, args ...string) ([]byte, error)
}

// Asset mirrors the asset-transfer-basic chaincode's world-state record,
// including its capitalized JSON keys.
type Asset struct {
	ID             string `json:"ID"`
	Color          string `json:"Color"`
	Size           int    `json:"Size"`
	Owner          string `json:"Owner"`
	AppraisedValue int    `json:"AppraisedValue"`
}

// CreateAssetRequest carries the caller-supplied fields for a new asset. The
// asset ID is allocated server-side.
type CreateAssetRequest struct {
	Color          string `json:"color"`
	Size           int    `json:"size"`
	Owner          string `json:"owner"`
	AppraisedValue int    `json:"appraisedValue"`
}

// Executor runs chaincode transactions against one contract and maps gateway
// failures onto the package's error taxonomy.
type Executor struct {
	contract Contract
	logger   *slog.Logger
}

// NewExecutor wraps contract for transaction execution.
func NewExecutor(contract Contract) *Executor {
	return &Executor{
		contract: contract,
		logger:   slog.Default().With("component", "ledger"),
	}
}

// Evaluate runs a read-only query against a single peer. No state is written
// and no transaction is ordered.
func (e *Executor) Evaluate(function string, args ...string) ([]byte, error) {
	result, err := e.contract.EvaluateTransaction(function, args...)
	if err != nil {
		return nil, e.mapError("evaluate", function, err)
	}
	return result, nil
}

// Submit endorses, orders, and commits a state-changing transaction, blocking
// until the peer reports commit status.
func (e *Executor) Submit(function string, args ...string) ([]byte, error) {
	result, err := e.contract.SubmitTransaction(function, args...)
	if err != nil {
		return nil, e.mapError("submit", function, err)
	}
	return result, nil
}

// InitLedger seeds the contract's baseline asset set. Safe to call on a fresh
// channel; the chaincode rejects re-initialization of existing assets.
func (e *Executor) InitLedger() error {
	_, err := e.Submit("InitLedger")
	return err
}

// GetAllAssets returns every asset in the world state.
func (e *Executor) GetAllAssets() ([]Asset, error) {
	result, err := e.Evaluate("GetAllAssets")
	if err != nil {
		return nil, err
	}

	// An empty world state comes back as empty bytes, not an empty array.
	if len(result) == 0 {
		return []Asset{}, nil
	}

	var assets []Asset
	if err := json.Unmarshal(result, &assets); err != nil {
		return nil, fmt.Errorf("%w: decoding asset list: %v", ErrMalformedResult, err)
	}
	return assets, nil
}

// ReadAsset returns the asset stored under id.
func (e *Executor) ReadAsset(id string) (*Asset, error) {
	result, err := e.Evaluate("ReadAsset", id)
	if err != nil {
		return nil, err
	}

	var asset Asset
	if err := json.Unmarshal(result, &asset); err != nil {
		return nil, fmt.Errorf("%w: decoding asset %s: %v", ErrMalformedResult, id, err)
	}
	return &asset, nil
}

// CreateAsset writes a new asset with a server-allocated time-based ID and
// returns that ID.
func (e *Executor) CreateAsset(req *CreateAssetRequest) (string, error) {
	id := fmt.Sprintf("asset%d", time.Now().UnixMilli())

	_, err := e.Submit("CreateAsset",
		id,
		req.Color,
		strconv.Itoa(req.Size),
		req.Owner,
		strconv.Itoa(req.AppraisedValue),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// mapError classifies a gateway failure onto the package sentinels and logs
// the endorsement detail the gateway attaches for multi-peer failures.
func (e *Executor) mapError(op, function string, err error) error {
	st, ok := status.FromError(err)
	if ok {
		for _, detail := range st.Details() {
			if d, ok := detail.(*gateway.ErrorDetail); ok {
				e.logger.Error("ledger operation failed",
					"op", op,
					"function", function,
					"address", d.GetAddress(),
					"msp_id", d.GetMspId(),
					"message", d.GetMessage())
			}
		}
	}

	wrap := func(sentinel error) error {
		return fmt.Errorf("%w: %s %s: %v", sentinel, op, function, err)
	}

	switch {
	case ok && st.Code() == codes.DeadlineExceeded,
		errors.Is(err, context.DeadlineExceeded):
		return wrap(ErrTimeout)
	case ok && st.Code() == codes.Unavailable:
		return wrap(ErrTransport)
	case strings.Contains(err.Error(), "does not exist"):
		return wrap(ErrNotFound)
	default:
		e.logger.Error("ledger operation failed", "op", op, "function", function, "error", err)
		return fmt.Errorf("%s %s: %w", op, function, err)
	}
}
