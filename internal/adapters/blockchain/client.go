package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/config"
	"github.com/dungeondelvers/delvectl/internal/usecase"
	"github.com/dungeondelvers/delvectl/pkg/abiconv"
)

// Backend is the subset of ethclient.Client the chain client needs
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Dialer opens a Backend for an RPC URL
type Dialer func(ctx context.Context, rpcURL string) (Backend, error)

// DialEthClient is the default Dialer
func DialEthClient(ctx context.Context, rpcURL string) (Backend, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

// ClientAdapter implements usecase.ChainClient over JSON-RPC. It signs with
// a single key and tracks that key's nonce locally; transactions are sent one
// at a time and each waits for its confirmations before returning.
type ClientAdapter struct {
	cfg  *config.RuntimeConfig
	dial Dialer
	log  *slog.Logger

	mu          sync.Mutex
	backend     Backend
	chainID     *big.Int
	key         *ecdsa.PrivateKey
	nonce       uint64
	nonceLoaded bool
}

// NewClientAdapter creates a chain client that connects on first use
func NewClientAdapter(cfg *config.RuntimeConfig, log *slog.Logger) *ClientAdapter {
	return NewClientAdapterWithDialer(cfg, DialEthClient, log)
}

// NewClientAdapterWithDialer creates a chain client with a custom dialer
func NewClientAdapterWithDialer(cfg *config.RuntimeConfig, dial Dialer, log *slog.Logger) *ClientAdapter {
	return &ClientAdapter{
		cfg:  cfg,
		dial: dial,
		log:  log.With("component", "ChainClient"),
	}
}

func (c *ClientAdapter) connect(ctx context.Context) (Backend, error) {
	if c.backend != nil {
		return c.backend, nil
	}
	if c.cfg.Network.RPCURL == "" {
		return nil, &domain.RpcError{Op: "connect", Err: errors.New("no RPC URL configured")}
	}

	backend, err := c.dial(ctx, c.cfg.Network.RPCURL)
	if err != nil {
		return nil, &domain.RpcError{Op: "connect", Err: err}
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, &domain.RpcError{Op: "eth_chainId", Err: err}
	}
	if expected := c.cfg.Network.ChainID; expected != 0 && expected != chainID.Uint64() {
		return nil, &domain.ChainMismatchError{Source: "config", Expected: expected, Actual: chainID.Uint64()}
	}

	c.backend = backend
	c.chainID = chainID
	c.log.Debug("connected", "rpc", c.cfg.Network.RPCURL, "chain_id", chainID.Uint64())
	return backend, nil
}

func (c *ClientAdapter) signer() (*ecdsa.PrivateKey, error) {
	if c.key != nil {
		return c.key, nil
	}
	raw := strings.TrimPrefix(strings.TrimSpace(c.cfg.Signer.PrivateKey), "0x")
	if raw == "" {
		return nil, errors.New("no signer configured: set DELVE_PRIVATE_KEY")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	c.key = key
	return key, nil
}

// ChainID returns the chain id reported by the RPC endpoint
func (c *ClientAdapter) ChainID(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.connect(ctx); err != nil {
		return 0, err
	}
	return c.chainID.Uint64(), nil
}

// SignerAddress returns the address of the configured key
func (c *ClientAdapter) SignerAddress(context.Context) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.signer()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// Balance returns the latest balance of an account
func (c *ClientAdapter) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	backend, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, &domain.RpcError{Op: "eth_getBalance", Err: err}
	}
	return balance, nil
}

// Call executes a read-only call against the latest block
func (c *ClientAdapter) Call(ctx context.Context, to common.Address, method *abiconv.Method, args []any) ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	backend, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	data, err := method.Pack(args)
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{To: &to, Data: data}
	if key, err := c.signer(); err == nil {
		msg.From = crypto.PubkeyToAddress(key.PublicKey)
	}

	callCtx, cancel := c.withTimeout(ctx, c.cfg.Tx.CallTimeout)
	defer cancel()

	out, err := backend.CallContract(callCtx, msg, nil)
	if err != nil {
		return nil, classifyCallError(method.Sig, err)
	}
	if len(out) == 0 && len(method.Outputs) > 0 {
		return nil, fmt.Errorf("%s: empty return data (no contract at %s?)", method.Sig, to.Hex())
	}
	values, err := method.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to decode result: %w", method.Sig, err)
	}
	return values, nil
}

// Send signs and submits a call to a contract and waits for it to be mined
func (c *ClientAdapter) Send(ctx context.Context, to common.Address, method *abiconv.Method, args []any) (*usecase.TxReceipt, error) {
	data, err := method.Pack(args)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	receipt, err := c.transact(ctx, method.Sig, &to, data)
	if err != nil {
		return nil, err
	}
	return toTxReceipt(receipt), nil
}

// Deploy sends a contract creation transaction
func (c *ClientAdapter) Deploy(ctx context.Context, bytecode []byte, contractABI *abi.ABI, args []any) (*usecase.DeployResult, error) {
	encoded, err := abiconv.EncodeConstructorArgs(contractABI, args)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(bytecode)+len(encoded))
	data = append(data, bytecode...)
	data = append(data, encoded...)

	c.mu.Lock()
	defer c.mu.Unlock()

	receipt, err := c.transact(ctx, "constructor", nil, data)
	if err != nil {
		return nil, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("receipt for %s has no contract address", receipt.TxHash.Hex())
	}
	return &usecase.DeployResult{
		Address:     receipt.ContractAddress,
		Receipt:     *toTxReceipt(receipt),
		EncodedArgs: encoded,
	}, nil
}

// transact estimates, signs, submits and confirms one transaction. Callers
// hold c.mu.
func (c *ClientAdapter) transact(ctx context.Context, op string, to *common.Address, data []byte) (*types.Receipt, error) {
	backend, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	key, err := c.signer()
	if err != nil {
		return nil, err
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	msg := ethereum.CallMsg{From: from, To: to, Data: data}
	gas, err := backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, classifyCallError(op, err)
	}
	gasLimit := gas * c.gasMultiplierPercent() / 100

	gasPrice, err := c.gasPrice(ctx, backend)
	if err != nil {
		return nil, err
	}

	required := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	balance, err := backend.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, &domain.RpcError{Op: "eth_getBalance", Err: err}
	}
	if balance.Cmp(required) < 0 {
		return nil, &domain.InsufficientFundsError{Account: from.Hex(), Balance: balance.String(), Required: required.String()}
	}

	if !c.nonceLoaded {
		nonce, err := backend.PendingNonceAt(ctx, from)
		if err != nil {
			return nil, &domain.RpcError{Op: "eth_getTransactionCount", Err: err}
		}
		c.nonce, c.nonceLoaded = nonce, true
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    c.nonce,
		To:       to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		// the node may have seen a nonce we did not; reload it next time
		c.nonceLoaded = false
		if isInsufficientFunds(err) {
			return nil, &domain.InsufficientFundsError{Account: from.Hex(), Balance: balance.String(), Required: required.String()}
		}
		return nil, &domain.RpcError{Op: "eth_sendRawTransaction", Err: err}
	}
	c.nonce++

	c.log.Info("transaction sent", "op", op, "tx", signed.Hash().Hex(), "nonce", signed.Nonce(), "gas", gasLimit)

	receipt, err := c.waitConfirmed(ctx, backend, op, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, c.revertReason(ctx, backend, op, msg, receipt)
	}
	return receipt, nil
}

// waitConfirmed polls for the receipt until it has the configured number of
// confirmations or the tx timeout elapses
func (c *ClientAdapter) waitConfirmed(ctx context.Context, backend Backend, op string, hash common.Hash) (*types.Receipt, error) {
	timeout := c.cfg.Tx.TxTimeout
	waitCtx, cancel := c.withTimeout(ctx, timeout)
	defer cancel()

	confirmations := c.cfg.Tx.Confirmations
	if confirmations == 0 {
		confirmations = 1
	}

	var receipt *types.Receipt
	poll := func() error {
		if receipt == nil {
			r, err := backend.TransactionReceipt(waitCtx, hash)
			if err != nil {
				if !errors.Is(err, ethereum.NotFound) {
					c.log.Debug("receipt lookup failed", "tx", hash.Hex(), "error", err)
				}
				return errPending
			}
			receipt = r
		}
		head, err := backend.BlockNumber(waitCtx)
		if err != nil {
			return errPending
		}
		if head+1 < receipt.BlockNumber.Uint64()+confirmations {
			return errPending
		}
		return nil
	}

	interval := c.cfg.Tx.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	err := backoff.Retry(poll, backoff.WithContext(backoff.NewConstantBackOff(interval), waitCtx))
	if err != nil {
		if ctx.Err() != nil && !errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, &domain.TimeoutError{Op: op, TxHash: hash.Hex(), After: timeout.String()}
	}
	return receipt, nil
}

var errPending = errors.New("transaction pending")

// revertReason replays a failed transaction at its block to recover the
// revert message
func (c *ClientAdapter) revertReason(ctx context.Context, backend Backend, op string, msg ethereum.CallMsg, receipt *types.Receipt) error {
	revert := &domain.RevertError{Method: op, TxHash: receipt.TxHash.Hex()}
	msg.Gas = receipt.GasUsed
	if _, err := backend.CallContract(ctx, msg, receipt.BlockNumber); err != nil {
		var replayed *domain.RevertError
		if errors.As(classifyCallError(op, err), &replayed) {
			revert.Reason = replayed.Reason
		}
	}
	return revert
}

func (c *ClientAdapter) gasPrice(ctx context.Context, backend Backend) (*big.Int, error) {
	if c.cfg.Tx.GasPriceGwei > 0 {
		wei := new(big.Float).Mul(big.NewFloat(c.cfg.Tx.GasPriceGwei), big.NewFloat(1e9))
		price, _ := wei.Int(nil)
		return price, nil
	}
	price, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &domain.RpcError{Op: "eth_gasPrice", Err: err}
	}
	return price, nil
}

func (c *ClientAdapter) gasMultiplierPercent() uint64 {
	if c.cfg.Tx.GasLimitMultiplier < 1 {
		return 100
	}
	return uint64(math.Round(c.cfg.Tx.GasLimitMultiplier * 100))
}

func (c *ClientAdapter) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func toTxReceipt(r *types.Receipt) *usecase.TxReceipt {
	out := &usecase.TxReceipt{TxHash: r.TxHash, GasUsed: r.GasUsed}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}

// classifyCallError turns eth_call / eth_estimateGas failures into domain
// errors. Reverts carry the decoded Error(string) or custom error data.
func classifyCallError(op string, err error) error {
	if isInsufficientFunds(err) {
		return &domain.InsufficientFundsError{Account: "signer", Balance: "?", Required: "?"}
	}

	var dataErr interface{ ErrorData() interface{} }
	if errors.As(err, &dataErr) {
		if reason, ok := decodeRevertData(dataErr.ErrorData()); ok {
			return &domain.RevertError{Method: op, Reason: reason}
		}
	}

	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted"); idx >= 0 {
		reason := strings.TrimPrefix(msg[idx+len("execution reverted"):], ":")
		return &domain.RevertError{Method: op, Reason: strings.TrimSpace(reason)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.TimeoutError{Op: op, After: "call timeout"}
	}
	return &domain.RpcError{Op: op, Err: err}
}

func decodeRevertData(data interface{}) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil || len(raw) < 4 {
		return "", false
	}
	if reason, err := abi.UnpackRevert(raw); err == nil {
		return reason, true
	}
	// custom error: report the selector and payload
	return "custom error " + s, true
}

func isInsufficientFunds(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}

// Ensure the adapter implements the interface
var _ usecase.ChainClient = (*ClientAdapter)(nil)
