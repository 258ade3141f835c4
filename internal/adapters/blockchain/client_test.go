package blockchain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/config"
	"github.com/dungeondelvers/delvectl/pkg/abiconv"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type revertDataError struct{ data string }

func (e *revertDataError) Error() string          { return "execution reverted" }
func (e *revertDataError) ErrorData() interface{} { return e.data }

// fakeBackend mines every transaction in the block after it is sent
type fakeBackend struct {
	mu sync.Mutex

	chainID     int64
	balance     *big.Int
	nonce       uint64
	estimate    uint64
	estimateErr error
	callResult  []byte
	callErr     error
	failTx      bool
	neverMine   bool

	head     uint64
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:  56,
		balance:  big.NewInt(1e18),
		nonce:    5,
		estimate: 100_000,
		head:     10,
		receipts: map[common.Hash]*types.Receipt{},
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(f.chainID), nil }

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(3e9), nil }

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.estimate, f.estimateErr
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callResult, f.callErr
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, tx)
	if f.neverMine {
		return nil
	}
	f.head++
	status := types.ReceiptStatusSuccessful
	if f.failTx {
		status = types.ReceiptStatusFailed
	}
	receipt := &types.Receipt{
		TxHash:      tx.Hash(),
		Status:      status,
		BlockNumber: new(big.Int).SetUint64(f.head),
		GasUsed:     tx.Gas() / 2,
	}
	if tx.To() == nil {
		receipt.ContractAddress = crypto.CreateAddress(common.Address{}, tx.Nonce())
	}
	f.receipts[tx.Hash()] = receipt
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func newTestClient(backend *fakeBackend, mutate ...func(*config.RuntimeConfig)) *ClientAdapter {
	cfg := &config.RuntimeConfig{
		Network: config.Network{ChainID: 56, RPCURL: "http://rpc.test"},
		Signer:  config.Signer{PrivateKey: "0x" + testKey},
		Tx: config.TxSettings{
			Confirmations:      1,
			TxTimeout:          time.Second,
			CallTimeout:        time.Second,
			PollInterval:       time.Millisecond,
			GasLimitMultiplier: 1.2,
		},
	}
	for _, m := range mutate {
		m(cfg)
	}
	dial := func(context.Context, string) (Backend, error) { return backend, nil }
	return NewClientAdapterWithDialer(cfg, dial, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func revertPayload(t *testing.T, reason string) string {
	t.Helper()
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	require.NoError(t, err)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

func TestClientAdapter_Deploy(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(backend)
	ctx := context.Background()

	first, err := client.Deploy(ctx, []byte{0x60, 0x80}, nil, nil)
	require.NoError(t, err)
	second, err := client.Deploy(ctx, []byte{0x60, 0x80}, nil, nil)
	require.NoError(t, err)

	require.Len(t, backend.sent, 2)
	assert.Equal(t, uint64(5), backend.sent[0].Nonce())
	assert.Equal(t, uint64(6), backend.sent[1].Nonce())
	assert.Equal(t, uint64(120_000), backend.sent[0].Gas())
	assert.Equal(t, big.NewInt(3e9), backend.sent[0].GasPrice())
	assert.Nil(t, backend.sent[0].To())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(56)), backend.sent[0])
	require.NoError(t, err)
	signer, err := client.SignerAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, signer, sender)

	assert.NotEqual(t, first.Address, second.Address)
	assert.Equal(t, backend.sent[0].Hash(), first.Receipt.TxHash)
	assert.Equal(t, uint64(11), first.Receipt.BlockNumber)
	assert.Empty(t, first.EncodedArgs)
}

func TestClientAdapter_DeployWithConstructorArgs(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(`[{"type":"constructor","inputs":[{"name":"core","type":"address"}]}]`))
	require.NoError(t, err)
	backend := newFakeBackend()
	core := common.HexToAddress("0x00000000000000000000000000000000000000c0")

	result, err := newTestClient(backend).Deploy(context.Background(), []byte{0x60, 0x80}, &parsed, []any{core})
	require.NoError(t, err)

	assert.Len(t, result.EncodedArgs, 32)
	assert.Equal(t, core.Bytes(), result.EncodedArgs[12:])
	assert.Equal(t, append([]byte{0x60, 0x80}, result.EncodedArgs...), backend.sent[0].Data())
}

func TestClientAdapter_SendErrors(t *testing.T) {
	method, err := abiconv.ResolveMethod(nil, "setDungeonCore", []any{common.HexToAddress("0xc0")})
	require.NoError(t, err)
	target := common.HexToAddress("0x00000000000000000000000000000000000000e0")

	t.Run("revert during estimation", func(t *testing.T) {
		backend := newFakeBackend()
		backend.estimateErr = &revertDataError{data: revertPayload(t, "Ownable: caller is not the owner")}

		_, err := newTestClient(backend).Send(context.Background(), target, method, []any{common.HexToAddress("0xc0")})

		var revert *domain.RevertError
		require.ErrorAs(t, err, &revert)
		assert.Equal(t, "Ownable: caller is not the owner", revert.Reason)
		assert.Equal(t, "setDungeonCore(address)", revert.Method)
		assert.Empty(t, backend.sent)
	})

	t.Run("revert message without data", func(t *testing.T) {
		backend := newFakeBackend()
		backend.estimateErr = errors.New("execution reverted: already set")

		_, err := newTestClient(backend).Send(context.Background(), target, method, []any{common.HexToAddress("0xc0")})

		var revert *domain.RevertError
		require.ErrorAs(t, err, &revert)
		assert.Equal(t, "already set", revert.Reason)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		backend := newFakeBackend()
		backend.balance = big.NewInt(1000)

		_, err := newTestClient(backend).Send(context.Background(), target, method, []any{common.HexToAddress("0xc0")})

		var funds *domain.InsufficientFundsError
		require.ErrorAs(t, err, &funds)
		assert.Equal(t, "1000", funds.Balance)
		assert.Empty(t, backend.sent)
	})

	t.Run("receipt timeout", func(t *testing.T) {
		backend := newFakeBackend()
		backend.neverMine = true
		client := newTestClient(backend, func(c *config.RuntimeConfig) { c.Tx.TxTimeout = 20 * time.Millisecond })

		_, err := client.Send(context.Background(), target, method, []any{common.HexToAddress("0xc0")})

		var timeout *domain.TimeoutError
		require.ErrorAs(t, err, &timeout)
		assert.Equal(t, backend.sent[0].Hash().Hex(), timeout.TxHash)
		assert.Equal(t, domain.ErrorKindTimeout, domain.ClassifyError(err))
	})

	t.Run("mined but reverted", func(t *testing.T) {
		backend := newFakeBackend()
		backend.failTx = true
		backend.callErr = errors.New("execution reverted: paused")

		_, err := newTestClient(backend).Send(context.Background(), target, method, []any{common.HexToAddress("0xc0")})

		var revert *domain.RevertError
		require.ErrorAs(t, err, &revert)
		assert.Equal(t, "paused", revert.Reason)
		assert.Equal(t, backend.sent[0].Hash().Hex(), revert.TxHash)
	})

	t.Run("no signer configured", func(t *testing.T) {
		backend := newFakeBackend()
		client := newTestClient(backend, func(c *config.RuntimeConfig) { c.Signer.PrivateKey = "" })

		_, err := client.Send(context.Background(), target, method, []any{common.HexToAddress("0xc0")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DELVE_PRIVATE_KEY")
		_, err = client.SignerAddress(context.Background())
		require.Error(t, err)
	})
}

func TestClientAdapter_Call(t *testing.T) {
	core := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	getter, err := abiconv.ResolveGetter(nil, "dungeonCore", nil, common.Address{})
	require.NoError(t, err)

	backend := newFakeBackend()
	backend.callResult = common.LeftPadBytes(core.Bytes(), 32)
	client := newTestClient(backend)

	out, err := client.Call(context.Background(), common.HexToAddress("0xe0"), getter, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, core, out[0])

	t.Run("empty return data", func(t *testing.T) {
		backend.callResult = nil
		_, err := client.Call(context.Background(), common.HexToAddress("0xe0"), getter, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty return data")
	})

	t.Run("chain id", func(t *testing.T) {
		id, err := client.ChainID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(56), id)
	})
}

func TestClientAdapter_ConnectFailure(t *testing.T) {
	cfg := &config.RuntimeConfig{Network: config.Network{RPCURL: "http://down.test"}}
	dial := func(context.Context, string) (Backend, error) { return nil, errors.New("connection refused") }
	client := NewClientAdapterWithDialer(cfg, dial, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := client.ChainID(context.Background())
	var rpcErr *domain.RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "connect", rpcErr.Op)
}

func TestClientAdapter_ChainMismatch(t *testing.T) {
	backend := newFakeBackend()
	backend.chainID = 31337
	client := newTestClient(backend)

	_, err := client.ChainID(context.Background())
	var mismatch *domain.ChainMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, uint64(56), mismatch.Expected)
	assert.Equal(t, uint64(31337), mismatch.Actual)

	_, err = client.Deploy(context.Background(), []byte{0x60, 0x80}, nil, nil)
	require.ErrorAs(t, err, &mismatch)
	assert.Empty(t, backend.sent)

	t.Run("unset chain id accepts any chain", func(t *testing.T) {
		client := newTestClient(backend, func(cfg *config.RuntimeConfig) { cfg.Network.ChainID = 0 })
		id, err := client.ChainID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(31337), id)
	})
}
