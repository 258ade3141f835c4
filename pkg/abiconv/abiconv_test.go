package abiconv

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeondelvers/delvectl/internal/domain"
)

const heroABI = `[
	{"type":"constructor","inputs":[{"name":"core","type":"address"},{"name":"owner","type":"address"}]},
	{"type":"function","name":"setDungeonCore","stateMutability":"nonpayable","inputs":[{"name":"core","type":"address"}],"outputs":[]},
	{"type":"function","name":"dungeonCore","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"setMintPrice","stateMutability":"nonpayable","inputs":[{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setAuthorized","stateMutability":"nonpayable","inputs":[{"name":"who","type":"address"},{"name":"ok","type":"bool"}],"outputs":[]}
]`

func mustType(t *testing.T, s string) abi.Type {
	t.Helper()
	typ, err := abi.NewType(s, "", nil)
	require.NoError(t, err)
	return typ
}

func mustABI(t *testing.T) *abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(heroABI))
	require.NoError(t, err)
	return &parsed
}

func TestConvertValue(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name    string
		typ     string
		in      any
		want    any
		wantErr bool
	}{
		{name: "address from string", typ: "address", in: "0x00000000000000000000000000000000000000aA", want: addr},
		{name: "address passthrough", typ: "address", in: addr, want: addr},
		{name: "address rejects junk", typ: "address", in: "hero", wantErr: true},
		{name: "uint256 from decimal string", typ: "uint256", in: "1000000000000000000", want: big.NewInt(1e18)},
		{name: "uint256 from hex string", typ: "uint256", in: "0x10", want: big.NewInt(16)},
		{name: "uint256 from int", typ: "uint256", in: 7, want: big.NewInt(7)},
		{name: "uint256 from whole float", typ: "uint256", in: float64(3), want: big.NewInt(3)},
		{name: "uint256 rejects fraction", typ: "uint256", in: 1.5, wantErr: true},
		{name: "uint256 rejects negative", typ: "uint256", in: "-1", wantErr: true},
		{name: "uint8 exact kind", typ: "uint8", in: "200", want: uint8(200)},
		{name: "uint8 overflow", typ: "uint8", in: 256, wantErr: true},
		{name: "uint64 exact kind", typ: "uint64", in: int64(5), want: uint64(5)},
		{name: "int32 negative", typ: "int32", in: "-12", want: int32(-12)},
		{name: "int8 overflow", typ: "int8", in: 128, wantErr: true},
		{name: "bool", typ: "bool", in: true, want: true},
		{name: "bool from string", typ: "bool", in: "false", want: false},
		{name: "string", typ: "string", in: "ipfs://base", want: "ipfs://base"},
		{name: "bytes", typ: "bytes", in: "0xdeadbeef", want: []byte{0xde, 0xad, 0xbe, 0xef}},
		{name: "bytes4", typ: "bytes4", in: "0x01020304", want: [4]byte{1, 2, 3, 4}},
		{name: "bytes2 too long", typ: "bytes2", in: "0x010203", wantErr: true},
		{name: "address slice", typ: "address[]", in: []any{addr.Hex()}, want: []common.Address{addr}},
		{name: "uint256 fixed array", typ: "uint256[2]", in: []any{"1", 2}, want: [2]*big.Int{big.NewInt(1), big.NewInt(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertValue(mustType(t, tt.typ), tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEqual(t *testing.T) {
	ok, err := Equal(mustType(t, "uint256"), big.NewInt(42), "42")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Equal(mustType(t, "address"), common.HexToAddress("0xaa"), "0x00000000000000000000000000000000000000AA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Equal(mustType(t, "address"), common.Address{}, common.HexToAddress("0xaa"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveMethod(t *testing.T) {
	hero := mustABI(t)
	core := common.HexToAddress("0x00000000000000000000000000000000000000c0")

	t.Run("bare name from ABI", func(t *testing.T) {
		m, err := ResolveMethod(hero, "setDungeonCore", []any{core})
		require.NoError(t, err)
		assert.Equal(t, "setDungeonCore(address)", m.Sig)
	})

	t.Run("bare name missing from ABI", func(t *testing.T) {
		_, err := ResolveMethod(hero, "setCore", []any{core})
		assert.ErrorIs(t, err, domain.ErrMethodNotFound)
	})

	t.Run("bare name with wrong arity", func(t *testing.T) {
		_, err := ResolveMethod(hero, "setAuthorized", []any{core})
		assert.ErrorIs(t, err, domain.ErrMethodNotFound)
	})

	t.Run("signature without ABI", func(t *testing.T) {
		m, err := ResolveMethod(nil, "setDungeonCore(address)", []any{core})
		require.NoError(t, err)
		assert.Equal(t, "setDungeonCore", m.Name)
		assert.Equal(t, "setDungeonCore(address)", m.Sig)
		assert.Equal(t, crypto.Keccak256([]byte("setDungeonCore(address)"))[:4], m.Selector[:])
	})

	t.Run("signature prefers ABI entry", func(t *testing.T) {
		m, err := ResolveMethod(hero, "setMintPrice(uint256)", []any{"1"})
		require.NoError(t, err)
		assert.Equal(t, "price", m.Inputs[0].Name)
	})

	t.Run("inferred signature without ABI", func(t *testing.T) {
		m, err := ResolveMethod(nil, "setAuthorized", []any{core, true})
		require.NoError(t, err)
		assert.Equal(t, "setAuthorized(address,bool)", m.Sig)

		m, err = ResolveMethod(nil, "setDungeonCore", []any{core})
		require.NoError(t, err)
		assert.Equal(t, "setDungeonCore(address)", m.Sig)
		assert.Equal(t, crypto.Keccak256([]byte("setDungeonCore(address)"))[:4], m.Selector[:])

		m, err = ResolveMethod(nil, "setMintPrice", []any{"25"})
		require.NoError(t, err)
		assert.Equal(t, "setMintPrice(uint256)", m.Sig)
	})

	t.Run("pack", func(t *testing.T) {
		m, err := ResolveMethod(hero, "setDungeonCore", []any{core})
		require.NoError(t, err)
		data, err := m.Pack([]any{core.Hex()})
		require.NoError(t, err)
		require.Len(t, data, 4+32)
		assert.Equal(t, m.Selector[:], data[:4])
		assert.Equal(t, common.LeftPadBytes(core.Bytes(), 32), data[4:])
	})
}

func TestResolveGetter(t *testing.T) {
	core := common.HexToAddress("0x00000000000000000000000000000000000000c0")

	m, err := ResolveGetter(nil, "dungeonCore", nil, core)
	require.NoError(t, err)
	require.Len(t, m.Outputs, 1)
	assert.Equal(t, "address", TypeName(m.Outputs[0].Type))
	assert.Equal(t, "dungeonCore()", m.Sig)

	out, err := m.Unpack(common.LeftPadBytes(core.Bytes(), 32))
	require.NoError(t, err)
	assert.Equal(t, []any{core}, out)

	fromABI, err := ResolveGetter(mustABI(t), "dungeonCore", nil, core)
	require.NoError(t, err)
	assert.Equal(t, "dungeonCore()", fromABI.Sig)
}

func TestEncodeConstructorArgs(t *testing.T) {
	hero := mustABI(t)
	core := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000ff")

	encoded, err := EncodeConstructorArgs(hero, []any{core, owner.Hex()})
	require.NoError(t, err)
	assert.Equal(t,
		hex.EncodeToString(common.LeftPadBytes(core.Bytes(), 32))+hex.EncodeToString(common.LeftPadBytes(owner.Bytes(), 32)),
		hex.EncodeToString(encoded))

	_, err = EncodeConstructorArgs(hero, []any{core})
	assert.Error(t, err)

	encoded, err = EncodeConstructorArgs(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, encoded)
}

func TestFormat(t *testing.T) {
	assert.True(t, strings.EqualFold("0x00000000000000000000000000000000000000aa", Format(common.HexToAddress("0xaa"))))
	assert.Equal(t, "42", Format(big.NewInt(42)))
	assert.Equal(t, "0x0102", Format([2]byte{1, 2}))
	assert.Equal(t, "true", Format(true))
	assert.Equal(t, "[1,2]", Format([]*big.Int{big.NewInt(1), big.NewInt(2)}))
}

func TestTypeName(t *testing.T) {
	for _, name := range []string{"address", "bool", "string", "bytes", "bytes32", "uint8", "uint256", "int64", "address[]", "uint256[3]"} {
		typ := mustType(t, name)
		assert.Equal(t, name, TypeName(typ))
	}

	assert.Equal(t, "uint256", TypeName(abi.Type{T: abi.UintTy, Size: 256}))
	assert.Equal(t, "bytes32", TypeName(abi.Type{T: abi.FixedBytesTy, Size: 32}))
	elem := abi.Type{T: abi.AddressTy}
	assert.Equal(t, "address[]", TypeName(abi.Type{T: abi.SliceTy, Elem: &elem}))
}
