package abiconv

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lmittmann/w3"

	"github.com/dungeondelvers/delvectl/internal/domain"
)

// Method is a callable contract function resolved from an ABI or a signature
type Method struct {
	Name     string
	Sig      string // canonical, e.g. setDungeonCore(address)
	Selector [4]byte
	Inputs   abi.Arguments
	Outputs  abi.Arguments
}

// Pack converts values to the input types and returns the calldata
func (m *Method) Pack(values []any) ([]byte, error) {
	converted, err := ConvertArgs(m.Inputs, values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Sig, err)
	}
	packed, err := m.Inputs.Pack(converted...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Sig, err)
	}
	return append(m.Selector[:], packed...), nil
}

// Unpack decodes return data
func (m *Method) Unpack(data []byte) ([]any, error) {
	if len(m.Outputs) == 0 {
		return nil, nil
	}
	return m.Outputs.Unpack(data)
}

// IsSignature reports whether a candidate is a full signature rather than a
// bare method name
func IsSignature(candidate string) bool {
	return strings.Contains(candidate, "(")
}

// ResolveMethod resolves a candidate method for a call with the given
// argument values. Signatures are parsed directly. Bare names are looked up
// in contractABI and fail with ErrMethodNotFound when absent; without an ABI
// the signature is inferred from the argument values.
func ResolveMethod(contractABI *abi.ABI, candidate string, values []any) (*Method, error) {
	return resolve(contractABI, candidate, values, "")
}

// ResolveGetter resolves a read-only method. Without an ABI entry the
// return type is inferred from the expected value.
func ResolveGetter(contractABI *abi.ABI, candidate string, values []any, expected any) (*Method, error) {
	return resolve(contractABI, candidate, values, InferType(expected))
}

func resolve(contractABI *abi.ABI, candidate string, values []any, returns string) (*Method, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, fmt.Errorf("empty method name: %w", domain.ErrMethodNotFound)
	}

	if IsSignature(candidate) {
		fn, err := w3.NewFunc(candidate, returns)
		if err != nil {
			return nil, fmt.Errorf("parse signature %q: %w", candidate, err)
		}
		if contractABI != nil {
			if m, err := contractABI.MethodById(fn.Selector[:]); err == nil {
				return fromABI(m), nil
			}
		}
		return fromFunc(fn), nil
	}

	if contractABI != nil && len(contractABI.Methods) > 0 {
		var byName *abi.Method
		for _, m := range contractABI.Methods {
			if m.RawName != candidate {
				continue
			}
			if len(m.Inputs) == len(values) {
				return fromABI(&m), nil
			}
			mm := m
			byName = &mm
		}
		if byName != nil {
			return nil, fmt.Errorf("%s takes %d arguments, got %d: %w", candidate, len(byName.Inputs), len(values), domain.ErrMethodNotFound)
		}
		return nil, fmt.Errorf("%s: %w", candidate, domain.ErrMethodNotFound)
	}

	types := make([]string, len(values))
	for i, v := range values {
		types[i] = InferType(v)
	}
	fn, err := w3.NewFunc(fmt.Sprintf("%s(%s)", candidate, strings.Join(types, ",")), returns)
	if err != nil {
		return nil, fmt.Errorf("infer signature for %q: %w", candidate, err)
	}
	return fromFunc(fn), nil
}

func fromABI(m *abi.Method) *Method {
	var selector [4]byte
	copy(selector[:], m.ID)
	return &Method{
		Name:     m.RawName,
		Sig:      m.Sig,
		Selector: selector,
		Inputs:   m.Inputs,
		Outputs:  m.Outputs,
	}
}

func fromFunc(fn *w3.Func) *Method {
	types := make([]string, len(fn.Args))
	for i, arg := range fn.Args {
		types[i] = TypeName(arg.Type)
	}
	name := fn.Signature
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	return &Method{
		Name:     name,
		Sig:      fmt.Sprintf("%s(%s)", name, strings.Join(types, ",")),
		Selector: fn.Selector,
		Inputs:   fn.Args,
		Outputs:  fn.Returns,
	}
}

// TypeName returns the canonical solidity name of t. Types built from a
// parsed signature do not always carry one.
func TypeName(t abi.Type) string {
	if name := t.String(); name != "" {
		return name
	}
	switch t.T {
	case abi.AddressTy:
		return "address"
	case abi.BoolTy:
		return "bool"
	case abi.StringTy:
		return "string"
	case abi.BytesTy:
		return "bytes"
	case abi.FixedBytesTy:
		return fmt.Sprintf("bytes%d", t.Size)
	case abi.IntTy:
		return fmt.Sprintf("int%d", t.Size)
	case abi.UintTy:
		return fmt.Sprintf("uint%d", t.Size)
	case abi.SliceTy:
		return TypeName(*t.Elem) + "[]"
	case abi.ArrayTy:
		return fmt.Sprintf("%s[%d]", TypeName(*t.Elem), t.Size)
	case abi.TupleTy:
		elems := make([]string, len(t.TupleElems))
		for i, e := range t.TupleElems {
			elems[i] = TypeName(*e)
		}
		return "(" + strings.Join(elems, ",") + ")"
	case abi.FunctionTy:
		return "function"
	}
	return ""
}

var decimal = regexp.MustCompile(`^-?[0-9]+$`)

// InferType guesses the solidity type of a loosely typed value:
// addresses, bools, integers and everything else as string
func InferType(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case common.Address, *common.Address:
		return "address"
	case bool:
		return "bool"
	case *big.Int, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float64:
		return "uint256"
	case []byte:
		return "bytes"
	case string:
		switch {
		case common.IsHexAddress(val) && strings.HasPrefix(strings.ToLower(val), "0x"):
			return "address"
		case decimal.MatchString(val):
			return "uint256"
		case val == "true" || val == "false":
			return "bool"
		case strings.HasPrefix(val, "0x"):
			if _, err := hexutil.Decode(val); err == nil {
				return "bytes"
			}
		}
		return "string"
	}
	return "string"
}

// EncodeConstructorArgs returns the ABI encoding of constructor arguments
// (without bytecode), as submitted to block explorers
func EncodeConstructorArgs(contractABI *abi.ABI, values []any) ([]byte, error) {
	if contractABI == nil {
		if len(values) > 0 {
			return nil, fmt.Errorf("%d constructor arguments but no ABI", len(values))
		}
		return nil, nil
	}
	converted, err := ConvertArgs(contractABI.Constructor.Inputs, values)
	if err != nil {
		return nil, fmt.Errorf("constructor: %w", err)
	}
	if len(converted) == 0 {
		return nil, nil
	}
	return contractABI.Pack("", converted...)
}
