// Package abiconv converts loosely typed manifest values into the Go types
// go-ethereum's ABI packer expects, and back into display strings.
package abiconv

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ConvertArgs converts values positionally to the types of args
func ConvertArgs(args abi.Arguments, values []any) ([]any, error) {
	if len(args) != len(values) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(args), len(values))
	}
	out := make([]any, len(values))
	for i, arg := range args {
		v, err := ConvertValue(arg.Type, values[i])
		if err != nil {
			name := arg.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, TypeName(arg.Type), err)
		}
		out[i] = v
	}
	return out, nil
}

// ConvertValue converts v to the Go representation of t
func ConvertValue(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return toAddress(v)
	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		return fitInteger(t, n)
	case abi.BoolTy:
		return toBool(v)
	case abi.StringTy:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case abi.BytesTy:
		return toBytes(v)
	case abi.FixedBytesTy, abi.HashTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("%d bytes do not fit into bytes%d", len(b), t.Size)
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	case abi.SliceTy, abi.ArrayTy:
		return toList(t, v)
	default:
		return nil, fmt.Errorf("unsupported ABI type %s", TypeName(t))
	}
}

func toAddress(v any) (common.Address, error) {
	switch val := v.(type) {
	case common.Address:
		return val, nil
	case *common.Address:
		if val == nil {
			return common.Address{}, fmt.Errorf("nil address")
		}
		return *val, nil
	case string:
		if !common.IsHexAddress(val) {
			return common.Address{}, fmt.Errorf("%q is not an address", val)
		}
		return common.HexToAddress(val), nil
	default:
		return common.Address{}, fmt.Errorf("cannot use %T as address", v)
	}
}

func toBigInt(v any) (*big.Int, error) {
	switch val := v.(type) {
	case *big.Int:
		if val == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(val), nil
	case big.Int:
		return new(big.Int).Set(&val), nil
	case json.Number:
		return parseInteger(val.String())
	case string:
		return parseInteger(val)
	case float64:
		if val != math.Trunc(val) {
			return nil, fmt.Errorf("%v is not an integer", val)
		}
		f := new(big.Float).SetFloat64(val)
		n, _ := f.Int(nil)
		return n, nil
	case float32:
		return toBigInt(float64(val))
	case bool:
		return nil, fmt.Errorf("cannot use bool as integer")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("cannot use %T as integer", v)
}

func parseInteger(s string) (*big.Int, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", ""))
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	return n, nil
}

func fitInteger(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return nil, fmt.Errorf("%s is negative", n)
		}
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s overflows uint%d", n, t.Size)
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		}
		return n, nil
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return nil, fmt.Errorf("%s overflows int%d", n, t.Size)
	}
	switch t.Size {
	case 8:
		return int8(n.Int64()), nil
	case 16:
		return int16(n.Int64()), nil
	case 32:
		return int32(n.Int64()), nil
	case 64:
		return n.Int64(), nil
	}
	return n, nil
}

func toBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, fmt.Errorf("%q is not a bool", val)
		}
		return b, nil
	default:
		return false, fmt.Errorf("cannot use %T as bool", v)
	}
}

func toBytes(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case common.Hash:
		return val.Bytes(), nil
	case string:
		if !strings.HasPrefix(val, "0x") && !strings.HasPrefix(val, "0X") {
			return nil, fmt.Errorf("%q is not 0x-prefixed hex", val)
		}
		return hexutil.Decode("0x" + val[2:])
	default:
		return nil, fmt.Errorf("cannot use %T as bytes", v)
	}
}

func toList(t abi.Type, v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot use %T as %s", v, TypeName(t))
	}
	if t.T == abi.ArrayTy && rv.Len() != t.Size {
		return nil, fmt.Errorf("expected %d elements, got %d", t.Size, rv.Len())
	}

	var out reflect.Value
	if t.T == abi.ArrayTy {
		out = reflect.New(t.GetType()).Elem()
	} else {
		out = reflect.MakeSlice(t.GetType(), rv.Len(), rv.Len())
	}
	for i := 0; i < rv.Len(); i++ {
		elem, err := ConvertValue(*t.Elem, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(elem))
	}
	return out.Interface(), nil
}

// Equal reports whether an ABI-decoded value equals expected once expected
// is converted to t
func Equal(t abi.Type, actual, expected any) (bool, error) {
	want, err := ConvertValue(t, expected)
	if err != nil {
		return false, err
	}
	if a, ok := actual.(*big.Int); ok {
		if b, ok := want.(*big.Int); ok {
			return a.Cmp(b) == 0, nil
		}
	}
	return reflect.DeepEqual(actual, want), nil
}

// Format renders a value for reports and logs
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case common.Address:
		return val.Hex()
	case *common.Address:
		if val == nil {
			return ""
		}
		return val.Hex()
	case *big.Int:
		if val == nil {
			return ""
		}
		return val.String()
	case []byte:
		return hexutil.Encode(val)
	case common.Hash:
		return val.Hex()
	case string:
		return val
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		for i := range b {
			b[i] = byte(rv.Index(i).Uint())
		}
		return hexutil.Encode(b)
	}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Format(rv.Index(i).Interface())
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return fmt.Sprint(v)
}
