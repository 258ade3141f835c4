package verification

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeondelvers/delvectl/internal/domain/config"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

var heroAddress = common.HexToAddress("0x00000000000000000000000000000000000000e1")

type explorerStub struct {
	mu       sync.Mutex
	forms    []map[string]string
	queries  []map[string]string
	submit   etherscanResponse
	statuses []etherscanResponse
	httpCode int
	htmlType bool
}

func (s *explorerStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpCode != 0 {
		w.WriteHeader(s.httpCode)
		_, _ = w.Write([]byte("bad gateway"))
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	values := make(map[string]string)
	for k := range r.Form {
		values[k] = r.Form.Get(k)
	}

	var out etherscanResponse
	switch values["action"] {
	case "verifysourcecode":
		s.forms = append(s.forms, values)
		out = s.submit
	case "checkverifystatus":
		s.queries = append(s.queries, values)
		out = s.statuses[0]
		if len(s.statuses) > 1 {
			s.statuses = s.statuses[1:]
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.htmlType {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_ = json.NewEncoder(w).Encode(out)
}

func newEtherscan(t *testing.T, stub *explorerStub) *EtherscanAdapter {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	cfg := &config.RuntimeConfig{
		Network: config.Network{ChainID: 56},
		Explorer: config.Explorer{
			APIKey:     "KEY",
			APIURL:     srv.URL + "/api",
			BrowserURL: "https://bscscan.com/",
		},
	}
	return NewEtherscanAdapter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func heroRequest() usecase.VerificationRequest {
	return usecase.VerificationRequest{
		ChainID:          56,
		Address:          heroAddress,
		ContractName:     "contracts/nft/Hero.sol:Hero",
		CompilerVersion:  "v0.8.20+commit.a1b79de6",
		SourceCode:       `{"language":"Solidity"}`,
		ConstructorArgs:  "00000000000000000000000000000000000000000000000000000000000000c0",
		OptimizationRuns: 200,
	}
}

func TestEtherscanAdapter_Submit(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		stub := &explorerStub{submit: etherscanResponse{Status: "1", Message: "OK", Result: "guid-123"}}
		e := newEtherscan(t, stub)

		res, err := e.Submit(context.Background(), heroRequest())
		require.NoError(t, err)
		assert.Equal(t, "guid-123", res.GUID)
		assert.False(t, res.AlreadyVerified)

		require.Len(t, stub.forms, 1)
		form := stub.forms[0]
		assert.Equal(t, "KEY", form["apikey"])
		assert.Equal(t, "contract", form["module"])
		assert.Equal(t, heroAddress.Hex(), form["contractaddress"])
		assert.Equal(t, "solidity-standard-json-input", form["codeformat"])
		assert.Equal(t, "contracts/nft/Hero.sol:Hero", form["contractname"])
		assert.Equal(t, heroRequest().ConstructorArgs, form["constructorArguements"])
		assert.Equal(t, "200", form["runs"])
		assert.Equal(t, "56", form["chainid"])
	})

	t.Run("already verified", func(t *testing.T) {
		stub := &explorerStub{submit: etherscanResponse{Status: "0", Message: "NOTOK", Result: "Contract source code already verified"}}
		res, err := newEtherscan(t, stub).Submit(context.Background(), heroRequest())
		require.NoError(t, err)
		assert.True(t, res.AlreadyVerified)
	})

	t.Run("not yet indexed", func(t *testing.T) {
		stub := &explorerStub{submit: etherscanResponse{Status: "0", Message: "NOTOK", Result: "Unable to locate ContractCode at 0x00e1"}}
		_, err := newEtherscan(t, stub).Submit(context.Background(), heroRequest())
		assert.ErrorIs(t, err, usecase.ErrNotYetIndexed)
	})

	t.Run("rejected", func(t *testing.T) {
		stub := &explorerStub{submit: etherscanResponse{Status: "0", Message: "NOTOK", Result: "Invalid API Key"}}
		_, err := newEtherscan(t, stub).Submit(context.Background(), heroRequest())
		require.Error(t, err)
		assert.NotErrorIs(t, err, usecase.ErrNotYetIndexed)
		assert.Contains(t, err.Error(), "Invalid API Key")
	})

	t.Run("http error", func(t *testing.T) {
		stub := &explorerStub{httpCode: http.StatusBadGateway}
		_, err := newEtherscan(t, stub).Submit(context.Background(), heroRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 502")
	})
}

func TestEtherscanAdapter_CheckStatus(t *testing.T) {
	tests := []struct {
		name    string
		resp    etherscanResponse
		want    usecase.ExplorerStatus
		message string
	}{
		{"pending", etherscanResponse{Status: "0", Result: "Pending in queue"}, usecase.ExplorerStatusPending, "Pending in queue"},
		{"verified", etherscanResponse{Status: "1", Result: "Pass - Verified"}, usecase.ExplorerStatusVerified, "Pass - Verified"},
		{"already verified", etherscanResponse{Status: "0", Result: "Already Verified"}, usecase.ExplorerStatusAlreadyVerified, "Already Verified"},
		{"bytecode mismatch", etherscanResponse{Status: "0", Result: "Fail - Unable to verify. Compiled contract deployment bytecode does NOT match"}, usecase.ExplorerStatusFailed, "Fail - Unable to verify. Compiled contract deployment bytecode does NOT match"},
		{"empty result", etherscanResponse{Status: "0", Message: "NOTOK"}, usecase.ExplorerStatusFailed, "NOTOK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &explorerStub{statuses: []etherscanResponse{tt.resp}}
			status, msg, err := newEtherscan(t, stub).CheckStatus(context.Background(), 97, "guid-123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.message, msg)

			require.Len(t, stub.queries, 1)
			assert.Equal(t, "guid-123", stub.queries[0]["guid"])
			assert.Equal(t, "KEY", stub.queries[0]["apikey"])
			assert.Equal(t, "97", stub.queries[0]["chainid"])
		})
	}

	t.Run("html content type is decoded as json", func(t *testing.T) {
		stub := &explorerStub{
			htmlType: true,
			statuses: []etherscanResponse{{Status: "1", Result: "Pass - Verified"}},
		}
		status, _, err := newEtherscan(t, stub).CheckStatus(context.Background(), 0, "guid-123")
		require.NoError(t, err)
		assert.Equal(t, usecase.ExplorerStatusVerified, status)
		assert.Equal(t, "56", stub.queries[0]["chainid"])
	})
}

func TestEtherscanAdapter_ContractURL(t *testing.T) {
	e := newEtherscan(t, &explorerStub{})
	assert.Equal(t, "https://bscscan.com/address/"+heroAddress.Hex(), e.ContractURL(heroAddress))

	e.browserURL = ""
	assert.Empty(t, e.ContractURL(heroAddress))
}
