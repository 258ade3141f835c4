package verification

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"github.com/dungeondelvers/delvectl/internal/domain/config"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

const defaultRequestTimeout = 30 * time.Second

// etherscanResponse is the envelope of every Etherscan-compatible API answer
type etherscanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

func (r *etherscanResponse) ok() bool { return r.Status == "1" }

// EtherscanAdapter submits standard JSON input verifications to an
// Etherscan-compatible explorer (BscScan by default) and polls their status
type EtherscanAdapter struct {
	client     *resty.Client
	apiURL     string
	apiKey     string
	browserURL string
	chainID    uint64
	log        *slog.Logger
}

// NewEtherscanAdapter creates an explorer client from the runtime config
func NewEtherscanAdapter(cfg *config.RuntimeConfig, log *slog.Logger) *EtherscanAdapter {
	client := resty.New().
		SetTimeout(defaultRequestTimeout).
		SetHeader("Accept", "application/json")

	return &EtherscanAdapter{
		client:     client,
		apiURL:     cfg.Explorer.APIURL,
		apiKey:     cfg.Explorer.APIKey,
		browserURL: strings.TrimSuffix(cfg.Explorer.BrowserURL, "/"),
		chainID:    cfg.Network.ChainID,
		log:        log.With("component", "Etherscan"),
	}
}

// Submit implements usecase.ExplorerClient
func (e *EtherscanAdapter) Submit(ctx context.Context, req usecase.VerificationRequest) (*usecase.SubmitResult, error) {
	form := map[string]string{
		"apikey":                e.apiKey,
		"module":                "contract",
		"action":                "verifysourcecode",
		"contractaddress":       req.Address.Hex(),
		"sourceCode":            req.SourceCode,
		"codeformat":            "solidity-standard-json-input",
		"contractname":          req.ContractName,
		"compilerversion":       req.CompilerVersion,
		"constructorArguements": strings.TrimPrefix(req.ConstructorArgs, "0x"),
	}
	if req.OptimizationRuns > 0 {
		form["optimizationUsed"] = "1"
		form["runs"] = strconv.Itoa(req.OptimizationRuns)
	}
	if req.EVMVersion != "" {
		form["evmversion"] = req.EVMVersion
	}
	if req.LicenseType > 0 {
		form["licenseType"] = strconv.Itoa(req.LicenseType)
	}

	var out etherscanResponse
	resp, err := e.request(ctx).
		SetQueryParam("chainid", e.chainIDParam(req.ChainID)).
		SetFormData(form).
		SetResult(&out).
		Post(e.apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to submit verification: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("explorer returned HTTP %d: %s", resp.StatusCode(), truncate(resp.String()))
	}

	e.log.Debug("verification submitted", "address", req.Address.Hex(), "status", out.Status, "result", out.Result)

	if out.ok() {
		return &usecase.SubmitResult{GUID: out.Result}, nil
	}

	result := strings.ToLower(out.Result)
	switch {
	case strings.Contains(result, "already verified"):
		return &usecase.SubmitResult{AlreadyVerified: true}, nil
	case strings.Contains(result, "unable to locate contractcode"),
		strings.Contains(result, "not yet indexed"):
		return nil, fmt.Errorf("%w: %s", usecase.ErrNotYetIndexed, out.Result)
	}
	return nil, fmt.Errorf("explorer rejected submission: %s", messageOf(&out))
}

// CheckStatus implements usecase.ExplorerClient
func (e *EtherscanAdapter) CheckStatus(ctx context.Context, chainID uint64, guid string) (usecase.ExplorerStatus, string, error) {
	var out etherscanResponse
	resp, err := e.request(ctx).
		SetQueryParams(map[string]string{
			"chainid": e.chainIDParam(chainID),
			"apikey":  e.apiKey,
			"module":  "contract",
			"action":  "checkverifystatus",
			"guid":    guid,
		}).
		SetResult(&out).
		Get(e.apiURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to check verification status: %w", err)
	}
	if resp.IsError() {
		return "", "", fmt.Errorf("explorer returned HTTP %d: %s", resp.StatusCode(), truncate(resp.String()))
	}

	return classifyStatus(&out), messageOf(&out), nil
}

// ContractURL implements usecase.ExplorerClient
func (e *EtherscanAdapter) ContractURL(address common.Address) string {
	if e.browserURL == "" {
		return ""
	}
	return e.browserURL + "/address/" + address.Hex()
}

func classifyStatus(out *etherscanResponse) usecase.ExplorerStatus {
	result := strings.ToLower(out.Result)
	switch {
	case strings.Contains(result, "already verified"):
		return usecase.ExplorerStatusAlreadyVerified
	case strings.Contains(result, "pending"):
		return usecase.ExplorerStatusPending
	case strings.Contains(result, "pass - verified"), out.ok():
		return usecase.ExplorerStatusVerified
	}
	return usecase.ExplorerStatusFailed
}

func messageOf(out *etherscanResponse) string {
	if out.Result != "" {
		return out.Result
	}
	return out.Message
}

// request builds a JSON request; some explorers answer with text/html
func (e *EtherscanAdapter) request(ctx context.Context) *resty.Request {
	return e.client.R().
		SetContext(ctx).
		ForceContentType("application/json")
}

func (e *EtherscanAdapter) chainIDParam(chainID uint64) string {
	if chainID == 0 {
		chainID = e.chainID
	}
	return strconv.FormatUint(chainID, 10)
}

func truncate(s string) string {
	const limit = 200
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

var _ usecase.ExplorerClient = (*EtherscanAdapter)(nil)
