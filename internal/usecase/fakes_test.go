package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/pkg/abiconv"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChain simulates contracts whose setters write a getter slot
type fakeChain struct {
	mu sync.Mutex

	chainID  uint64
	chainErr error
	signer   common.Address

	deployErr map[string]error // keyed by bytecode
	revert    map[string]string
	sendErr   map[string]error
	noEffect  map[string]bool   // setters that succeed without changing state
	setters   map[string]string // setter name -> getter name

	state    map[common.Address]map[string]any
	deployed []string
	sends    []string
	calls    int
	nonce    int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID:   56,
		signer:    common.HexToAddress("0x5151515151515151515151515151515151515151"),
		deployErr: map[string]error{},
		revert:    map[string]string{},
		sendErr:   map[string]error{},
		noEffect:  map[string]bool{},
		setters: map[string]string{
			"setDungeonCore": "dungeonCore",
			"setOracle":      "oracle",
			"setCore":        "dungeonCore",
		},
		state: map[common.Address]map[string]any{},
	}
}

func (f *fakeChain) ChainID(context.Context) (uint64, error) { return f.chainID, f.chainErr }

func (f *fakeChain) SignerAddress(context.Context) (common.Address, error) { return f.signer, nil }

func (f *fakeChain) Balance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(1e18), nil
}

func (f *fakeChain) Call(_ context.Context, to common.Address, method *abiconv.Method, _ []any) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if v, ok := f.state[to][method.Name]; ok {
		return []any{v}, nil
	}
	if len(method.Outputs) > 0 && method.Outputs[0].Type.T == abi.BoolTy {
		return []any{false}, nil
	}
	return []any{common.Address{}}, nil
}

func (f *fakeChain) Send(_ context.Context, to common.Address, method *abiconv.Method, args []any) (*TxReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if reason, ok := f.revert[method.Sig]; ok {
		return nil, &domain.RevertError{Method: method.Sig, Reason: reason}
	}
	if err, ok := f.sendErr[method.Sig]; ok {
		return nil, err
	}

	f.nonce++
	f.sends = append(f.sends, fmt.Sprintf("%s.%s", to.Hex(), method.Sig))
	if getter, ok := f.setters[method.Name]; ok && !f.noEffect[method.Name] && len(args) > 0 {
		if f.state[to] == nil {
			f.state[to] = map[string]any{}
		}
		f.state[to][getter] = args[0]
	}
	return &TxReceipt{TxHash: common.BigToHash(big.NewInt(int64(f.nonce))), BlockNumber: uint64(100 + f.nonce), GasUsed: 50_000}, nil
}

func (f *fakeChain) Deploy(_ context.Context, bytecode []byte, _ *abi.ABI, _ []any) (*DeployResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.deployErr[string(bytecode)]; ok {
		return nil, err
	}
	f.nonce++
	f.deployed = append(f.deployed, string(bytecode))
	return &DeployResult{
		Address:     common.BigToAddress(big.NewInt(int64(0x1000 + f.nonce))),
		Receipt:     TxReceipt{TxHash: common.BigToHash(big.NewInt(int64(f.nonce))), BlockNumber: uint64(100 + f.nonce), GasUsed: 1_000_000},
		EncodedArgs: []byte{0xab},
	}, nil
}

// fakeExplorer replays a scripted sequence of status answers
type fakeExplorer struct {
	submitErrs []error
	submit     *SubmitResult
	statuses   []ExplorerStatus
	message    string
	submits    int
	checks     int
	requests   []VerificationRequest
	checked    []uint64 // chain ids of status checks
}

func (f *fakeExplorer) Submit(_ context.Context, req VerificationRequest) (*SubmitResult, error) {
	f.submits++
	f.requests = append(f.requests, req)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		return nil, err
	}
	if f.submit != nil {
		return f.submit, nil
	}
	return &SubmitResult{GUID: "guid-1"}, nil
}

func (f *fakeExplorer) CheckStatus(_ context.Context, chainID uint64, _ string) (ExplorerStatus, string, error) {
	f.checks++
	f.checked = append(f.checked, chainID)
	if len(f.statuses) == 0 {
		return ExplorerStatusPending, "Pending in queue", nil
	}
	st := f.statuses[0]
	f.statuses = f.statuses[1:]
	return st, f.message, nil
}

func (f *fakeExplorer) ContractURL(address common.Address) string {
	return "https://bscscan.com/address/" + address.Hex()
}

// memFiles is an in-memory ConfigFileStore
type memFiles struct {
	files  map[string][]byte
	writes int
}

func (m *memFiles) Read(path string) ([]byte, bool, error) {
	data, ok := m.files[path]
	return data, ok, nil
}

func (m *memFiles) WriteAtomic(path string, data []byte) error {
	m.writes++
	m.files[path] = data
	return nil
}

// linesFormatter renders KEY=address lines, dropping previous content
type linesFormatter struct{}

func (linesFormatter) Format() models.PropagationFormat { return models.FormatDotenv }

func (linesFormatter) Merge(_ []byte, _ *models.PropagationTarget, values []PropagatedValue) (*MergeResult, error) {
	var out []byte
	var keys []string
	for _, v := range values {
		out = append(out, []byte(v.Key+"="+v.Address.Hex()+"\n")...)
		keys = append(keys, v.Key)
	}
	return &MergeResult{Content: out, Updated: keys}, nil
}

// memReports is an in-memory ReportStore
type memReports struct {
	saved []*models.RunReport
}

func (m *memReports) Save(_ context.Context, report *models.RunReport) (string, error) {
	m.saved = append(m.saved, report)
	return fmt.Sprintf("reports/run-%d.json", len(m.saved)), nil
}

func (m *memReports) Load(_ context.Context, path string) (*models.RunReport, error) {
	for i, r := range m.saved {
		if fmt.Sprintf("reports/run-%d.json", i+1) == path {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

// reportBook reads addresses back out of memReports
type reportBook struct {
	reports *memReports
}

func (b reportBook) Load(ctx context.Context, path string) (map[string]common.Address, error) {
	report, err := b.reports.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	book := make(map[string]common.Address)
	for name, addr := range report.Addresses() {
		book[name] = common.HexToAddress(addr)
	}
	return book, nil
}

type funcManifests func() *models.Manifest

func (f funcManifests) Load(context.Context, string) (*models.Manifest, error) {
	return f(), nil
}

type staticConfirmer struct {
	answer bool
	asked  int
}

func (s *staticConfirmer) Confirm(context.Context, string) (bool, error) {
	s.asked++
	return s.answer, nil
}

type recordingProgress struct {
	NopProgress
	errors []string
}

func (r *recordingProgress) Error(msg string) { r.errors = append(r.errors, msg) }
