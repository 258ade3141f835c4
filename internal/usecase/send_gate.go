package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dungeondelvers/delvectl/pkg/abiconv"
)

// ErrConfirmationRequired is returned when a non-interactive run is about to
// send a transaction without --yes
var ErrConfirmationRequired = errors.New("run would send transactions, pass --yes to confirm in non-interactive mode")

// gatedChain asks for confirmation once, right before the first transaction
// of a run. Reads pass through, so a run with nothing to send never prompts.
type gatedChain struct {
	ChainClient

	ask  func(ctx context.Context) error
	once sync.Once
	err  error
}

func newGatedChain(chain ChainClient, ask func(ctx context.Context) error) *gatedChain {
	return &gatedChain{ChainClient: chain, ask: ask}
}

func (g *gatedChain) allow(ctx context.Context) error {
	g.once.Do(func() {
		if g.ask != nil {
			g.err = g.ask(ctx)
		}
	})
	return g.err
}

// refused reports the confirmation error, if the operator was asked and declined
func (g *gatedChain) refused() error {
	return g.err
}

func (g *gatedChain) Send(ctx context.Context, to common.Address, method *abiconv.Method, args []any) (*TxReceipt, error) {
	if err := g.allow(ctx); err != nil {
		return nil, err
	}
	return g.ChainClient.Send(ctx, to, method, args)
}

func (g *gatedChain) Deploy(ctx context.Context, bytecode []byte, contractABI *abi.ABI, args []any) (*DeployResult, error) {
	if err := g.allow(ctx); err != nil {
		return nil, err
	}
	return g.ChainClient.Deploy(ctx, bytecode, contractABI, args)
}

var _ ChainClient = (*gatedChain)(nil)
