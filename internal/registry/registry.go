// Package registry holds the in-memory contract registry of one run: the
// declared contracts, their dependency graph and the addresses known so far.
package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
)

// Registry is the ordered name -> contract map of a manifest. It is mutated
// only by the Deployer (addresses) and the Wiring Engine (op status) and is
// not safe for concurrent use.
type Registry struct {
	manifest  *models.Manifest
	contracts map[string]*models.ContractSpec
	graph     *dependencyGraph
	order     []*models.ContractSpec // topological
	signer    *common.Address
}

// Load validates a manifest and builds the registry. Validation problems are
// reported together; a dependency cycle fails with CyclicDependencyError.
func Load(manifest *models.Manifest) (*Registry, error) {
	if manifest == nil {
		return nil, fmt.Errorf("%w: manifest is nil", domain.ErrInvalidManifest)
	}

	for i, c := range manifest.Contracts {
		c.Index = i
	}
	for i, op := range manifest.WireOps {
		op.Index = i
		if op.Status == "" {
			op.Status = models.WireStatusPending
		}
	}

	if err := validate(manifest); err != nil {
		return nil, err
	}

	r := &Registry{
		manifest:  manifest,
		contracts: make(map[string]*models.ContractSpec, len(manifest.Contracts)),
		graph:     newDependencyGraph(manifest.Contracts),
	}
	for _, c := range manifest.Contracts {
		r.contracts[c.Name] = c
	}

	order, err := r.graph.topologicalSort()
	if err != nil {
		return nil, err
	}
	r.order = order
	return r, nil
}

func validate(m *models.Manifest) error {
	var result *multierror.Error

	if len(m.Contracts) == 0 {
		result = multierror.Append(result, fmt.Errorf("no contracts declared"))
	}

	names := lo.Map(m.Contracts, func(c *models.ContractSpec, _ int) string { return c.Name })
	for _, dup := range lo.FindDuplicates(names) {
		result = multierror.Append(result, fmt.Errorf("contract %q declared more than once", dup))
	}
	known := lo.SliceToMap(names, func(n string) (string, bool) { return n, true })

	for _, c := range m.Contracts {
		if strings.TrimSpace(c.Name) == "" {
			result = multierror.Append(result, fmt.Errorf("contract #%d has no name", c.Index))
			continue
		}
		if strings.HasPrefix(c.Name, "$") {
			result = multierror.Append(result, fmt.Errorf("contract %q: names starting with '$' are reserved", c.Name))
		}
		for _, dep := range c.DependsOn {
			switch {
			case dep == c.Name:
				result = multierror.Append(result, fmt.Errorf("contract %q depends on itself", c.Name))
			case !known[dep]:
				result = multierror.Append(result, fmt.Errorf("contract %q depends on unknown contract %q%s", c.Name, dep, didYouMean(dep, names)))
			}
		}
		for i, arg := range c.ConstructorArgs {
			if !arg.IsRef() || arg.Ref == models.SignerRef {
				continue
			}
			if !lo.Contains(c.DependsOn, arg.Ref) {
				result = multierror.Append(result, fmt.Errorf("contract %q: constructor argument %d references %q which is not in dependsOn", c.Name, i, arg.Ref))
			}
		}
	}

	for _, op := range m.WireOps {
		if !known[op.TargetContract] {
			result = multierror.Append(result, fmt.Errorf("wire op #%d: unknown target contract %q%s", op.Index, op.TargetContract, didYouMean(op.TargetContract, names)))
		}
		if len(op.CandidateMethods) == 0 {
			result = multierror.Append(result, fmt.Errorf("wire op #%d (%s): no candidate methods", op.Index, op.TargetContract))
		}
		if op.Argument.IsZero() && len(op.ExtraArgs) == 0 {
			result = multierror.Append(result, fmt.Errorf("wire op #%d (%s): no argument", op.Index, op.TargetContract))
		}
		for _, ref := range op.References()[1:] {
			if !known[ref] {
				result = multierror.Append(result, fmt.Errorf("wire op #%d (%s): references unknown contract %q%s", op.Index, op.TargetContract, ref, didYouMean(ref, names)))
			}
		}
	}

	for i, t := range m.PropagationTargets {
		if t.FilePath == "" {
			result = multierror.Append(result, fmt.Errorf("propagation target #%d: no filePath", i))
		}
		if !t.Format.Valid() {
			result = multierror.Append(result, fmt.Errorf("propagation target #%d (%s): unsupported format %q", i, t.FilePath, t.Format))
		}
		if t.ManagedKeyPattern != "" {
			if _, err := regexp.Compile(t.ManagedKeyPattern); err != nil {
				result = multierror.Append(result, fmt.Errorf("propagation target #%d (%s): invalid managedKeyPattern: %w", i, t.FilePath, err))
			}
		}
		for _, name := range t.KeyMappingRule.Include {
			if !known[name] {
				result = multierror.Append(result, fmt.Errorf("propagation target #%d (%s): include names unknown contract %q%s", i, t.FilePath, name, didYouMean(name, names)))
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidManifest, err)
	}
	return nil
}

// Manifest returns the manifest the registry was loaded from
func (r *Registry) Manifest() *models.Manifest {
	return r.manifest
}

// TopologicalOrder returns every contract after all of its dependencies.
// Ties are broken by declaration order so repeated runs are reproducible.
func (r *Registry) TopologicalOrder() []*models.ContractSpec {
	return append([]*models.ContractSpec(nil), r.order...)
}

// Contracts returns the contracts in declaration order
func (r *Registry) Contracts() []*models.ContractSpec {
	return append([]*models.ContractSpec(nil), r.manifest.Contracts...)
}

// Contract looks a contract up by name
func (r *Registry) Contract(name string) (*models.ContractSpec, error) {
	c, ok := r.contracts[name]
	if !ok {
		return nil, fmt.Errorf("contract %q: %w", name, domain.ErrNotFound)
	}
	return c, nil
}

// WireOps returns the wire operations in declaration order
func (r *Registry) WireOps() []*models.WireOp {
	return r.manifest.WireOps
}

// Targets returns the propagation targets in declaration order
func (r *Registry) Targets() []*models.PropagationTarget {
	return r.manifest.PropagationTargets
}

// Dependents returns every contract that transitively depends on name
func (r *Registry) Dependents(name string) []*models.ContractSpec {
	return r.graph.transitiveDependents(name)
}

// SetSigner records the address that $signer resolves to
func (r *Registry) SetSigner(addr common.Address) {
	r.signer = &addr
}

// Signer returns the signer address, if known
func (r *Registry) Signer() (common.Address, bool) {
	if r.signer == nil {
		return common.Address{}, false
	}
	return *r.signer, true
}

// Address resolves a contract name (or $signer) to its address
func (r *Registry) Address(name string) (common.Address, error) {
	if name == models.SignerRef {
		if r.signer == nil {
			return common.Address{}, &domain.UnresolvedDependencyError{Contract: name, Reference: name}
		}
		return *r.signer, nil
	}
	c, err := r.Contract(name)
	if err != nil {
		return common.Address{}, err
	}
	if !c.HasAddress() {
		return common.Address{}, &domain.UnresolvedDependencyError{Contract: name, Reference: name}
	}
	return *c.Address, nil
}

// Resolve turns a value slot into a concrete value: references become
// addresses and literals are returned unchanged.
func (r *Registry) Resolve(ref models.ValueRef) (any, error) {
	if !ref.IsRef() {
		return ref.Value, nil
	}
	return r.Address(ref.Ref)
}

// ResolveArgs resolves every slot on behalf of owner. The first unresolved
// reference fails with UnresolvedDependencyError naming owner.
func (r *Registry) ResolveArgs(owner string, refs []models.ValueRef) ([]any, error) {
	values := make([]any, 0, len(refs))
	for _, ref := range refs {
		v, err := r.Resolve(ref)
		if err != nil {
			if unresolved, ok := err.(*domain.UnresolvedDependencyError); ok {
				return nil, &domain.UnresolvedDependencyError{Contract: owner, Reference: unresolved.Reference}
			}
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// SetDeployed records the deployment of a contract. An address can be set
// exactly once.
func (r *Registry) SetDeployed(name string, addr common.Address, tx common.Hash, block uint64) error {
	c, err := r.Contract(name)
	if err != nil {
		return err
	}
	if c.HasAddress() {
		return fmt.Errorf("contract %q already at %s: %w", name, c.Address.Hex(), domain.ErrAddressImmutable)
	}
	c.Address = &addr
	c.DeployTxHash = &tx
	c.DeployBlock = block
	return nil
}

// SeedAddresses fills in addresses known from a previous run or an address
// book. Names not declared in the manifest are ignored. Seeding a contract
// that already has a different address fails with ErrAddressImmutable.
// It returns the names that received an address.
func (r *Registry) SeedAddresses(book map[string]common.Address) ([]string, error) {
	var seeded []string
	var result *multierror.Error
	for _, c := range r.manifest.Contracts {
		addr, ok := book[c.Name]
		if !ok || addr == (common.Address{}) {
			continue
		}
		if c.HasAddress() {
			if *c.Address != addr {
				result = multierror.Append(result, fmt.Errorf("contract %q: manifest has %s, address book has %s: %w",
					c.Name, c.Address.Hex(), addr.Hex(), domain.ErrAddressImmutable))
			}
			continue
		}
		a := addr
		c.Address = &a
		seeded = append(seeded, c.Name)
	}
	return seeded, result.ErrorOrNil()
}

// Addresses returns the known contract addresses in declaration order
func (r *Registry) Addresses() []NamedAddress {
	out := make([]NamedAddress, 0, len(r.manifest.Contracts))
	for _, c := range r.manifest.Contracts {
		if c.HasAddress() {
			out = append(out, NamedAddress{Name: c.Name, Address: *c.Address, Block: c.DeployBlock})
		}
	}
	return out
}

// Pending returns the contracts that still need a deployment, in
// topological order
func (r *Registry) Pending() []*models.ContractSpec {
	return lo.Filter(r.order, func(c *models.ContractSpec, _ int) bool { return c.NeedsDeployment() })
}

// NamedAddress is one entry of the final name -> address map
type NamedAddress struct {
	Name    string
	Address common.Address
	Block   uint64
}
