package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// manifestFile is the on-disk shape of a manifest
type manifestFile struct {
	Name               string                      `json:"name"`
	ChainID            uint64                      `json:"chainId"`
	Contracts          []contractFile              `json:"contracts"`
	WireOps            []*models.WireOp            `json:"wireOps"`
	PropagationTargets []*models.PropagationTarget `json:"propagationTargets"`
}

type contractFile struct {
	Name            string            `json:"name"`
	DependsOn       []string          `json:"dependsOn"`
	ConstructorArgs []models.ValueRef `json:"constructorArgsTemplate"`
	Artifact        string            `json:"artifact"`
	Address         string            `json:"address"`
	Source          *models.SourceRef `json:"source"`
}

// LoaderAdapter reads manifests in JSON, YAML or TOML and attaches the
// artifacts and verification sources they point at. Relative paths inside a
// manifest are resolved against the manifest directory.
type LoaderAdapter struct {
	fs  afero.Fs
	log *slog.Logger
}

// NewLoaderAdapter creates a manifest loader
func NewLoaderAdapter(fs afero.Fs, log *slog.Logger) *LoaderAdapter {
	return &LoaderAdapter{fs: fs, log: log.With("component", "ManifestLoader")}
}

// Load implements usecase.ManifestLoader
func (l *LoaderAdapter) Load(ctx context.Context, path string) (*models.Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no manifest path given", domain.ErrInvalidManifest)
	}
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	doc, err := decodeDocument(path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidManifest, path, err)
	}

	var file manifestFile
	if err := strictUnmarshal(doc, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidManifest, path, err)
	}

	baseDir := filepath.Dir(path)
	manifest := &models.Manifest{
		Name:               file.Name,
		ChainID:            file.ChainID,
		WireOps:            file.WireOps,
		PropagationTargets: file.PropagationTargets,
		Path:               path,
	}

	for i, c := range file.Contracts {
		spec, err := l.contract(baseDir, c)
		if err != nil {
			return nil, fmt.Errorf("%w: contract %d (%s): %w", domain.ErrInvalidManifest, i, c.Name, err)
		}
		manifest.Contracts = append(manifest.Contracts, spec)
	}
	for _, t := range manifest.PropagationTargets {
		if t != nil && t.FilePath != "" {
			t.FilePath = resolvePath(baseDir, t.FilePath)
		}
	}

	l.log.Debug("manifest loaded", "path", path, "contracts", len(manifest.Contracts), "wire_ops", len(manifest.WireOps))
	return manifest, nil
}

func (l *LoaderAdapter) contract(baseDir string, c contractFile) (*models.ContractSpec, error) {
	spec := &models.ContractSpec{
		Name:            c.Name,
		DependsOn:       c.DependsOn,
		ConstructorArgs: c.ConstructorArgs,
		Artifact:        c.Artifact,
		Source:          c.Source,
	}

	if addr := strings.TrimSpace(c.Address); addr != "" {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, addr)
		}
		a := common.HexToAddress(addr)
		spec.Address = &a
	}

	if c.Artifact != "" {
		artifact, err := loadArtifact(l.fs, resolvePath(baseDir, c.Artifact))
		if err != nil {
			return nil, err
		}
		spec.ABI = artifact.ABI
		spec.Bytecode = artifact.Bytecode
	}

	if spec.Source != nil && spec.Source.StandardJSONInput != "" {
		input, err := afero.ReadFile(l.fs, resolvePath(baseDir, spec.Source.StandardJSONInput))
		if err != nil {
			return nil, fmt.Errorf("failed to read standard JSON input: %w", err)
		}
		spec.Source.SourceCode = string(input)
	}
	return spec, nil
}

// decodeDocument parses the manifest into generic values according to its
// extension
func decodeDocument(path string, data []byte) (any, error) {
	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".toml":
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, err
		}
		doc = m
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", filepath.Ext(path))
	}
	return doc, nil
}

// strictUnmarshal re-encodes a generic document as JSON and decodes it into
// out, rejecting unknown fields
func strictUnmarshal(doc any, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

var _ usecase.ManifestLoader = (*LoaderAdapter)(nil)
