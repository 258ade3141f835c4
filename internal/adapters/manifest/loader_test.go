package manifest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
)

const heroABI = `[
  {"type":"constructor","inputs":[{"name":"core","type":"address"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"setDungeonCore","inputs":[{"name":"core","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"dungeonCore","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}
]`

const jsonManifest = `{
  "name": "dungeondelvers-v26",
  "chainId": 56,
  "contracts": [
    {"name": "DungeonCore", "address": "0x00000000000000000000000000000000000000c0"},
    {
      "name": "Hero",
      "dependsOn": ["DungeonCore"],
      "constructorArgsTemplate": [{"ref": "DungeonCore"}],
      "artifact": "artifacts/Hero.json",
      "source": {
        "contractName": "contracts/nft/Hero.sol:Hero",
        "compilerVersion": "v0.8.20+commit.a1b79de6",
        "standardJsonInput": "sources/Hero.input.json",
        "optimizationRuns": 200
      }
    },
    {"name": "Relic", "dependsOn": ["DungeonCore"], "artifact": "out/Relic.sol/Relic.json", "constructorArgsTemplate": [{"ref": "DungeonCore"}, "1000000000000000000"]}
  ],
  "wireOps": [
    {"targetContract": "Hero", "candidateMethods": ["setDungeonCore", "setCore(address)"], "argument": {"ref": "DungeonCore"}, "verifyGetter": "dungeonCore"}
  ],
  "propagationTargets": [
    {"filePath": "../frontend/.env", "format": "dotenv", "keyMappingRule": {"prefix": "VITE_"}}
  ]
}`

const yamlManifest = `
name: dungeondelvers-v26
chainId: 56
contracts:
  - name: DungeonCore
    address: "0x00000000000000000000000000000000000000c0"
  - name: Hero
    dependsOn: [DungeonCore]
    constructorArgsTemplate:
      - ref: DungeonCore
    artifact: artifacts/Hero.json
wireOps:
  - targetContract: Hero
    candidateMethods: [setDungeonCore, "setCore(address)"]
    argument: {ref: DungeonCore}
    verifyGetter: dungeonCore
propagationTargets:
  - filePath: ../frontend/.env
    format: dotenv
    keyMappingRule: {prefix: VITE_}
`

const tomlManifest = `
name = "dungeondelvers-v26"
chainId = 56

[[contracts]]
name = "DungeonCore"
address = "0x00000000000000000000000000000000000000c0"

[[contracts]]
name = "Hero"
dependsOn = ["DungeonCore"]
artifact = "artifacts/Hero.json"
constructorArgsTemplate = [{ ref = "DungeonCore" }]

[[wireOps]]
targetContract = "Hero"
candidateMethods = ["setDungeonCore", "setCore(address)"]
argument = { ref = "DungeonCore" }
verifyGetter = "dungeonCore"

[[propagationTargets]]
filePath = "../frontend/.env"
format = "dotenv"
keyMappingRule = { prefix = "VITE_" }
`

func newProjectFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/project/deploy/artifacts/Hero.json":      `{"contractName":"Hero","abi":` + heroABI + `,"bytecode":"0x6080604052"}`,
		"/project/deploy/out/Relic.sol/Relic.json": `{"abi":[],"bytecode":{"object":"0x60806040","linkReferences":{}}}`,
		"/project/deploy/sources/Hero.input.json":  `{"language":"Solidity","sources":{}}`,
		"/project/deploy/manifest.json":            jsonManifest,
		"/project/deploy/manifest.yaml":            yamlManifest,
		"/project/deploy/manifest.toml":            tomlManifest,
		"/project/deploy/artifacts/Unlinked.json":  `{"abi":[],"bytecode":"0x6080__$1234567890$__6040"}`,
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func newLoader(fs afero.Fs) *LoaderAdapter {
	return NewLoaderAdapter(fs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLoaderAdapter_JSON(t *testing.T) {
	m, err := newLoader(newProjectFs(t)).Load(context.Background(), "/project/deploy/manifest.json")
	require.NoError(t, err)

	assert.Equal(t, "dungeondelvers-v26", m.Name)
	assert.Equal(t, uint64(56), m.ChainID)
	assert.Equal(t, "/project/deploy/manifest.json", m.Path)
	require.Len(t, m.Contracts, 3)

	core := m.Contracts[0]
	require.NotNil(t, core.Address)
	assert.Equal(t, common.HexToAddress("0xc0"), *core.Address)
	assert.Nil(t, core.ABI)

	hero := m.Contracts[1]
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, hero.Bytecode)
	require.NotNil(t, hero.ABI)
	assert.Contains(t, hero.ABI.Methods, "setDungeonCore")
	assert.Len(t, hero.ABI.Constructor.Inputs, 1)
	assert.Equal(t, []models.ValueRef{models.Ref("DungeonCore")}, hero.ConstructorArgs)
	require.NotNil(t, hero.Source)
	assert.Equal(t, `{"language":"Solidity","sources":{}}`, hero.Source.SourceCode)
	assert.Equal(t, 200, hero.Source.OptimizationRuns)

	relic := m.Contracts[2]
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40}, relic.Bytecode)
	assert.Equal(t, models.Literal("1000000000000000000"), relic.ConstructorArgs[1])

	require.Len(t, m.WireOps, 1)
	assert.Equal(t, []string{"setDungeonCore", "setCore(address)"}, m.WireOps[0].CandidateMethods)
	assert.Equal(t, models.Ref("DungeonCore"), m.WireOps[0].Argument)

	require.Len(t, m.PropagationTargets, 1)
	assert.Equal(t, "/project/frontend/.env", m.PropagationTargets[0].FilePath)
	assert.Equal(t, "VITE_", m.PropagationTargets[0].KeyMappingRule.Prefix)
}

func TestLoaderAdapter_FormatsAgree(t *testing.T) {
	loader := newLoader(newProjectFs(t))

	for _, path := range []string{"/project/deploy/manifest.yaml", "/project/deploy/manifest.toml"} {
		t.Run(path, func(t *testing.T) {
			m, err := loader.Load(context.Background(), path)
			require.NoError(t, err)

			require.Len(t, m.Contracts, 2)
			assert.Equal(t, uint64(56), m.ChainID)
			assert.Equal(t, common.HexToAddress("0xc0"), *m.Contracts[0].Address)
			assert.Equal(t, []string{"DungeonCore"}, m.Contracts[1].DependsOn)
			assert.Equal(t, []models.ValueRef{models.Ref("DungeonCore")}, m.Contracts[1].ConstructorArgs)
			assert.NotEmpty(t, m.Contracts[1].Bytecode)

			require.Len(t, m.WireOps, 1)
			assert.Equal(t, models.Ref("DungeonCore"), m.WireOps[0].Argument)
			assert.Equal(t, "dungeonCore", m.WireOps[0].VerifyGetter)
			assert.Equal(t, "/project/frontend/.env", m.PropagationTargets[0].FilePath)
		})
	}
}

func TestLoaderAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		path    string
		want    string
	}{
		{
			name:    "unknown field",
			content: `{"contracts":[{"name":"Hero","depends_on":["DungeonCore"]}]}`,
			want:    "unknown field",
		},
		{
			name:    "invalid address",
			content: `{"contracts":[{"name":"Hero","address":"0x1234"}]}`,
			want:    "invalid address",
		},
		{
			name:    "missing artifact",
			content: `{"contracts":[{"name":"Hero","artifact":"artifacts/Missing.json"}]}`,
			want:    "failed to read artifact",
		},
		{
			name:    "unlinked libraries",
			content: `{"contracts":[{"name":"Hero","artifact":"artifacts/Unlinked.json"}]}`,
			want:    "unlinked library",
		},
		{
			name:    "ref without a name",
			content: `{"contracts":[{"name":"Hero","constructorArgsTemplate":[{"ref":""}]}]}`,
			want:    "ref must be a non-empty string",
		},
		{
			name:    "unsupported extension",
			content: `name: x`,
			path:    "/project/deploy/manifest.ini",
			want:    "unsupported manifest format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newProjectFs(t)
			path := tt.path
			if path == "" {
				path = "/project/deploy/broken.json"
			}
			require.NoError(t, afero.WriteFile(fs, path, []byte(tt.content), 0o644))

			_, err := newLoader(fs).Load(context.Background(), path)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidManifest)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoaderAdapter_EnvLiterals(t *testing.T) {
	t.Setenv("DELVE_TEST_TREASURY", "0x00000000000000000000000000000000000000aa")
	fs := newProjectFs(t)
	require.NoError(t, afero.WriteFile(fs, "/project/deploy/env.json",
		[]byte(`{"contracts":[{"name":"Vault","constructorArgsTemplate":["${DELVE_TEST_TREASURY}", {"ref": "$signer"}]}]}`), 0o644))

	m, err := newLoader(fs).Load(context.Background(), "/project/deploy/env.json")
	require.NoError(t, err)
	assert.Equal(t, []models.ValueRef{
		models.Literal("0x00000000000000000000000000000000000000aa"),
		models.Ref(models.SignerRef),
	}, m.Contracts[0].ConstructorArgs)
}
