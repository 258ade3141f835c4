package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/afero"
)

// Artifact is the compiled form of a contract
type Artifact struct {
	ABI      *abi.ABI
	Bytecode []byte
}

// artifactFile covers both Hardhat ("bytecode": "0x...") and Foundry
// ("bytecode": {"object": "0x..."}) artifacts
type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

func loadArtifact(fs afero.Fs, path string) (*Artifact, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if len(file.ABI) == 0 {
		return nil, fmt.Errorf("artifact %s has no abi", path)
	}

	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi in %s: %w", path, err)
	}

	code, err := bytecodeObject(file.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}

	return &Artifact{ABI: &parsed, Bytecode: code}, nil
}

func bytecodeObject(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var object string
	if err := json.Unmarshal(raw, &object); err != nil {
		var foundry struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &foundry); err != nil {
			return nil, fmt.Errorf("unrecognized bytecode field")
		}
		object = foundry.Object
	}

	if object == "" || object == "0x" {
		return nil, nil
	}
	if strings.Contains(object, "__") {
		return nil, fmt.Errorf("bytecode has unlinked library references")
	}
	if !strings.HasPrefix(object, "0x") {
		object = "0x" + object
	}
	code, err := hexutil.Decode(object)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode: %w", err)
	}
	return code, nil
}
