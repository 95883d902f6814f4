package framework

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrAmbiguousArtifact = errors.New("ambiguous artifact name")
	ErrNoBytecode        = errors.New("artifact has no creation bytecode")
	ErrUnlinkedLibrary   = errors.New("artifact bytecode has unlinked library references")
)

// skipped while resolving an artifact by contract name
var ignoredArtifactDirs = map[string]bool{
	"build-info": true,
	"cache":      true,
}

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	Name string
	Abi  *abi.ABI
	Code []byte
}

// artifactFile covers both Hardhat artifacts, where bytecode is a hex
// string, and Foundry artifacts, where bytecode is an object.
type artifactFile struct {
	ContractName string          `json:"contractName"`
	Abi          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

type foundryBytecode struct {
	Object string `json:"object"`
}

// ReadArtifact loads a contract artifact from dir. name is either a path
// ending in .json relative to dir (e.g. "NFT.sol/NFT.json") or a bare
// contract name (e.g. "NFT") that is looked up anywhere under dir.
func ReadArtifact(dir, name string) (*Artifact, error) {
	path := filepath.Join(dir, name)
	if !strings.HasSuffix(name, ".json") {
		found, err := findArtifact(dir, name)
		if err != nil {
			return nil, err
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, err
	}

	artifact, err := parseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	if artifact.Name == "" {
		artifact.Name = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return artifact, nil
}

func findArtifact(dir, name string) (string, error) {
	want := name + ".json"
	var matches []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && ignoredArtifactDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == want {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s (no directory %s)", ErrArtifactNotFound, name, dir)
		}
		return "", fmt.Errorf("search artifacts in %s: %w", dir, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguousArtifact, name, strings.Join(matches, ", "))
	}
}

func parseArtifact(data []byte) (*Artifact, error) {
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Abi) == 0 {
		return nil, errors.New("missing abi")
	}

	contractAbi, err := abi.JSON(bytes.NewReader(file.Abi))
	if err != nil {
		return nil, fmt.Errorf("invalid abi: %w", err)
	}

	code, err := decodeBytecode(file.Bytecode)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Name: file.ContractName,
		Abi:  &contractAbi,
		Code: code,
	}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoBytecode
	}

	var code string
	if raw[0] == '{' {
		var obj foundryBytecode
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("invalid bytecode: %w", err)
		}
		code = obj.Object
	} else if err := json.Unmarshal(raw, &code); err != nil {
		return nil, fmt.Errorf("invalid bytecode: %w", err)
	}

	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "0x") && !strings.HasPrefix(code, "0X") {
		code = "0x" + code
	}
	if len(code) == 2 {
		return nil, ErrNoBytecode
	}
	if strings.Contains(code, "__") {
		return nil, ErrUnlinkedLibrary
	}

	decoded, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode: %w", err)
	}
	return decoded, nil
}
