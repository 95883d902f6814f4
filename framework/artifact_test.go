package framework

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// returnsFortyTwo copies a 10 byte runtime (PUSH1 42, MSTORE, RETURN 32)
// into memory and returns it as the contract code.
const returnsFortyTwo = "0x600a600c600039600a6000f3602a60005260206000f3"

const nftAbi = `[{"inputs":[],"stateMutability":"nonpayable","type":"constructor"},{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

func hardhatArtifact(name, bytecode string) string {
	return `{"_format":"hh-sol-artifact-1","contractName":"` + name + `","sourceName":"contracts/` + name + `.sol","abi":` + nftAbi + `,"bytecode":"` + bytecode + `","deployedBytecode":"0x"}`
}

func foundryArtifact(bytecode string) string {
	return `{"abi":` + nftAbi + `,"bytecode":{"object":"` + bytecode + `","sourceMap":""},"deployedBytecode":{"object":"0x"}}`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadArtifactHardhatByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "contracts", "NFT.sol", "NFT.json"), hardhatArtifact("NFT", returnsFortyTwo))
	writeFile(t, filepath.Join(dir, "contracts", "NFT.sol", "NFT.dbg.json"), `{"buildInfo":"../../build-info/x.json"}`)
	writeFile(t, filepath.Join(dir, "build-info", "NFT.json"), `{}`)

	artifact, err := ReadArtifact(dir, "NFT")
	require.NoError(t, err)

	assert.Equal(t, "NFT", artifact.Name)
	assert.Len(t, artifact.Code, 22)
	assert.Contains(t, artifact.Abi.Methods, "balanceOf")
	assert.Empty(t, artifact.Abi.Constructor.Inputs)
}

func TestReadArtifactFoundryByPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "NFT.sol", "NFT.json"), foundryArtifact(returnsFortyTwo))

	artifact, err := ReadArtifact(dir, "NFT.sol/NFT.json")
	require.NoError(t, err)

	assert.Equal(t, "NFT", artifact.Name)
	assert.Equal(t, byte(0x60), artifact.Code[0])
}

func TestReadArtifactErrors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		lookup  string
		wantErr error
	}{
		{
			name:    "missing by name",
			files:   map[string]string{"contracts/Other.sol/Other.json": hardhatArtifact("Other", returnsFortyTwo)},
			lookup:  "NFT",
			wantErr: ErrArtifactNotFound,
		},
		{
			name:    "missing by path",
			lookup:  "NFT.sol/NFT.json",
			wantErr: ErrArtifactNotFound,
		},
		{
			name: "same name in two sources",
			files: map[string]string{
				"contracts/A.sol/NFT.json": hardhatArtifact("NFT", returnsFortyTwo),
				"contracts/B.sol/NFT.json": hardhatArtifact("NFT", returnsFortyTwo),
			},
			lookup:  "NFT",
			wantErr: ErrAmbiguousArtifact,
		},
		{
			name:    "interface without bytecode",
			files:   map[string]string{"contracts/INFT.sol/INFT.json": hardhatArtifact("INFT", "0x")},
			lookup:  "INFT",
			wantErr: ErrNoBytecode,
		},
		{
			name:    "unlinked library",
			files:   map[string]string{"contracts/NFT.sol/NFT.json": hardhatArtifact("NFT", "0x6080__$1234567890abcdef1234567890abcdef12$__")},
			lookup:  "NFT",
			wantErr: ErrUnlinkedLibrary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for path, content := range tt.files {
				writeFile(t, filepath.Join(dir, filepath.FromSlash(path)), content)
			}

			_, err := ReadArtifact(dir, tt.lookup)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadArtifactMissingDir(t *testing.T) {
	_, err := ReadArtifact(filepath.Join(t.TempDir(), "nope"), "NFT")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestReadArtifactMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "NFT.json"), `{"abi": "not an abi", "bytecode": "0x00"}`)

	_, err := ReadArtifact(dir, "NFT")
	assert.Error(t, err)

	writeFile(t, filepath.Join(dir, "Bad.json"), `{"abi": [], "bytecode": "0xzz"}`)
	_, err = ReadArtifact(dir, "Bad")
	assert.ErrorContains(t, err, "invalid bytecode")
}

func TestReadArtifactBytecodeEncoding(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Bare.sol", "Bare.json"), foundryArtifact(returnsFortyTwo[2:]))
	writeFile(t, filepath.Join(dir, "Odd.sol", "Odd.json"), foundryArtifact("0x600"))

	artifact, err := ReadArtifact(dir, "Bare")
	require.NoError(t, err)
	assert.Equal(t, hexutil.MustDecode(returnsFortyTwo), artifact.Code)

	_, err = ReadArtifact(dir, "Odd")
	assert.ErrorIs(t, err, hexutil.ErrOddLength)
}
