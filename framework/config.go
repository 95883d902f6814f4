package framework

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	ENV_RPC_URL        = "RPC_URL"
	ENV_PRIVATE_KEY    = "PRIVATE_KEY"
	ENV_ARTIFACTS_DIR  = "ARTIFACTS_DIR"
	ENV_CHAIN_ID       = "CHAIN_ID"
	ENV_GAS_FEE_CAP    = "GAS_FEE_CAP"
	ENV_GAS_TIP_CAP    = "GAS_TIP_CAP"
	ENV_DEPLOY_TIMEOUT = "DEPLOY_TIMEOUT"
	ENV_POLL_INTERVAL  = "POLL_INTERVAL"
	ENV_LOG_LEVEL      = "LOG_LEVEL"

	DefaultRPCURL       = "http://127.0.0.1:8545"
	DefaultArtifactsDir = "artifacts"
	DefaultPollInterval = time.Second
	DefaultLogLevel     = "info"

	// DefaultPrivKeyHex is the first prefunded account of a Hardhat or
	// Anvil dev node, address 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266.
	DefaultPrivKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

// Config describes how to reach the chain and how to deploy to it.
type Config struct {
	RPCURL       string
	PrivKey      *PrivKey
	ArtifactsDir string

	// ChainID is requested from the node when nil.
	ChainID *big.Int

	// Left to the node's suggestion when nil.
	GasFeeCap *uint256.Int
	GasTipCap *uint256.Int

	// Timeout bounds the whole deployment. Zero waits for as long as
	// the confirmation takes.
	Timeout      time.Duration
	PollInterval time.Duration
	LogLevel     logrus.Level
}

// LoadConfig reads the configuration from the environment. The given env
// files, or ./.env when none are given, are loaded first if they exist;
// variables already present in the environment win.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := &Config{
		RPCURL:       getEnv(ENV_RPC_URL, DefaultRPCURL),
		ArtifactsDir: getEnv(ENV_ARTIFACTS_DIR, DefaultArtifactsDir),
	}

	var err error
	if cfg.PrivKey, err = NewPrivKeyFromHex(getEnv(ENV_PRIVATE_KEY, DefaultPrivKeyHex)); err != nil {
		return nil, fmt.Errorf("%s: %w", ENV_PRIVATE_KEY, err)
	}

	if v := getEnv(ENV_CHAIN_ID, ""); v != "" {
		chainID, ok := new(big.Int).SetString(v, 10)
		if !ok || chainID.Sign() <= 0 {
			return nil, fmt.Errorf("%s: invalid chain id %q", ENV_CHAIN_ID, v)
		}
		cfg.ChainID = chainID
	}

	if cfg.GasFeeCap, err = parseWei(ENV_GAS_FEE_CAP); err != nil {
		return nil, err
	}
	if cfg.GasTipCap, err = parseWei(ENV_GAS_TIP_CAP); err != nil {
		return nil, err
	}
	if cfg.GasFeeCap != nil && cfg.GasTipCap != nil && cfg.GasTipCap.Gt(cfg.GasFeeCap) {
		return nil, fmt.Errorf("%s %s exceeds %s %s", ENV_GAS_TIP_CAP, cfg.GasTipCap.Dec(), ENV_GAS_FEE_CAP, cfg.GasFeeCap.Dec())
	}

	if cfg.Timeout, err = parseDuration(ENV_DEPLOY_TIMEOUT, 0); err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%s: must not be negative", ENV_DEPLOY_TIMEOUT)
	}
	if cfg.PollInterval, err = parseDuration(ENV_POLL_INTERVAL, DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%s: must be positive", ENV_POLL_INTERVAL)
	}

	if cfg.LogLevel, err = logrus.ParseLevel(getEnv(ENV_LOG_LEVEL, DefaultLogLevel)); err != nil {
		return nil, fmt.Errorf("%s: %w", ENV_LOG_LEVEL, err)
	}

	return cfg, nil
}

func parseWei(key string) (*uint256.Int, error) {
	v := getEnv(key, "")
	if v == "" {
		return nil, nil
	}
	wei, err := uint256.FromDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid wei amount %q: %w", key, v, err)
	}
	return wei, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}
