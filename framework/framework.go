package framework

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

var (
	ErrConstructorArgs   = errors.New("constructor argument count mismatch")
	errNodeConnection    = errors.New("failed to connect to node")
	errChainIDFetch      = errors.New("failed getting chain id from node")
	errBalanceOverflow   = errors.New("balance does not fit in 256 bits")
	errMissingPrivateKey = errors.New("missing private key")
)

// Backend is the part of an Ethereum client the framework needs.
// *ethclient.Client and the go-ethereum simulated client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Framework deploys and tracks contracts on a single chain with a single
// deployer key.
type Framework struct {
	backend      Backend
	key          *PrivKey
	chainID      *big.Int
	artifactsDir string
	gasFeeCap    *uint256.Int
	gasTipCap    *uint256.Int
	pollInterval time.Duration
	log          *logrus.Entry
	close        func()
}

// New dials cfg.RPCURL and returns a Framework that deploys with cfg.PrivKey.
func New(ctx context.Context, cfg *Config, log *logrus.Entry) (*Framework, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", errNodeConnection, cfg.RPCURL, err)
	}

	fr, err := NewWithBackend(ctx, client, cfg, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	fr.close = client.Close
	return fr, nil
}

// NewWithBackend is New over an already connected backend.
func NewWithBackend(ctx context.Context, backend Backend, cfg *Config, log *logrus.Entry) (*Framework, error) {
	if cfg.PrivKey == nil {
		return nil, errMissingPrivateKey
	}

	chainID := cfg.ChainID
	if chainID == nil {
		id, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errChainIDFetch, err)
		}
		chainID = id
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	fr := &Framework{
		backend:      backend,
		key:          cfg.PrivKey,
		chainID:      chainID,
		artifactsDir: cfg.ArtifactsDir,
		gasFeeCap:    cfg.GasFeeCap,
		gasTipCap:    cfg.GasTipCap,
		pollInterval: pollInterval,
		log:          log,
		close:        func() {},
	}
	log.WithField("chainID", chainID).WithField("deployer", fr.Address().Hex()).Debug("Framework initialized")
	return fr, nil
}

func (fr *Framework) Close() {
	fr.close()
}

// Address returns the deployer account.
func (fr *Framework) Address() common.Address {
	return fr.key.Address()
}

func (fr *Framework) ChainID() *big.Int {
	return new(big.Int).Set(fr.chainID)
}

func (fr *Framework) Balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	balance, err := fr.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	wei, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, errBalanceOverflow
	}
	return wei, nil
}

// DeployContract sends the creation transaction for the named artifact and
// returns without waiting for it to be mined. Call WaitForDeployment on the
// result before using the contract.
func (fr *Framework) DeployContract(ctx context.Context, name string, args ...interface{}) (*Contract, error) {
	artifact, err := ReadArtifact(fr.artifactsDir, name)
	if err != nil {
		return nil, err
	}
	if want := len(artifact.Abi.Constructor.Inputs); want != len(args) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrConstructorArgs, artifact.Name, want, len(args))
	}

	opts, err := fr.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	log := fr.log.WithField("contract", artifact.Name)
	log.Debug("Sending deployment transaction")

	addr, tx, _, err := bind.DeployContract(opts, *artifact.Abi, artifact.Code, fr.backend, args...)
	if err != nil {
		return nil, err
	}
	log.WithField("tx", tx.Hash().Hex()).WithField("address", addr.Hex()).Info("Deployment transaction sent")

	return &Contract{
		fr:   fr,
		name: artifact.Name,
		addr: addr,
		abi:  artifact.Abi,
		tx:   tx,
	}, nil
}

// ContractAt returns a handle for a contract that is already deployed.
func (fr *Framework) ContractAt(addr common.Address, contractAbi *abi.ABI) *Contract {
	return &Contract{
		fr:       fr,
		addr:     addr,
		abi:      contractAbi,
		deployed: true,
	}
}

func (fr *Framework) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(fr.key.Priv, fr.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	if fr.gasFeeCap != nil {
		opts.GasFeeCap = fr.gasFeeCap.ToBig()
	}
	if fr.gasTipCap != nil {
		opts.GasTipCap = fr.gasTipCap.ToBig()
	}
	return opts, nil
}
