package framework

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrDeploymentReverted    = errors.New("deployment transaction reverted")
	ErrNoCodeAfterDeployment = errors.New("no contract code at deployed address")
)

// Contract is a handle to a deployed, or still deploying, contract.
type Contract struct {
	fr       *Framework
	name     string
	addr     common.Address
	abi      *abi.ABI
	tx       *types.Transaction
	receipt  *types.Receipt
	deployed bool
}

func (c *Contract) Address() common.Address {
	return c.addr
}

// Target returns the checksummed hex address.
func (c *Contract) Target() string {
	return c.addr.Hex()
}

func (c *Contract) Abi() *abi.ABI {
	return c.abi
}

// DeployTransaction is nil for contracts obtained through ContractAt.
func (c *Contract) DeployTransaction() *types.Transaction {
	return c.tx
}

// Receipt is nil until WaitForDeployment succeeds.
func (c *Contract) Receipt() *types.Receipt {
	return c.receipt
}

// WaitForDeployment blocks until the deployment transaction is mined and
// code is present at the contract address. It only returns early when ctx
// is done.
func (c *Contract) WaitForDeployment(ctx context.Context) error {
	if c.deployed {
		return nil
	}

	receipt, err := c.fr.waitMined(ctx, c.tx.Hash())
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s tx %s", ErrDeploymentReverted, c.name, receipt.TxHash.Hex())
	}
	if receipt.ContractAddress != (common.Address{}) {
		c.addr = receipt.ContractAddress
	}

	code, err := c.fr.backend.CodeAt(ctx, c.addr, nil)
	if err != nil {
		return fmt.Errorf("get code at %s: %w", c.addr.Hex(), err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%w: %s at %s", ErrNoCodeAfterDeployment, c.name, c.addr.Hex())
	}

	c.receipt = receipt
	c.deployed = true
	c.fr.log.WithField("contract", c.name).
		WithField("address", c.addr.Hex()).
		WithField("block", receipt.BlockNumber).
		WithField("gasUsed", receipt.GasUsed).
		Info("Contract deployed")
	return nil
}

// waitMined polls for the receipt of txHash. Lookup errors other than
// not-found are logged and retried.
func (fr *Framework) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(fr.pollInterval)
	defer ticker.Stop()

	log := fr.log.WithField("tx", txHash.Hex())
	for {
		receipt, err := fr.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if errors.Is(err, ethereum.NotFound) {
			log.Trace("Transaction not yet mined")
		} else {
			log.WithError(err).Debug("Receipt retrieval failed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
