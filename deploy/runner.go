// Package deploy runs a single contract deployment: request it, wait for
// the confirmation, print where the contract landed.
package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ContractName is the artifact deployed by the runner. Its constructor
// takes no arguments.
const ContractName = "NFT"

// Deployer starts contract deployments.
type Deployer interface {
	DeployContract(ctx context.Context, name string, args ...interface{}) (Deployment, error)
}

// Deployment is an in-flight contract deployment. Target is only valid once
// WaitForDeployment has returned nil.
type Deployment interface {
	WaitForDeployment(ctx context.Context) error
	Target() string
}

// Runner deploys ContractName through Deployer. A zero Stdout, Stderr or
// Log falls back to os.Stdout, os.Stderr and the standard logrus logger.
type Runner struct {
	Deployer Deployer
	Stdout   io.Writer
	Stderr   io.Writer
	Log      *logrus.Entry

	// Timeout bounds the deployment and its confirmation together. Zero
	// means no bound.
	Timeout time.Duration
}

// NewRunner returns a Runner writing to the process's stdout and stderr.
func NewRunner(deployer Deployer, log *logrus.Entry) *Runner {
	return &Runner{
		Deployer: deployer,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Log:      log,
	}
}

// Run deploys ContractName, waits for it to be confirmed and writes its
// address to Stdout. It returns the address.
func (r *Runner) Run(ctx context.Context) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	log := r.logger().WithField("contract", ContractName)
	log.Info("Deploying contract")

	deployment, err := r.Deployer.DeployContract(ctx, ContractName)
	if err != nil {
		return "", fmt.Errorf("deploy %s: %w", ContractName, err)
	}

	log.Debug("Waiting for deployment confirmation")
	if err := deployment.WaitForDeployment(ctx); err != nil {
		return "", fmt.Errorf("wait for %s deployment: %w", ContractName, err)
	}

	target := deployment.Target()
	if _, err := fmt.Fprintf(writerOr(r.Stdout, os.Stdout), "%s Contract Deployed at %s\n", ContractName, target); err != nil {
		return "", err
	}
	return target, nil
}

// Main is Run for a process entrypoint: the error, if any, goes to Stderr
// and the result is the exit code.
func (r *Runner) Main(ctx context.Context) int {
	if _, err := r.Run(ctx); err != nil {
		fmt.Fprintln(writerOr(r.Stderr, os.Stderr), err)
		return 1
	}
	return 0
}

func (r *Runner) logger() *logrus.Entry {
	if r.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return r.Log
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}
