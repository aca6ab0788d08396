package collection

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/keccak256"
)

// deployDomain separates collection address derivation from any other
// keccak-based scheme in the system.
var deployDomain = []byte("BRIDGEABLE_COLLECTION_V1")

// DeployBackend submits the actual creation transaction for a new
// bridgeable collection and waits for it to be mined.
type DeployBackend interface {
	DeployCollection(ctx context.Context, template common.Hash, salt *big.Int, constructorArgs []byte) (common.Address, error)
}

// Deployer creates destination-chain collections for origins that have
// no counterpart bound yet. Deployment failures are fatal to the whole
// bridging operation and are never retried here.
type Deployer struct {
	backend DeployBackend
}

// NewDeployer creates a new Deployer.
func NewDeployer(backend DeployBackend) *Deployer {
	return &Deployer{backend: backend}
}

// DeployBridgeableCollection creates a new collection contract from the
// given template and returns its address. The controller is both the
// administrative owner and the designated bridge controller of the new
// contract: bridged collections are synthetic wrapped representations
// and stay under bridge control.
//
// The returned address is deterministic in (template, saltSeed,
// constructor arguments); callers can predict it up front with
// ComputeCollectionAddress.
func (d *Deployer) DeployBridgeableCollection(ctx context.Context, template common.Hash, saltSeed *big.Int, name, symbol string, controller common.Address) (common.Address, error) {
	args, err := packConstructorArgs(name, symbol, controller)
	if err != nil {
		return common.Address{}, fmt.Errorf("packing collection constructor arguments: %w", err)
	}
	predicted := ComputeCollectionAddress(template, saltSeed, args)

	deployed, err := d.backend.DeployCollection(ctx, template, saltSeed, args)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploying bridgeable collection %q: %w", name, err)
	}
	if deployed != predicted {
		return common.Address{}, fmt.Errorf("deployed collection address %s does not match derived address %s", deployed, predicted)
	}
	return deployed, nil
}

// ComputeCollectionAddress derives the address a collection deployment
// will land on, without touching the chain.
func ComputeCollectionAddress(template common.Hash, saltSeed *big.Int, constructorArgs []byte) common.Address {
	var salt [common.HashLength]byte
	if saltSeed != nil {
		saltSeed.FillBytes(salt[:])
	}
	h := keccak256.Hash(deployDomain, template.Bytes(), salt[:], keccak256.Hash(constructorArgs))
	return common.BytesToAddress(h[len(h)-common.AddressLength:])
}

func packConstructorArgs(name, symbol string, controller common.Address) ([]byte, error) {
	stringTy, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil, err
	}
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	args := abi.Arguments{{Type: stringTy}, {Type: stringTy}, {Type: addressTy}}
	return args.Pack(name, symbol, controller)
}
