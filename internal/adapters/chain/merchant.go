package chain

// merchant.go — typed reads over the MerchantNPC and MerchantFactory
// contracts. ABIs are inlined: the agent only touches a small, stable
// subset of both interfaces.

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/somnialabs/merchantd/internal/domain"
)

const registerGasLimit = uint64(150_000)

var (
	merchantABI abi.ABI
	factoryABI  abi.ABI
)

func init() {
	var err error

	merchantABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "getMerchantName",
			"type": "function",
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"outputs": [{"name": "", "type": "string"}]
		},
		{
			"name": "getItemCount",
			"type": "function",
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "getItem",
			"type": "function",
			"inputs": [
				{"name": "tokenId", "type": "uint256"},
				{"name": "index", "type": "uint256"}
			],
			"outputs": [
				{"name": "name", "type": "string"},
				{"name": "price", "type": "uint256"},
				{"name": "quantity", "type": "uint256"},
				{"name": "active", "type": "bool"}
			]
		},
		{
			"name": "profitOf",
			"type": "function",
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "addItem",
			"type": "function",
			"inputs": [
				{"name": "tokenId", "type": "uint256"},
				{"name": "name", "type": "string"},
				{"name": "price", "type": "uint256"},
				{"name": "quantity", "type": "uint256"}
			],
			"outputs": []
		},
		{
			"name": "buyItem",
			"type": "function",
			"inputs": [
				{"name": "tokenId", "type": "uint256"},
				{"name": "itemIndex", "type": "uint256"},
				{"name": "quantity", "type": "uint256"}
			],
			"outputs": []
		},
		{
			"name": "restockItem",
			"type": "function",
			"inputs": [
				{"name": "tokenId", "type": "uint256"},
				{"name": "itemIndex", "type": "uint256"},
				{"name": "quantity", "type": "uint256"}
			],
			"outputs": []
		},
		{
			"name": "withdrawProfit",
			"type": "function",
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"outputs": []
		},
		{
			"name": "balanceOf",
			"type": "function",
			"inputs": [{"name": "owner", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "tokenOfOwnerByIndex",
			"type": "function",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "index", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "totalSupply",
			"type": "function",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "ownerOf",
			"type": "function",
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"outputs": [{"name": "", "type": "address"}]
		}
	]`))
	if err != nil {
		panic("merchant abi parse: " + err.Error())
	}

	factoryABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "getAllMerchants",
			"type": "function",
			"inputs": [],
			"outputs": [{"name": "", "type": "address[]"}]
		},
		{
			"name": "getMerchantDetails",
			"type": "function",
			"inputs": [{"name": "merchantAddress", "type": "address"}],
			"outputs": [
				{"name": "owner", "type": "address"},
				{"name": "aiAgent", "type": "address"},
				{"name": "isActive", "type": "bool"}
			]
		},
		{
			"name": "getMerchantsByCreator",
			"type": "function",
			"inputs": [{"name": "creator", "type": "address"}],
			"outputs": [{"name": "", "type": "address[]"}]
		},
		{
			"name": "isAIAgent",
			"type": "function",
			"inputs": [{"name": "agent", "type": "address"}],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "registerAIAgent",
			"type": "function",
			"inputs": [{"name": "agent", "type": "address"}],
			"outputs": []
		}
	]`))
	if err != nil {
		panic("factory abi parse: " + err.Error())
	}
}

// MerchantDetails is one factory registry entry.
type MerchantDetails struct {
	Address common.Address
	Owner   common.Address
	Agent   common.Address
	Active  bool
}

// MerchantName reads the merchant's display name.
func (gw *Gateway) MerchantName(ctx context.Context, id domain.MerchantID) (string, error) {
	vals, err := gw.call(ctx, id.Contract, "getMerchantName", big.NewInt(id.TokenID))
	if err != nil {
		return "", err
	}
	name, ok := vals[0].(string)
	if !ok {
		return "", &ContractCallError{Method: "getMerchantName", Err: errors.New("unexpected return type")}
	}
	return name, nil
}

// Inventory reads the full item list, one getItem call per index.
// Individual item failures are skipped so a single bad slot does not hide
// the rest of the inventory.
func (gw *Gateway) Inventory(ctx context.Context, id domain.MerchantID) ([]domain.Item, error) {
	vals, err := gw.call(ctx, id.Contract, "getItemCount", big.NewInt(id.TokenID))
	if err != nil {
		return nil, err
	}
	count, ok := vals[0].(*big.Int)
	if !ok {
		return nil, &ContractCallError{Method: "getItemCount", Err: errors.New("unexpected return type")}
	}

	items := make([]domain.Item, 0, count.Int64())
	for idx := int64(0); idx < count.Int64(); idx++ {
		vals, err := gw.call(ctx, id.Contract, "getItem", big.NewInt(id.TokenID), big.NewInt(idx))
		if err != nil {
			slog.Debug("could not fetch item", "merchant", id, "index", idx, "err", err)
			continue
		}
		name, _ := vals[0].(string)
		price, _ := vals[1].(*big.Int)
		qty, _ := vals[2].(*big.Int)
		active, _ := vals[3].(bool)
		items = append(items, domain.Item{
			Index:    int(idx),
			Name:     name,
			PriceWei: price,
			Quantity: int(qty.Int64()),
			Active:   active,
		})
	}
	return items, nil
}

// Profit reads the merchant's accumulated profit in wei.
func (gw *Gateway) Profit(ctx context.Context, id domain.MerchantID) (*big.Int, error) {
	vals, err := gw.call(ctx, id.Contract, "profitOf", big.NewInt(id.TokenID))
	if err != nil {
		return nil, err
	}
	profit, ok := vals[0].(*big.Int)
	if !ok {
		return nil, &ContractCallError{Method: "profitOf", Err: errors.New("unexpected return type")}
	}
	return profit, nil
}

// TotalSupply reads the number of minted merchant tokens on a contract.
func (gw *Gateway) TotalSupply(ctx context.Context, contract common.Address) (int64, error) {
	vals, err := gw.call(ctx, contract, "totalSupply")
	if err != nil {
		return 0, err
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return 0, &ContractCallError{Method: "totalSupply", Err: errors.New("unexpected return type")}
	}
	return n.Int64(), nil
}

// OwnerBalance reads how many merchant tokens an owner holds on a contract.
func (gw *Gateway) OwnerBalance(ctx context.Context, contract, owner common.Address) (int64, error) {
	vals, err := gw.call(ctx, contract, "balanceOf", owner)
	if err != nil {
		return 0, err
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return 0, &ContractCallError{Method: "balanceOf", Err: errors.New("unexpected return type")}
	}
	return n.Int64(), nil
}

// TokenOfOwnerByIndex resolves the owner's i-th token ID.
func (gw *Gateway) TokenOfOwnerByIndex(ctx context.Context, contract, owner common.Address, index int64) (int64, error) {
	vals, err := gw.call(ctx, contract, "tokenOfOwnerByIndex", owner, big.NewInt(index))
	if err != nil {
		return 0, err
	}
	id, ok := vals[0].(*big.Int)
	if !ok {
		return 0, &ContractCallError{Method: "tokenOfOwnerByIndex", Err: errors.New("unexpected return type")}
	}
	return id.Int64(), nil
}

// OwnerOf probes a token ID. A revert means the token does not exist:
// that is an expected not-found result, not an error. Transport failures
// still come back as errors.
func (gw *Gateway) OwnerOf(ctx context.Context, contract common.Address, tokenID int64) (common.Address, bool, error) {
	vals, err := gw.call(ctx, contract, "ownerOf", big.NewInt(tokenID))
	if err != nil {
		var callErr *ContractCallError
		if errors.As(err, &callErr) {
			return common.Address{}, false, nil
		}
		return common.Address{}, false, err
	}
	owner, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, false, &ContractCallError{Method: "ownerOf", Err: errors.New("unexpected return type")}
	}
	return owner, true, nil
}

// FactoryMerchants lists every merchant the factory knows, with its
// registry details.
func (gw *Gateway) FactoryMerchants(ctx context.Context) ([]MerchantDetails, error) {
	vals, err := gw.call(ctx, gw.factoryAddr, "getAllMerchants")
	if err != nil {
		return nil, err
	}
	addrs, ok := vals[0].([]common.Address)
	if !ok {
		return nil, &ContractCallError{Method: "getAllMerchants", Err: errors.New("unexpected return type")}
	}

	details := make([]MerchantDetails, 0, len(addrs))
	for _, addr := range addrs {
		vals, err := gw.call(ctx, gw.factoryAddr, "getMerchantDetails", addr)
		if err != nil {
			slog.Debug("could not fetch merchant details", "merchant", addr.Hex(), "err", err)
			continue
		}
		owner, _ := vals[0].(common.Address)
		agent, _ := vals[1].(common.Address)
		active, _ := vals[2].(bool)
		details = append(details, MerchantDetails{Address: addr, Owner: owner, Agent: agent, Active: active})
	}
	return details, nil
}

// EnsureAgentRegistered checks the factory registry and registers the
// agent when missing. Best-effort: a failure is logged, never fatal.
func (gw *Gateway) EnsureAgentRegistered(ctx context.Context) {
	vals, err := gw.call(ctx, gw.factoryAddr, "isAIAgent", gw.address)
	if err != nil {
		slog.Warn("could not verify agent registration", "err", err)
		return
	}
	if registered, _ := vals[0].(bool); registered {
		slog.Info("agent already registered with factory", "agent", gw.address.Hex())
		return
	}

	data, err := factoryABI.Pack("registerAIAgent", gw.address)
	if err != nil {
		slog.Warn("could not pack agent registration", "err", err)
		return
	}
	txHash, err := gw.sendRaw(ctx, gw.factoryAddr, data, nil, registerGasLimit)
	if err != nil {
		slog.Warn("agent registration failed", "err", err)
		return
	}
	slog.Info("agent registered with factory", "tx", txHash)
}
