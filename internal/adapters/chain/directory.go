package chain

// directory.go — merchant discovery. Two modes: a single merchant
// contract enumerated by token, or a factory registry filtered to the
// merchants this agent manages.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/somnialabs/merchantd/internal/domain"
)

const (
	probeExtra = 5
	probeMax   = 20
)

// discoveryReader is the slice of the gateway that discovery needs.
type discoveryReader interface {
	TotalSupply(ctx context.Context, contract common.Address) (int64, error)
	OwnerBalance(ctx context.Context, contract, owner common.Address) (int64, error)
	TokenOfOwnerByIndex(ctx context.Context, contract, owner common.Address, index int64) (int64, error)
	OwnerOf(ctx context.Context, contract common.Address, tokenID int64) (common.Address, bool, error)
	FactoryMerchants(ctx context.Context) ([]MerchantDetails, error)
	Address() common.Address
}

// OwnerDirectory enumerates merchants on a single contract. With an
// owner configured it walks the owner's tokens; without one it assumes
// sequential token IDs starting at 1.
type OwnerDirectory struct {
	reader   discoveryReader
	contract common.Address
	owner    common.Address
	hasOwner bool
}

// NewOwnerDirectory builds a directory over one merchant contract.
// owner may be empty.
func NewOwnerDirectory(reader discoveryReader, contract, owner string) *OwnerDirectory {
	dir := &OwnerDirectory{
		reader:   reader,
		contract: common.HexToAddress(contract),
	}
	if owner != "" {
		dir.owner = common.HexToAddress(owner)
		dir.hasOwner = true
	}
	return dir
}

func (d *OwnerDirectory) ListMerchants(ctx context.Context) ([]domain.MerchantID, error) {
	tokens, err := d.tokenIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain.ListMerchants: %w", err)
	}
	return idsForTokens(d.contract, tokens), nil
}

func (d *OwnerDirectory) tokenIDs(ctx context.Context) ([]int64, error) {
	if d.hasOwner {
		balance, err := d.reader.OwnerBalance(ctx, d.contract, d.owner)
		if err != nil {
			return nil, err
		}
		tokens := make([]int64, 0, balance)
		for i := int64(0); i < balance; i++ {
			tokenID, err := d.reader.TokenOfOwnerByIndex(ctx, d.contract, d.owner, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tokenID)
		}
		return tokens, nil
	}

	supply, err := d.reader.TotalSupply(ctx, d.contract)
	if err != nil {
		return nil, err
	}
	tokens := make([]int64, 0, supply)
	for tokenID := int64(1); tokenID <= supply; tokenID++ {
		tokens = append(tokens, tokenID)
	}
	return tokens, nil
}

// FactoryDirectory queries the factory registry and keeps the active
// merchants assigned to this agent.
type FactoryDirectory struct {
	reader discoveryReader
}

func NewFactoryDirectory(reader discoveryReader) *FactoryDirectory {
	return &FactoryDirectory{reader: reader}
}

func (d *FactoryDirectory) ListMerchants(ctx context.Context) ([]domain.MerchantID, error) {
	details, err := d.reader.FactoryMerchants(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain.ListMerchants: %w", err)
	}

	self := d.reader.Address()
	var ids []domain.MerchantID
	for _, m := range details {
		if m.Agent != self || !m.Active {
			continue
		}
		tokens := d.probeTokens(ctx, m)
		ids = append(ids, idsForTokens(m.Address, tokens)...)
	}
	return ids, nil
}

// probeTokens finds a merchant's token IDs by probing ownerOf. Token IDs
// start at 1 and may be sparse, so probing runs a few slots past the
// owner's balance. An empty result falls back to token 1: a merchant
// listed by the factory always has its first token minted.
func (d *FactoryDirectory) probeTokens(ctx context.Context, m MerchantDetails) []int64 {
	balance, err := d.reader.OwnerBalance(ctx, m.Address, m.Owner)
	if err != nil {
		slog.Debug("could not read owner balance", "merchant", m.Address.Hex(), "err", err)
		return []int64{1}
	}

	limit := balance + probeExtra
	if limit > probeMax {
		limit = probeMax
	}

	var tokens []int64
	for tokenID := int64(1); tokenID <= limit; tokenID++ {
		owner, found, err := d.reader.OwnerOf(ctx, m.Address, tokenID)
		if err != nil {
			slog.Debug("token probe failed", "merchant", m.Address.Hex(), "token", tokenID, "err", err)
			break
		}
		if found && owner == m.Owner {
			tokens = append(tokens, tokenID)
			if int64(len(tokens)) == balance {
				break
			}
		}
	}
	if len(tokens) == 0 {
		return []int64{1}
	}
	return tokens
}

// idsForTokens maps token IDs to merchant identities. A contract with a
// single token is addressed by contract alone.
func idsForTokens(contract common.Address, tokens []int64) []domain.MerchantID {
	ids := make([]domain.MerchantID, 0, len(tokens))
	standalone := len(tokens) == 1
	for _, tokenID := range tokens {
		ids = append(ids, domain.MerchantID{
			Contract:   contract,
			TokenID:    tokenID,
			Standalone: standalone,
		})
	}
	return ids
}
