package chain

// gateway.go — On-chain gateway for the merchant agent.
//
// Wraps a single JSON-RPC client plus the agent's signing key and exposes
// two primitives: typed read calls (inventory, profit, balances) and a
// build→sign→send→await-receipt transaction path. Sends use legacy
// (type 0) gas pricing at one configured gwei price; the target chain
// does not support EIP-1559.

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/somnialabs/merchantd/internal/domain"
)

const (
	// Connection handshake: bounded retries, linear backoff.
	dialAttempts  = 3
	dialRetryWait = 2 * time.Second

	// Receipt polling.
	receiptTimeout  = 120 * time.Second
	receiptInterval = 3 * time.Second

	// RPC read throttle. Public Somnia RPCs rate-limit aggressively;
	// 20 req/s with a small burst keeps a full cycle well under it.
	readRatePerSec = 20
	readBurst      = 10
)

// ErrTxReverted signals a mined transaction whose receipt reports failure.
var ErrTxReverted = errors.New("transaction reverted on-chain")

// ContractCallError wraps a read call that reverted. Callers catch it and
// skip the item/merchant; it never propagates to the orchestrator.
type ContractCallError struct {
	Method string
	Err    error
}

func (e *ContractCallError) Error() string {
	return fmt.Sprintf("contract call %s: %v", e.Method, e.Err)
}

func (e *ContractCallError) Unwrap() error { return e.Err }

// Gateway is the single chain-access object, constructed once at process
// start and passed by reference to every component that needs it.
type Gateway struct {
	client      *ethclient.Client
	chainID     *big.Int
	key         *ecdsa.PrivateKey
	address     common.Address
	gasPriceWei *big.Int
	readLimiter *rate.Limiter

	merchantAddr common.Address // fixed contract (single-contract mode)
	factoryAddr  common.Address // factory contract (factory mode)
}

// NewGateway dials the RPC, derives the agent address from the private key
// and verifies connectivity with a bounded number of attempts. An
// unreachable provider here is fatal; during the run connection hiccups
// only fail individual calls.
func NewGateway(rpcURL, privateKeyHex string, gasPriceGwei int64) (*Gateway, error) {
	pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain.NewGateway: decode private key: %w", err)
	}
	key, err := crypto.ToECDSA(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("chain.NewGateway: invalid private key: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain.NewGateway: dial rpc %s: %w", rpcURL, err)
	}

	gw := &Gateway{
		client:      client,
		key:         key,
		address:     crypto.PubkeyToAddress(key.PublicKey),
		gasPriceWei: new(big.Int).Mul(big.NewInt(gasPriceGwei), big.NewInt(1_000_000_000)),
		readLimiter: rate.NewLimiter(readRatePerSec, readBurst),
	}

	ctx := context.Background()
	for attempt := 1; ; attempt++ {
		block, err := client.BlockNumber(ctx)
		if err == nil {
			gw.chainID, err = client.ChainID(ctx)
			if err != nil {
				return nil, fmt.Errorf("chain.NewGateway: chain id: %w", err)
			}
			slog.Info("connected to blockchain",
				"rpc", rpcURL,
				"chain_id", gw.chainID,
				"block", block,
				"agent", gw.address.Hex(),
			)
			return gw, nil
		}
		if attempt == dialAttempts {
			return nil, fmt.Errorf("chain.NewGateway: unreachable after %d attempts: %w", dialAttempts, err)
		}
		slog.Warn("connection attempt failed, retrying", "attempt", attempt, "err", err)
		time.Sleep(time.Duration(attempt) * dialRetryWait)
	}
}

// SetMerchantContract fixes the single-contract-mode merchant address.
func (gw *Gateway) SetMerchantContract(addr string) {
	gw.merchantAddr = common.HexToAddress(addr)
}

// SetFactoryContract fixes the factory address (factory mode).
func (gw *Gateway) SetFactoryContract(addr string) {
	gw.factoryAddr = common.HexToAddress(addr)
}

// Address returns the agent's wallet address.
func (gw *Gateway) Address() common.Address { return gw.address }

// MerchantContract returns the fixed merchant contract address.
func (gw *Gateway) MerchantContract() common.Address { return gw.merchantAddr }

// Connected reports whether the RPC currently answers.
func (gw *Gateway) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := gw.client.BlockNumber(ctx)
	return err == nil
}

// WalletBalance returns the agent wallet balance, minor and major units.
func (gw *Gateway) WalletBalance(ctx context.Context) (domain.WalletState, error) {
	if err := gw.readLimiter.Wait(ctx); err != nil {
		return domain.WalletState{}, err
	}
	wei, err := gw.client.BalanceAt(ctx, gw.address, nil)
	if err != nil {
		return domain.WalletState{}, fmt.Errorf("chain.WalletBalance: %w", err)
	}
	return domain.WalletState{Wei: wei, Eth: domain.WeiToEth(wei)}, nil
}

// call packs and executes a read via eth_call. Reverts come back as
// *ContractCallError; transport failures as plain errors.
func (gw *Gateway) call(ctx context.Context, to common.Address, method string, args ...any) ([]any, error) {
	if err := gw.readLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	callABI := merchantABI
	if to == gw.factoryAddr && gw.factoryAddr != (common.Address{}) {
		callABI = factoryABI
	}

	data, err := callABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain.call: pack %s: %w", method, err)
	}

	out, err := gw.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			return nil, &ContractCallError{Method: method, Err: err}
		}
		return nil, fmt.Errorf("chain.call: %s: %w", method, err)
	}
	if len(out) == 0 {
		// Empty return data: no bytecode at the address or a silent revert.
		return nil, &ContractCallError{Method: method, Err: errors.New("empty return data")}
	}

	vals, err := callABI.Unpack(method, out)
	if err != nil {
		return nil, &ContractCallError{Method: method, Err: err}
	}
	return vals, nil
}

// Send packs a merchant-contract method, signs it with the agent key and
// submits it, then blocks until the receipt is mined or the timeout
// elapses. The gas limit is chosen by the caller per action kind; gas
// pricing is always legacy at the configured price.
func (gw *Gateway) Send(ctx context.Context, id domain.MerchantID, method string, gasLimit uint64, valueWei *big.Int, args ...any) (string, error) {
	data, err := merchantABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("chain.Send: pack %s: %w", method, err)
	}
	return gw.sendRaw(ctx, id.Contract, data, valueWei, gasLimit)
}

// sendRaw is the shared build→sign→send→await-receipt path.
func (gw *Gateway) sendRaw(ctx context.Context, to common.Address, data []byte, valueWei *big.Int, gasLimit uint64) (string, error) {
	nonce, err := gw.client.PendingNonceAt(ctx, gw.address)
	if err != nil {
		return "", fmt.Errorf("chain.send: nonce: %w", err)
	}

	if valueWei == nil {
		valueWei = big.NewInt(0)
	}
	tx := types.NewTransaction(nonce, to, valueWei, gasLimit, gw.gasPriceWei, data)

	signed, err := types.SignTx(tx, types.NewEIP155Signer(gw.chainID), gw.key)
	if err != nil {
		return "", fmt.Errorf("chain.send: sign: %w", err)
	}

	if err := gw.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain.send: submit: %w", err)
	}

	txHash := signed.Hash()
	slog.Debug("transaction sent", "tx", txHash.Hex(), "to", to.Hex(), "gas", gasLimit)

	receiptCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := gw.waitForReceipt(receiptCtx, txHash)
	if err != nil {
		return "", fmt.Errorf("chain.send: wait receipt %s: %w", txHash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("chain.send: %s: %w", txHash.Hex(), ErrTxReverted)
	}

	slog.Debug("transaction confirmed", "tx", txHash.Hex(), "block", receipt.BlockNumber)
	return txHash.Hex(), nil
}

// waitForReceipt polls for a transaction receipt until mined or timeout.
func (gw *Gateway) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := gw.client.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}

// isRevert distinguishes an on-chain revert from a transport failure.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}
