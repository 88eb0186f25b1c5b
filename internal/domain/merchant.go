package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// weiPerEth es el factor de conversión entre unidades menor y mayor.
var weiPerEth = new(big.Float).SetFloat64(1e18)

// MerchantID identifica un merchant: contrato + token ID.
// En modo factory cada merchant es su propia instancia de contrato
// (Standalone=true); en modo single-contract todos los merchants son
// tokens del mismo contrato.
type MerchantID struct {
	Contract   common.Address
	TokenID    int64
	Standalone bool
}

// Key devuelve la identidad normalizada usada por el memory store:
// la address en minúsculas, o "address:token" para contratos multi-token.
func (id MerchantID) Key() string {
	addr := strings.ToLower(id.Contract.Hex())
	if id.Standalone {
		return addr
	}
	return fmt.Sprintf("%s:%d", addr, id.TokenID)
}

// String devuelve una etiqueta corta para logs.
func (id MerchantID) String() string {
	if id.Standalone {
		return id.Contract.Hex()[:10] + "…"
	}
	return fmt.Sprintf("#%d", id.TokenID)
}

// Item es una entrada del inventario tal como la devuelve el contrato.
// Index es la posición en la secuencia devuelta; no es estable entre
// operaciones add/restock dentro del mismo ciclo sin re-fetch.
type Item struct {
	Index    int
	Name     string
	PriceWei *big.Int
	Quantity int
	Active   bool
}

// PriceEth devuelve el precio en unidades mayores (float).
func (it Item) PriceEth() float64 {
	return WeiToEth(it.PriceWei)
}

// MerchantSnapshot es el estado efímero de un merchant, reconstruido
// en cada ciclo.
type MerchantSnapshot struct {
	ID        MerchantID
	Name      string
	Inventory []Item
	ProfitWei *big.Int
	Owner     common.Address
}

// ProfitEth devuelve el profit acumulado en unidades mayores.
func (m MerchantSnapshot) ProfitEth() float64 {
	return WeiToEth(m.ProfitWei)
}

// WalletState es el balance de la wallet del agente, leído una vez por
// ciclo y compartido (solo lectura) entre todos los merchants del ciclo.
type WalletState struct {
	Wei *big.Int
	Eth float64
}

// WeiToEth convierte unidades menores a mayores.
func WeiToEth(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEth).Float64()
	return f
}

// EthToWei convierte unidades mayores a menores.
func EthToWei(eth float64) *big.Int {
	f := new(big.Float).Mul(new(big.Float).SetFloat64(eth), weiPerEth)
	wei, _ := f.Int(nil)
	return wei
}
