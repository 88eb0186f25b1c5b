package domain

import (
	"fmt"
	"math/big"
)

// Action es el conjunto cerrado de acciones que el agente puede ejecutar.
// El contrato V2 no soporta reprice; se rechaza al parsear.
type Action string

const (
	ActionNone     Action = "none"
	ActionAddItem  Action = "add_item"
	ActionBuy      Action = "buy"
	ActionRestock  Action = "restock"
	ActionWithdraw Action = "withdraw"
)

// ParseAction valida una acción recibida (p. ej. del LLM).
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionNone, ActionAddItem, ActionBuy, ActionRestock, ActionWithdraw:
		return Action(s), nil
	case "reprice":
		return "", fmt.Errorf("action %q not supported by the V2 contract", s)
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Details son los parámetros de una acción. Qué campos son obligatorios
// depende de la acción; ver Validate.
type Details struct {
	ItemName  string   `json:"item_name,omitempty"`
	ItemIndex int      `json:"item_index"`
	PriceWei  *big.Int `json:"price_wei,omitempty"`
	Quantity  int      `json:"quantity,omitempty"`
}

// Decision es el resultado del engine para un merchant en un ciclo.
// Reasoning siempre está presente: se muestra al operador y se persiste.
type Decision struct {
	Action    Action  `json:"action"`
	Details   Details `json:"details"`
	Reasoning string  `json:"reasoning"`
}

// Validate comprueba que Details tiene los campos requeridos por la acción.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionAddItem:
		if d.Details.ItemName == "" {
			return fmt.Errorf("add_item requires item_name")
		}
		if d.Details.PriceWei == nil || d.Details.PriceWei.Sign() <= 0 {
			return fmt.Errorf("add_item requires a positive price_wei")
		}
		if d.Details.Quantity <= 0 {
			return fmt.Errorf("add_item requires a positive quantity")
		}
	case ActionBuy:
		if d.Details.ItemIndex < 0 {
			return fmt.Errorf("buy requires a valid item_index")
		}
		if d.Details.PriceWei == nil || d.Details.PriceWei.Sign() <= 0 {
			return fmt.Errorf("buy requires a positive price_wei")
		}
	case ActionRestock:
		if d.Details.ItemIndex < 0 {
			return fmt.Errorf("restock requires a valid item_index")
		}
		if d.Details.Quantity <= 0 {
			return fmt.Errorf("restock requires a positive quantity")
		}
	case ActionNone, ActionWithdraw:
		// sin campos obligatorios
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}
	return nil
}

// BuyQuantity devuelve la cantidad a comprar (default 1).
func (d Decision) BuyQuantity() int {
	if d.Details.Quantity > 0 {
		return d.Details.Quantity
	}
	return 1
}
