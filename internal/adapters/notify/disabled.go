package notify

import (
	"context"

	"github.com/somnialabs/merchantd/internal/domain"
	"github.com/somnialabs/merchantd/internal/ports"
)

// Disabled implementa ports.Notifier sin enviar nada; se usa cuando las
// notificaciones están desactivadas por configuración.
type Disabled struct{}

func NewDisabled() Disabled { return Disabled{} }

func (Disabled) SendDecision(context.Context, domain.MerchantID, domain.Decision, string) error {
	return nil
}

func (Disabled) SendHeartbeat(context.Context, ports.Heartbeat) error { return nil }

func (Disabled) SendError(context.Context, string, string) error { return nil }
