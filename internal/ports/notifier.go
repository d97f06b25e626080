package ports

import (
	"context"

	"github.com/alejandrodnm/evbot/internal/domain"
)

// Notifier presenta el resultado de un ciclo al usuario.
type Notifier interface {
	// NotifyCycle muestra el resumen del ciclo. En la implementación de
	// consola, imprime una tabla formateada por mercado.
	NotifyCycle(ctx context.Context, summary *domain.CycleSummary) error
}
