package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/somnialabs/merchantd/internal/domain"
)

// Console implementa ports.Reporter: imprime el resumen del ciclo.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Report imprime el resultado del ciclo en el modo configurado.
func (c *Console) Report(_ context.Context, results []domain.CycleResult) error {
	if len(results) == 0 {
		fmt.Fprintf(c.out, "[%s] no merchants to manage\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printFull(results)
	} else {
		c.printCompact(results)
	}
	return nil
}

// printCompact imprime lo esencial en una línea por ciclo.
func (c *Console) printCompact(results []domain.CycleResult) {
	now := time.Now().Format("15:04:05")
	acted, failed := countOutcomes(results)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d merchants → acted:%d failed:%d", now, len(results), acted, failed)

	shown := 0
	for _, r := range results {
		if shown >= 4 || r.Decision.Action == domain.ActionNone {
			continue
		}
		fmt.Fprintf(&sb, " | %s %s", r.Snapshot.ID, r.Decision.Action)
		shown++
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime una tabla con una fila por merchant.
func (c *Console) printFull(results []domain.CycleResult) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Merchant", "Name", "Profit", "Items", "Action", "Tx", "Status")

	for _, r := range results {
		status := "ok"
		if r.Err != "" {
			status = "error"
		} else if r.Decision.Action != domain.ActionNone && !r.Executed {
			status = "failed"
		}

		tx := r.TxHash
		if len(tx) > 12 {
			tx = tx[:12] + "…"
		}

		table.Append(
			r.Snapshot.ID.String(),
			r.Snapshot.Name,
			fmt.Sprintf("%.4f", r.Snapshot.ProfitEth()),
			fmt.Sprintf("%d", len(r.Snapshot.Inventory)),
			string(r.Decision.Action),
			tx,
			status,
		)
	}
	table.Render()
}

func countOutcomes(results []domain.CycleResult) (acted, failed int) {
	for _, r := range results {
		if r.Err != "" {
			failed++
			continue
		}
		if r.Decision.Action == domain.ActionNone {
			continue
		}
		if r.Executed {
			acted++
		} else {
			failed++
		}
	}
	return
}
