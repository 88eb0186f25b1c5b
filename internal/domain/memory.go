package domain

import "time"

// MerchantMemory es el registro persistido por merchant: tags de
// estrategia/personalidad, blob libre de memoria y contadores.
// Se crea lazy con defaults en la primera referencia y nunca se borra.
type MerchantMemory struct {
	Key                 string
	Strategy            string
	Personality         string
	Memory              map[string]any
	LastAction          string
	LastActionTime      time.Time
	TotalDecisions      int
	SuccessfulDecisions int
}

// DecisionRecord es una fila del historial de decisiones (append-only,
// ordenado por tiempo).
type DecisionRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Details   Details   `json:"details"`
	Reasoning string    `json:"reasoning"`
	Success   bool      `json:"success"`
}

// CycleResult resume el procesamiento de un merchant dentro de un ciclo;
// lo consume el reporter de consola.
type CycleResult struct {
	Snapshot MerchantSnapshot
	Decision Decision
	TxHash   string
	Executed bool
	Err      string
}
