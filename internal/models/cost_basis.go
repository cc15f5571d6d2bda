package models

// CostBasisResult es la ganancia o pérdida realizada de una transacción de
// envío, calculada por consumo FIFO de los lotes de compra. Es un valor
// derivado: no se persiste, se recalcula a partir de los lotes y el diario
// de consumos.
type CostBasisResult struct {
	TransactionID string  `json:"transaction_id"`
	Type          string  `json:"type"`
	AmountBTC     float64 `json:"amount_btc"`
	SaleValueUsd  float64 `json:"sale_value_usd"`
	CostBasisUsd  float64 `json:"cost_basis_usd"`
	GainLossUsd   float64 `json:"gain_loss_usd"`
	// LotsExhausted indica que el inventario de lotes no alcanzó a cubrir
	// la venta: el remanente se computó con costo base cero
	LotsExhausted bool `json:"lots_exhausted,omitempty"`
}
