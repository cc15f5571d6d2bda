package models

import "time"

// Orígenes posibles de un lote de compra
const (
	LotSourceManual        = "manual"
	LotSourceChainReceived = "chain-received"
)

// PurchaseLot es un lote de compra de BTC con saldo restante. Invariante:
// 0 <= RemainingBTC <= AmountBTC. El saldo solo se reduce por consumo FIFO.
type PurchaseLot struct {
	ID           string    `json:"id"`
	WalletID     string    `json:"wallet_id"`
	AmountBTC    float64   `json:"amount_btc" binding:"required,gt=0"`
	CostBasisUsd float64   `json:"cost_basis_usd" binding:"required,gt=0"`
	RemainingBTC float64   `json:"remaining_btc"`
	PurchaseDate time.Time `json:"purchase_date"`
	Source       string    `json:"source,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LotConsumption registra cuánto de un lote consumió una disposición. Con
// este diario el resultado de costo base es recomputable y la conservación
// de los lotes es auditable.
type LotConsumption struct {
	ID            string    `json:"id"`
	LotID         string    `json:"lot_id"`
	TransactionID string    `json:"transaction_id"`
	AmountBTC     float64   `json:"amount_btc"`
	CostBasisUsd  float64   `json:"cost_basis_usd"`
	CreatedAt     time.Time `json:"created_at"`
}
