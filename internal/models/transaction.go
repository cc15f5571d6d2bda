package models

import "time"

// Tipos de transacción según su significado económico para la billetera
const (
	TransactionTypeSent     = "sent"
	TransactionTypeReceived = "received"
	TransactionTypeSelf     = "self"
)

// RawTransaction es una transacción tal como la devuelve el indexador
// esplora. Los montos vienen en satoshis.
type RawTransaction struct {
	TxID   string      `json:"txid"`
	Fee    int64       `json:"fee"`
	Vin    []RawInput  `json:"vin"`
	Vout   []RawOutput `json:"vout"`
	Status TxStatus    `json:"status"`
}

// RawInput referencia la salida previa que gasta, con su dirección y valor
type RawInput struct {
	Prevout RawOutput `json:"prevout"`
}

// RawOutput es una salida con la dirección destino y el valor en satoshis
type RawOutput struct {
	ScriptpubkeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

// TxStatus indica si la transacción está confirmada y en qué bloque
type TxStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
	BlockTime   int64 `json:"block_time"`
}

// ParsedTransaction es el resultado de clasificar una RawTransaction contra
// el conjunto de direcciones de la billetera. El monto es el económicamente
// relevante, no la suma cruda de los UTXOs.
type ParsedTransaction struct {
	TxID        string    `json:"txid"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	AmountBTC   float64   `json:"amount_btc"`
	FeeBTC      float64   `json:"fee_btc"`
	Confirmed   bool      `json:"confirmed"`
	BlockHeight int64     `json:"block_height,omitempty"`
}

// ValuedTransaction agrega la valuación histórica en USD a una transacción
// ya clasificada
type ValuedTransaction struct {
	ParsedTransaction
	UsdValue     float64 `json:"usd_value"`
	FeeUsd       float64 `json:"fee_usd"`
	ExchangeRate float64 `json:"exchange_rate"`
}

// WalletTransaction es la fila persistida de una transacción valuada
type WalletTransaction struct {
	ID           string    `json:"id"`
	WalletID     string    `json:"wallet_id"`
	TxID         string    `json:"txid"`
	Type         string    `json:"type"`
	AmountBTC    float64   `json:"amount_btc"`
	FeeBTC       float64   `json:"fee_btc"`
	UsdValue     float64   `json:"usd_value"`
	FeeUsd       float64   `json:"fee_usd"`
	ExchangeRate float64   `json:"exchange_rate"`
	Confirmed    bool      `json:"confirmed"`
	BlockHeight  int64     `json:"block_height,omitempty"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"created_at"`
}
