package services

import (
	"fmt"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
)

const satoshisPerBTC = 1e8

// Constantes de la heurística de detección de cambio. Son los valores del
// comportamiento original y se preservan tal cual: no se re-derivan.
const (
	feeToleranceFloorSats  = 1000
	feeToleranceMultiplier = 2
	changeOutputRatioMin   = 0.8
	externalOutputCeiling  = 0.5
)

// SatoshisToBTC convierte satoshis a BTC
func SatoshisToBTC(sats int64) float64 {
	return float64(sats) / satoshisPerBTC
}

// ClassifyTransaction determina el significado económico de una transacción
// cruda para la billetera: sent, received o self. Los montos se comparan en
// satoshis; el monto resultante es el económicamente relevante, nunca la
// suma cruda de los UTXOs.
func ClassifyTransaction(raw models.RawTransaction, walletAddresses map[string]bool) (models.ParsedTransaction, error) {
	var totalIn, totalOutWallet, totalOutExternal int64
	walletInputs := 0
	walletOutputs := 0

	for _, input := range raw.Vin {
		if walletAddresses[input.Prevout.ScriptpubkeyAddress] {
			walletInputs++
			totalIn += input.Prevout.Value
		}
	}
	for _, output := range raw.Vout {
		if walletAddresses[output.ScriptpubkeyAddress] {
			walletOutputs++
			totalOutWallet += output.Value
		} else {
			totalOutExternal += output.Value
		}
	}

	isSent := walletInputs > 0
	isReceived := walletOutputs > 0
	fee := raw.Fee

	// Para la contabilidad solo importa confirmada o no; la fecha sale del
	// bloque y solo cae en "ahora" si el indexador no la informó
	date := time.Now()
	if raw.Status.BlockTime > 0 {
		date = time.Unix(raw.Status.BlockTime, 0).UTC()
	}

	parsed := models.ParsedTransaction{
		TxID:        raw.TxID,
		Date:        date,
		FeeBTC:      SatoshisToBTC(fee),
		Confirmed:   raw.Status.Confirmed,
		BlockHeight: raw.Status.BlockHeight,
	}

	switch {
	case isSent && isReceived:
		// La billetera aparece en ambos lados: puede ser cambio puro, un
		// envío con cambio o una consolidación entre direcciones propias
		diff := totalIn - totalOutWallet - fee
		if diff < 0 {
			diff = -diff
		}
		feeTolerance := feeToleranceMultiplier * fee
		if feeTolerance < feeToleranceFloorSats {
			feeTolerance = feeToleranceFloorSats
		}
		outputRatio := float64(totalOutWallet) / float64(totalIn)

		if diff <= feeTolerance &&
			outputRatio > changeOutputRatioMin &&
			float64(totalOutExternal) < externalOutputCeiling*float64(totalOutWallet) {
			// Cambio puro: no se movió valor fuera de la billetera
			parsed.Type = models.TransactionTypeSelf
			parsed.AmountBTC = 0
		} else if totalOutExternal > 0 {
			// Lo que salió de la billetera es solo la porción externa; la
			// salida propia es cambio y nunca cuenta como gasto
			parsed.Type = models.TransactionTypeSent
			parsed.AmountBTC = SatoshisToBTC(totalOutExternal)
		} else {
			// Consolidación entre direcciones propias: el valor movido es
			// la diferencia tras el fee, normalmente ~0
			parsed.Type = models.TransactionTypeSelf
			parsed.AmountBTC = SatoshisToBTC(diff)
		}

	case isSent:
		amount := totalOutExternal
		if amount <= 0 {
			// Caso borde sin salidas externas
			amount = totalIn - fee
		}
		parsed.Type = models.TransactionTypeSent
		parsed.AmountBTC = SatoshisToBTC(amount)

	case isReceived:
		parsed.Type = models.TransactionTypeReceived
		parsed.AmountBTC = SatoshisToBTC(totalOutWallet)

	default:
		// El indexador devolvió esta transacción para una dirección de la
		// billetera; si ninguna entrada ni salida es propia algo está mal
		return models.ParsedTransaction{}, fmt.Errorf(
			"la transacción %s no toca ninguna dirección de la billetera", raw.TxID)
	}

	return parsed, nil
}
