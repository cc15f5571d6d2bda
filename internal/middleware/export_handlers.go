package middleware

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/gin-gonic/gin"
)

// Categorías contables para la exportación
var exportCategories = map[string]string{
	models.TransactionTypeSent:     "disposal",
	models.TransactionTypeReceived: "acquisition",
	models.TransactionTypeSelf:     "transfer",
}

// ExportTransactionsCSV exporta las transacciones del usuario en un rango
// de fechas como CSV: una fila por transacción con fecha, tipo, monto BTC,
// valor USD y categoría
func ExportTransactionsCSV(c *gin.Context) {
	userID := c.GetString("userId")

	from, err := parseDateParam(c.Query("from"), time.Date(2009, 1, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parámetro from inválido, se espera YYYY-MM-DD"})
		return
	}
	to, err := parseDateParam(c.Query("to"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parámetro to inválido, se espera YYYY-MM-DD"})
		return
	}
	// El límite superior es inclusivo: cubre todo el día
	to = to.Add(24*time.Hour - time.Second)

	transactions, err := txRepo.GetTransactionsInRange(userID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al obtener las transacciones"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(
		"attachment; filename=transacciones_%s_%s.csv",
		from.Format("2006-01-02"), to.Format("2006-01-02"),
	))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"date", "type", "amount_btc", "usd_value", "fee_btc", "fee_usd", "category"})
	for _, tx := range transactions {
		writer.Write([]string{
			tx.Date.Format("2006-01-02"),
			tx.Type,
			fmt.Sprintf("%.8f", tx.AmountBTC),
			fmt.Sprintf("%.2f", tx.UsdValue),
			fmt.Sprintf("%.8f", tx.FeeBTC),
			fmt.Sprintf("%.2f", tx.FeeUsd),
			exportCategories[tx.Type],
		})
	}
}

func parseDateParam(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", value)
}
