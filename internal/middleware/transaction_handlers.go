package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/repository"
	"github.com/gin-gonic/gin"
)

// GetWalletTransactions devuelve las transacciones persistidas de una
// billetera del usuario
func GetWalletTransactions(c *gin.Context) {
	userID := c.GetString("userId")
	walletID := c.Param("id")

	if _, err := walletRepo.GetWallet(userID, walletID); err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Billetera no encontrada"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al obtener la billetera"})
		return
	}

	transactions, err := txRepo.GetWalletTransactions(walletID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al obtener las transacciones"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// GetCostBasis calcula el costo base FIFO de las transacciones de envío
// pedidas por query string: ?transactionIds=id1,id2
func GetCostBasis(c *gin.Context) {
	userID := c.GetString("userId")

	idsParam := c.Query("transactionIds")
	if idsParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Falta el parámetro transactionIds"})
		return
	}

	results := make([]models.CostBasisResult, 0)
	for _, id := range strings.Split(idsParam, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		result, err := purchaseRepo.ComputeCostBasis(userID, id)
		if err != nil {
			// Solo se saltean los casos esperables: id inexistente o
			// transacción que no es un envío. Cualquier otro error es de
			// infraestructura y corta la respuesta.
			if errors.Is(err, repository.ErrTransactionNotFound) || errors.Is(err, repository.ErrNotDisposal) {
				log.Printf("Costo base omitido para %s: %v", id, err)
				continue
			}
			log.Printf("Error calculando el costo base de %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al calcular el costo base"})
			return
		}
		results = append(results, *result)
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
