package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/repository"
	"github.com/gin-gonic/gin"
)

// Cuerpo de creación de un lote de compra manual
type createPurchaseRequest struct {
	WalletID     string    `json:"wallet_id" binding:"required"`
	AmountBTC    float64   `json:"amount_btc" binding:"required,gt=0"`
	CostBasisUsd float64   `json:"cost_basis_usd" binding:"required,gt=0"`
	PurchaseDate time.Time `json:"purchase_date"`
	Source       string    `json:"source"`
}

// Cuerpo de edición parcial de un lote
type updatePurchaseRequest struct {
	AmountBTC    *float64   `json:"amount_btc"`
	CostBasisUsd *float64   `json:"cost_basis_usd"`
	PurchaseDate *time.Time `json:"purchase_date"`
}

// CreatePurchase registra un lote de compra manual
func CreatePurchase(c *gin.Context) {
	var req createPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userId")

	// La billetera tiene que ser del usuario
	if _, err := walletRepo.GetWallet(userID, req.WalletID); err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Billetera no encontrada"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al obtener la billetera"})
		return
	}

	lot := models.PurchaseLot{
		WalletID:     req.WalletID,
		AmountBTC:    req.AmountBTC,
		CostBasisUsd: req.CostBasisUsd,
		PurchaseDate: req.PurchaseDate,
		Source:       req.Source,
	}

	if err := purchaseRepo.CreateLot(&lot); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al crear el lote"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Lote creado exitosamente",
		"lot":     lot,
	})
}

// GetPurchases devuelve los lotes del usuario en orden FIFO
func GetPurchases(c *gin.Context) {
	userID := c.GetString("userId")

	lots, err := purchaseRepo.GetUserLots(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al obtener los lotes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lots": lots})
}

// UpdatePurchase edita un lote. Un lote agotado se rechaza; uno consumido
// en parte se edita pero la respuesta avisa que altera resultados ya
// calculados.
func UpdatePurchase(c *gin.Context) {
	var req updatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userId")
	lotID := c.Param("id")

	warning, err := purchaseRepo.UpdateLot(userID, lotID, req.AmountBTC, req.CostBasisUsd, req.PurchaseDate)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLotNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Lote no encontrado"})
		case errors.Is(err, repository.ErrLotExhausted):
			c.JSON(http.StatusConflict, gin.H{"error": "El lote está agotado y no puede editarse"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	response := gin.H{"message": "Lote actualizado exitosamente"}
	if warning != "" {
		response["warning"] = warning
	}
	c.JSON(http.StatusOK, response)
}

// DeletePurchase elimina un lote. Si ya tiene consumos hay que forzar con
// ?force=true, porque borrarlo borra costo base ya aplicado.
func DeletePurchase(c *gin.Context) {
	userID := c.GetString("userId")
	lotID := c.Param("id")
	force := c.Query("force") == "true"

	err := purchaseRepo.DeleteLot(userID, lotID, force)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLotNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Lote no encontrado"})
		case errors.Is(err, repository.ErrLotConsumed):
			c.JSON(http.StatusConflict, gin.H{"error": "El lote tiene consumos registrados; use force=true para eliminarlo"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al eliminar el lote"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Lote eliminado exitosamente"})
}
