package middleware

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/repository"
	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/services"
	"github.com/gin-gonic/gin"
)

var (
	walletRepo   *repository.WalletRepository
	txRepo       *repository.TransactionRepository
	purchaseRepo *repository.PurchaseRepository
	rateService  *services.ExchangeRateService
	scanner      *services.WalletScanner
)

// InitHandlers inicializa los repositorios y servicios que usan los handlers
func InitHandlers(db *sql.DB, rates *services.ExchangeRateService) {
	walletRepo = repository.NewWalletRepository(db)
	txRepo = repository.NewTransactionRepository(db)
	purchaseRepo = repository.NewPurchaseRepository(db)
	rateService = rates

	events := services.LogScanEvents{}
	client := services.NewEsploraClient(events)
	scanner = services.NewWalletScanner(client, services.DefaultScanConfig(), events)
}

// CreateWallet registra una billetera: una dirección individual o una clave
// pública extendida
func CreateWallet(c *gin.Context) {
	var wallet models.Wallet
	if err := c.ShouldBindJSON(&wallet); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wallet.UserID = c.GetString("userId")
	if wallet.Network != "" && wallet.Network != models.NetworkMainnet && wallet.Network != models.NetworkTestnet {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Red no soportada"})
		return
	}

	// Si es una clave extendida, validar el formato antes de guardar
	if services.IsExtendedKey(wallet.KeyOrAddress) {
		if _, err := services.DeriveAddresses(wallet.KeyOrAddress, 1, 0, services.ExternalChain); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Clave extendida inválida"})
			return
		}
	}

	if err := walletRepo.CreateWallet(&wallet); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al registrar la billetera"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Billetera registrada exitosamente",
		"wallet":  wallet,
	})
}

// GetUserWallets devuelve las billeteras del usuario
func GetUserWallets(c *gin.Context) {
	userID := c.GetString("userId")

	wallets, err := walletRepo.GetUserWallets(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al obtener las billeteras"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

type scanOutcome struct {
	stats *models.ScanStats
	err   error
}

// FetchWalletTransactions dispara el escaneo de la billetera: deriva hasta
// el límite de gap, clasifica, valúa y persiste. El escaneo corre desligado
// del request: si el cliente se desconecta, sigue hasta el final y el
// resultado queda persistido igual.
func FetchWalletTransactions(c *gin.Context) {
	userID := c.GetString("userId")
	walletID := c.Param("id")

	wallet, err := walletRepo.GetWallet(userID, walletID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Billetera no encontrada"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al obtener la billetera"})
		return
	}

	outcomeChan := make(chan scanOutcome, 1)
	go func() {
		stats, err := runWalletScan(wallet)
		outcomeChan <- scanOutcome{stats: stats, err: err}
	}()

	outcome := <-outcomeChan
	if outcome.err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(outcome.err, services.ErrInvalidKeyFormat):
			status = http.StatusBadRequest
		case errors.Is(outcome.err, services.ErrExchangeRateUnavailable):
			status = http.StatusBadGateway
		case errors.Is(outcome.err, services.ErrRateLimited),
			errors.Is(outcome.err, services.ErrServiceUnavailable),
			errors.Is(outcome.err, services.ErrRequestTimedOut):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": outcome.err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": outcome.stats})
}

// runWalletScan ejecuta el pipeline completo: escanear, clasificar, valuar
// y persistir. Falla como unidad: nada queda a medio valuar.
func runWalletScan(wallet *models.Wallet) (*models.ScanStats, error) {
	rawTxs, addressSet, err := scanner.ScanWallet(wallet.KeyOrAddress, wallet.Network)
	if err != nil {
		return nil, err
	}

	parsed := make([]models.ParsedTransaction, 0, len(rawTxs))
	for _, raw := range rawTxs {
		tx, err := services.ClassifyTransaction(raw, addressSet)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, tx)
	}

	valued, err := rateService.AttachUsdValues(parsed)
	if err != nil {
		return nil, err
	}

	stats, err := txRepo.SaveWalletTransactions(wallet.ID, valued)
	if err != nil {
		return nil, err
	}

	if err := walletRepo.UpdateLastSynced(wallet.ID, time.Now()); err != nil {
		log.Printf("No se pudo actualizar last_synced_at de %s: %v", wallet.ID, err)
	}

	log.Printf("Escaneo de %s completado: %d agregadas, %d ya existentes",
		wallet.ID, stats.Added, stats.Skipped)
	return stats, nil
}
