package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/database"
	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	// Una sola conexión: cada conexión del pool abriría su propia base en
	// memoria vacía
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateTables(db))
	return db
}

func seedWallet(t *testing.T, db *sql.DB, userID string) *models.Wallet {
	t.Helper()
	wallet := &models.Wallet{
		UserID:       userID,
		Name:         "billetera de prueba",
		KeyOrAddress: "zpub6rFR7y4Q2AijBEqTUquhVz398htDFrtymD9xYYfG1m4wAcvPhXNfE3EfH1r1ADqtfSdVCToUG868RvUUkgDKf31mGDtKsAYz2oz2AGutZYs",
		Network:      models.NetworkMainnet,
	}
	require.NoError(t, NewWalletRepository(db).CreateWallet(wallet))
	return wallet
}

// seedSentTransaction inserta directamente una transacción de envío valuada
// y devuelve su id
func seedSentTransaction(t *testing.T, db *sql.DB, walletID string, amountBTC, saleValueUsd float64, date time.Time) string {
	t.Helper()
	return seedTransaction(t, db, walletID, models.TransactionTypeSent, amountBTC, saleValueUsd, date)
}

func seedTransaction(t *testing.T, db *sql.DB, walletID, txType string, amountBTC, usdValue float64, date time.Time) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO wallet_transactions (
			id, wallet_id, txid, type, amount_btc, fee_btc,
			usd_value, fee_usd, exchange_rate, confirmed, block_height, date
		) VALUES (?, ?, ?, ?, ?, 0.0001, ?, 4.2, 42000, 1, 800000, ?)`,
		id, walletID, "txid-"+id, txType, amountBTC, usdValue, date,
	)
	require.NoError(t, err)
	return id
}

func seedLot(t *testing.T, db *sql.DB, walletID string, amountBTC, costBasisUsd float64, purchaseDate time.Time) *models.PurchaseLot {
	t.Helper()
	lot := &models.PurchaseLot{
		WalletID:     walletID,
		AmountBTC:    amountBTC,
		CostBasisUsd: costBasisUsd,
		PurchaseDate: purchaseDate,
	}
	require.NoError(t, NewPurchaseRepository(db).CreateLot(lot))
	return lot
}
