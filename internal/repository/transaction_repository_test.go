package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/stretchr/testify/require"
)

func valuedTx(txid, txType string, amountBTC float64, date time.Time) models.ValuedTransaction {
	return models.ValuedTransaction{
		ParsedTransaction: models.ParsedTransaction{
			TxID:        txid,
			Type:        txType,
			AmountBTC:   amountBTC,
			FeeBTC:      0.0001,
			Date:        date,
			Confirmed:   true,
			BlockHeight: 800000,
		},
		UsdValue:     amountBTC * 42_000,
		FeeUsd:       4.2,
		ExchangeRate: 42_000,
	}
}

func TestSaveWalletTransactionsCountsAddedAndSkipped(t *testing.T) {
	db := newTestDB(t)
	wallet := seedWallet(t, db, "usuario-1")
	repo := NewTransactionRepository(db)

	first := []models.ValuedTransaction{
		valuedTx("tx-1", models.TransactionTypeSent, 0.1, enero),
		valuedTx("tx-2", models.TransactionTypeSelf, 0, febrero),
	}
	stats, err := repo.SaveWalletTransactions(wallet.ID, first)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Added)
	require.Equal(t, 0, stats.Skipped)

	// Un re-escaneo trae las mismas transacciones más una nueva: las
	// repetidas se saltean sin error
	second := append(first, valuedTx("tx-3", models.TransactionTypeSent, 0.2, marzo))
	stats, err = repo.SaveWalletTransactions(wallet.ID, second)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Added)
	require.Equal(t, 2, stats.Skipped)

	txs, err := repo.GetWalletTransactions(wallet.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
}

func TestSaveWalletTransactionsCreatesLotFromReceived(t *testing.T) {
	// Una recepción nueva genera su lote automático con el valor USD como
	// costo base; un re-escaneo no lo duplica
	db := newTestDB(t)
	wallet := seedWallet(t, db, "usuario-1")
	repo := NewTransactionRepository(db)
	lots := NewPurchaseRepository(db)

	received := []models.ValuedTransaction{
		valuedTx("tx-recibida", models.TransactionTypeReceived, 0.5, enero),
	}
	_, err := repo.SaveWalletTransactions(wallet.ID, received)
	require.NoError(t, err)

	userLots, err := lots.GetUserLots("usuario-1")
	require.NoError(t, err)
	require.Len(t, userLots, 1)
	require.Equal(t, models.LotSourceChainReceived, userLots[0].Source)
	require.InDelta(t, 0.5, userLots[0].AmountBTC, 1e-9)
	require.InDelta(t, 0.5, userLots[0].RemainingBTC, 1e-9)
	require.InDelta(t, 21_000, userLots[0].CostBasisUsd, 1e-6)

	_, err = repo.SaveWalletTransactions(wallet.ID, received)
	require.NoError(t, err)

	userLots, err = lots.GetUserLots("usuario-1")
	require.NoError(t, err)
	require.Len(t, userLots, 1)
}

func TestSaveWalletTransactionsConcurrentRescans(t *testing.T) {
	// Dos re-escaneos simultáneos de la misma billetera no chocan contra la
	// restricción UNIQUE: entre ambos la transacción entra una sola vez y
	// el duplicado cuenta como salteado
	db := newTestDB(t)
	wallet := seedWallet(t, db, "usuario-1")
	repo := NewTransactionRepository(db)

	batch := []models.ValuedTransaction{
		valuedTx("tx-carrera", models.TransactionTypeReceived, 0.5, enero),
	}

	type outcome struct {
		stats *models.ScanStats
		err   error
	}
	outcomes := make(chan outcome, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			stats, err := repo.SaveWalletTransactions(wallet.ID, batch)
			outcomes <- outcome{stats: stats, err: err}
		}()
	}
	wg.Wait()
	close(outcomes)

	added, skipped := 0, 0
	for result := range outcomes {
		require.NoError(t, result.err)
		added += result.stats.Added
		skipped += result.stats.Skipped
	}
	require.Equal(t, 1, added)
	require.Equal(t, 1, skipped)

	txs, err := repo.GetWalletTransactions(wallet.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	// Y el lote automático de la recepción también entra una sola vez
	lots, err := NewPurchaseRepository(db).GetUserLots("usuario-1")
	require.NoError(t, err)
	require.Len(t, lots, 1)
}

func TestSaveWalletTransactionsNoLotForSent(t *testing.T) {
	db := newTestDB(t)
	wallet := seedWallet(t, db, "usuario-1")
	repo := NewTransactionRepository(db)

	_, err := repo.SaveWalletTransactions(wallet.ID, []models.ValuedTransaction{
		valuedTx("tx-enviada", models.TransactionTypeSent, 0.3, enero),
	})
	require.NoError(t, err)

	lots, err := NewPurchaseRepository(db).GetUserLots("usuario-1")
	require.NoError(t, err)
	require.Empty(t, lots)
}

func TestGetTransactionsByIDsOwnership(t *testing.T) {
	db := newTestDB(t)
	mine := seedWallet(t, db, "usuario-1")
	other := seedWallet(t, db, "usuario-2")
	repo := NewTransactionRepository(db)

	mineID := seedSentTransaction(t, db, mine.ID, 0.1, 4_200, enero)
	otherID := seedSentTransaction(t, db, other.ID, 0.2, 8_400, febrero)

	txs, err := repo.GetTransactionsByIDs("usuario-1", []string{mineID, otherID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, mineID, txs[0].ID)
}

func TestGetTransactionsInRange(t *testing.T) {
	db := newTestDB(t)
	wallet := seedWallet(t, db, "usuario-1")
	repo := NewTransactionRepository(db)

	seedSentTransaction(t, db, wallet.ID, 0.1, 4_200, enero)
	inRange := seedSentTransaction(t, db, wallet.ID, 0.2, 8_400, febrero)
	seedSentTransaction(t, db, wallet.ID, 0.3, 12_600, marzo)

	txs, err := repo.GetTransactionsInRange("usuario-1",
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 28, 23, 59, 59, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, inRange, txs[0].ID)
}

func TestWalletRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)

	wallet := seedWallet(t, db, "usuario-1")

	loaded, err := repo.GetWallet("usuario-1", wallet.ID)
	require.NoError(t, err)
	require.Equal(t, wallet.KeyOrAddress, loaded.KeyOrAddress)
	require.Nil(t, loaded.LastSyncedAt)

	_, err = repo.GetWallet("usuario-ajeno", wallet.ID)
	require.ErrorIs(t, err, ErrWalletNotFound)

	syncedAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastSynced(wallet.ID, syncedAt))

	loaded, err = repo.GetWallet("usuario-1", wallet.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastSyncedAt)
}
