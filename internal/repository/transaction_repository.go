package repository

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/google/uuid"
)

// TransactionRepository maneja la persistencia de las transacciones
// valuadas de cada billetera
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// SaveWalletTransactions persiste el resultado de un escaneo. Las
// transacciones ya presentes se saltean en silencio y se cuentan en
// Skipped: un duplicado no es un error. Cada transacción recibida genera
// además su lote de compra automático la primera vez que se guarda.
func (r *TransactionRepository) SaveWalletTransactions(walletID string, txs []models.ValuedTransaction) (*models.ScanStats, error) {
	stats := &models.ScanStats{}

	for _, tx := range txs {
		// INSERT OR IGNORE apoyado en UNIQUE(wallet_id, txid): el duplicado
		// se decide en la misma sentencia, así dos re-escaneos concurrentes
		// de la billetera no chocan entre el chequeo y la inserción
		query := `
			INSERT OR IGNORE INTO wallet_transactions (
				id, wallet_id, txid, type, amount_btc, fee_btc,
				usd_value, fee_usd, exchange_rate, confirmed, block_height, date
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		res, err := r.db.Exec(query,
			uuid.NewString(),
			walletID,
			tx.TxID,
			tx.Type,
			tx.AmountBTC,
			tx.FeeBTC,
			tx.UsdValue,
			tx.FeeUsd,
			tx.ExchangeRate,
			tx.Confirmed,
			tx.BlockHeight,
			tx.Date,
		)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			stats.Skipped++
			continue
		}
		stats.Added++

		// Una recepción nueva alimenta el inventario FIFO con un lote
		// derivado de la propia transacción
		if tx.Type == models.TransactionTypeReceived && tx.AmountBTC > 0 {
			if err := r.createLotFromReceived(walletID, tx); err != nil {
				log.Printf("No se pudo crear el lote automático para %s: %v", tx.TxID, err)
			}
		}
	}

	return stats, nil
}

// createLotFromReceived deriva un lote de compra de una transacción
// recibida: el monto es el de la transacción y el costo base su valor USD
// a la fecha
func (r *TransactionRepository) createLotFromReceived(walletID string, tx models.ValuedTransaction) error {
	query := `
		INSERT INTO purchase_lots (
			id, wallet_id, amount_btc, cost_basis_usd, remaining_btc, purchase_date, source
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		uuid.NewString(),
		walletID,
		tx.AmountBTC,
		tx.UsdValue,
		tx.AmountBTC,
		tx.Date,
		models.LotSourceChainReceived,
	)
	return err
}

func (r *TransactionRepository) GetWalletTransactions(walletID string) ([]models.WalletTransaction, error) {
	query := `
		SELECT id, wallet_id, txid, type, amount_btc, fee_btc, usd_value,
		       fee_usd, exchange_rate, confirmed, block_height, date, created_at
		FROM wallet_transactions
		WHERE wallet_id = ?
		ORDER BY date DESC`

	rows, err := r.db.Query(query, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactionRows(rows)
}

// GetTransactionsByIDs devuelve las transacciones pedidas que pertenezcan a
// billeteras del usuario
func (r *TransactionRepository) GetTransactionsByIDs(userID string, ids []string) ([]models.WalletTransaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		SELECT t.id, t.wallet_id, t.txid, t.type, t.amount_btc, t.fee_btc,
		       t.usd_value, t.fee_usd, t.exchange_rate, t.confirmed,
		       t.block_height, t.date, t.created_at
		FROM wallet_transactions t
		JOIN wallets w ON w.id = t.wallet_id
		WHERE w.user_id = ? AND t.id IN (%s)
		ORDER BY t.date ASC`, placeholders)

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactionRows(rows)
}

// GetTransactionsInRange devuelve las transacciones del usuario dentro del
// rango de fechas, para la exportación
func (r *TransactionRepository) GetTransactionsInRange(userID string, from, to time.Time) ([]models.WalletTransaction, error) {
	query := `
		SELECT t.id, t.wallet_id, t.txid, t.type, t.amount_btc, t.fee_btc,
		       t.usd_value, t.fee_usd, t.exchange_rate, t.confirmed,
		       t.block_height, t.date, t.created_at
		FROM wallet_transactions t
		JOIN wallets w ON w.id = t.wallet_id
		WHERE w.user_id = ? AND t.date >= ? AND t.date <= ?
		ORDER BY t.date ASC`

	rows, err := r.db.Query(query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactionRows(rows)
}

func scanTransactionRows(rows *sql.Rows) ([]models.WalletTransaction, error) {
	var txs []models.WalletTransaction
	for rows.Next() {
		var tx models.WalletTransaction
		var blockHeight sql.NullInt64
		err := rows.Scan(
			&tx.ID,
			&tx.WalletID,
			&tx.TxID,
			&tx.Type,
			&tx.AmountBTC,
			&tx.FeeBTC,
			&tx.UsdValue,
			&tx.FeeUsd,
			&tx.ExchangeRate,
			&tx.Confirmed,
			&blockHeight,
			&tx.Date,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if blockHeight.Valid {
			tx.BlockHeight = blockHeight.Int64
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
