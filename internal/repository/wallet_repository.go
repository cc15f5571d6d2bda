package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/google/uuid"
)

var ErrWalletNotFound = errors.New("billetera no encontrada")

// WalletRepository maneja las operaciones sobre las billeteras registradas
type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) CreateWallet(wallet *models.Wallet) error {
	if wallet.ID == "" {
		wallet.ID = uuid.NewString()
	}
	if wallet.Network == "" {
		wallet.Network = models.NetworkMainnet
	}
	wallet.CreatedAt = time.Now()

	query := `
		INSERT INTO wallets (id, user_id, name, key_or_address, network, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		wallet.ID,
		wallet.UserID,
		wallet.Name,
		wallet.KeyOrAddress,
		wallet.Network,
		wallet.CreatedAt,
	)
	return err
}

func (r *WalletRepository) GetWallet(userID, walletID string) (*models.Wallet, error) {
	query := `
		SELECT id, user_id, name, key_or_address, network, created_at, last_synced_at
		FROM wallets
		WHERE user_id = ? AND id = ?`

	var wallet models.Wallet
	var lastSynced sql.NullTime
	err := r.db.QueryRow(query, userID, walletID).Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.Name,
		&wallet.KeyOrAddress,
		&wallet.Network,
		&wallet.CreatedAt,
		&lastSynced,
	)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		wallet.LastSyncedAt = &lastSynced.Time
	}
	return &wallet, nil
}

func (r *WalletRepository) GetUserWallets(userID string) ([]models.Wallet, error) {
	query := `
		SELECT id, user_id, name, key_or_address, network, created_at, last_synced_at
		FROM wallets
		WHERE user_id = ?
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var wallet models.Wallet
		var lastSynced sql.NullTime
		err := rows.Scan(
			&wallet.ID,
			&wallet.UserID,
			&wallet.Name,
			&wallet.KeyOrAddress,
			&wallet.Network,
			&wallet.CreatedAt,
			&lastSynced,
		)
		if err != nil {
			return nil, err
		}
		if lastSynced.Valid {
			wallet.LastSyncedAt = &lastSynced.Time
		}
		wallets = append(wallets, wallet)
	}
	return wallets, rows.Err()
}

// UpdateLastSynced marca la billetera como sincronizada
func (r *WalletRepository) UpdateLastSynced(walletID string, syncedAt time.Time) error {
	_, err := r.db.Exec(`UPDATE wallets SET last_synced_at = ? WHERE id = ?`, syncedAt, walletID)
	return err
}
