package database

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

func InitDB() error {
	// Crear el directorio database si no existe
	if err := os.MkdirAll("database", 0755); err != nil {
		return err
	}

	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = filepath.Join("database", "ledger.db")
	}

	// El pragma de claves foráneas viene apagado por defecto en el driver:
	// sin él los ON DELETE CASCADE del esquema no hacen nada
	var err error
	DB, err = sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return err
	}

	if err := CreateTables(DB); err != nil {
		return err
	}

	// Ejecutar migraciones para actualizar el esquema
	return RunMigrations()
}

// CreateTables crea el esquema si no existe. Se expone para que los tests
// puedan inicializar una base en memoria.
func CreateTables(db *sql.DB) error {
	// Tabla de billeteras
	createWalletsTableSQL := `
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		key_or_address TEXT NOT NULL,
		network TEXT NOT NULL DEFAULT 'mainnet',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_synced_at DATETIME
	);`

	if _, err := db.Exec(createWalletsTableSQL); err != nil {
		return err
	}

	// Tabla de transacciones valuadas de cada billetera. La restricción
	// UNIQUE(wallet_id, txid) permite deduplicar los re-escaneos.
	createTransactionsTableSQL := `
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL,
		txid TEXT NOT NULL,
		type TEXT NOT NULL,
		amount_btc REAL NOT NULL,
		fee_btc REAL NOT NULL DEFAULT 0,
		usd_value REAL NOT NULL DEFAULT 0,
		fee_usd REAL NOT NULL DEFAULT 0,
		exchange_rate REAL NOT NULL DEFAULT 0,
		confirmed INTEGER NOT NULL DEFAULT 1,
		block_height INTEGER,
		date DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(wallet_id, txid),
		FOREIGN KEY(wallet_id) REFERENCES wallets(id) ON DELETE CASCADE
	);`

	if _, err := db.Exec(createTransactionsTableSQL); err != nil {
		return err
	}

	// Tabla de lotes de compra para el costo base FIFO
	createLotsTableSQL := `
	CREATE TABLE IF NOT EXISTS purchase_lots (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL,
		amount_btc REAL NOT NULL,
		cost_basis_usd REAL NOT NULL,
		remaining_btc REAL NOT NULL,
		purchase_date DATETIME NOT NULL,
		source TEXT DEFAULT 'manual',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(wallet_id) REFERENCES wallets(id) ON DELETE CASCADE
	);`

	if _, err := db.Exec(createLotsTableSQL); err != nil {
		return err
	}

	// Diario de consumos de lotes
	createConsumptionsTableSQL := `
	CREATE TABLE IF NOT EXISTS lot_consumptions (
		id TEXT PRIMARY KEY,
		lot_id TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		amount_btc REAL NOT NULL,
		cost_basis_usd REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(lot_id) REFERENCES purchase_lots(id) ON DELETE CASCADE
	);`

	if _, err := db.Exec(createConsumptionsTableSQL); err != nil {
		return err
	}

	// Caché persistente de cotizaciones históricas BTC/USD por fecha
	createRatesTableSQL := `
	CREATE TABLE IF NOT EXISTS exchange_rates (
		date TEXT PRIMARY KEY,
		rate REAL NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(createRatesTableSQL); err != nil {
		return err
	}

	// Índice para las consultas por billetera y rango de fechas
	createTxIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet_date
	ON wallet_transactions(wallet_id, date);`

	if _, err := db.Exec(createTxIndexSQL); err != nil {
		return err
	}

	// Índice para el orden FIFO de los lotes
	createLotsIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_purchase_lots_wallet_date
	ON purchase_lots(wallet_id, purchase_date);`

	_, err := db.Exec(createLotsIndexSQL)
	return err
}
