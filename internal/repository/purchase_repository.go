package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/google/uuid"
)

var (
	ErrLotNotFound = errors.New("lote de compra no encontrado")
	// ErrLotExhausted: un lote agotado es historia contable, no se edita
	ErrLotExhausted = errors.New("el lote está agotado y no puede editarse")
	// ErrLotConsumed: borrar un lote con consumos borraría costo base ya
	// aplicado, requiere forzar explícitamente
	ErrLotConsumed = errors.New("el lote tiene consumos registrados, eliminarlo requiere force")
	// ErrTransactionNotFound para consultas de costo base
	ErrTransactionNotFound = errors.New("transacción no encontrada")
	// ErrNotDisposal: solo los envíos tienen costo base
	ErrNotDisposal = errors.New("la transacción no es un envío: no tiene costo base")
)

// Tolerancia para comparar saldos en BTC representados como float64
const btcEpsilon = 1e-9

// PurchaseRepository maneja los lotes de compra y el consumo FIFO que
// produce el costo base de cada disposición
type PurchaseRepository struct {
	db *sql.DB

	// El consumo de lotes se serializa por billetera: dos disposiciones
	// concurrentes no pueden gastar dos veces el mismo saldo restante
	locksMu     sync.Mutex
	walletLocks map[string]*sync.Mutex
}

func NewPurchaseRepository(db *sql.DB) *PurchaseRepository {
	return &PurchaseRepository{
		db:          db,
		walletLocks: make(map[string]*sync.Mutex),
	}
}

func (r *PurchaseRepository) walletLock(walletID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock, ok := r.walletLocks[walletID]
	if !ok {
		lock = &sync.Mutex{}
		r.walletLocks[walletID] = lock
	}
	return lock
}

func (r *PurchaseRepository) CreateLot(lot *models.PurchaseLot) error {
	if lot.ID == "" {
		lot.ID = uuid.NewString()
	}
	if lot.Source == "" {
		lot.Source = models.LotSourceManual
	}
	if lot.PurchaseDate.IsZero() {
		lot.PurchaseDate = time.Now()
	}
	lot.RemainingBTC = lot.AmountBTC
	lot.CreatedAt = time.Now()

	query := `
		INSERT INTO purchase_lots (
			id, wallet_id, amount_btc, cost_basis_usd, remaining_btc,
			purchase_date, source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		lot.ID,
		lot.WalletID,
		lot.AmountBTC,
		lot.CostBasisUsd,
		lot.RemainingBTC,
		lot.PurchaseDate,
		lot.Source,
		lot.CreatedAt,
	)
	return err
}

func (r *PurchaseRepository) GetLot(userID, lotID string) (*models.PurchaseLot, error) {
	query := `
		SELECT l.id, l.wallet_id, l.amount_btc, l.cost_basis_usd,
		       l.remaining_btc, l.purchase_date, l.source, l.created_at
		FROM purchase_lots l
		JOIN wallets w ON w.id = l.wallet_id
		WHERE w.user_id = ? AND l.id = ?`

	var lot models.PurchaseLot
	err := r.db.QueryRow(query, userID, lotID).Scan(
		&lot.ID,
		&lot.WalletID,
		&lot.AmountBTC,
		&lot.CostBasisUsd,
		&lot.RemainingBTC,
		&lot.PurchaseDate,
		&lot.Source,
		&lot.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrLotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *PurchaseRepository) GetUserLots(userID string) ([]models.PurchaseLot, error) {
	query := `
		SELECT l.id, l.wallet_id, l.amount_btc, l.cost_basis_usd,
		       l.remaining_btc, l.purchase_date, l.source, l.created_at
		FROM purchase_lots l
		JOIN wallets w ON w.id = l.wallet_id
		WHERE w.user_id = ?
		ORDER BY l.purchase_date ASC, l.created_at ASC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []models.PurchaseLot
	for rows.Next() {
		var lot models.PurchaseLot
		err := rows.Scan(
			&lot.ID,
			&lot.WalletID,
			&lot.AmountBTC,
			&lot.CostBasisUsd,
			&lot.RemainingBTC,
			&lot.PurchaseDate,
			&lot.Source,
			&lot.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// UpdateLot edita un lote. Un lote agotado no se puede editar. Si el lote
// tiene consumos parciales la edición se permite pero devuelve una
// advertencia: los resultados de costo base ya calculados con él cambian.
func (r *PurchaseRepository) UpdateLot(userID, lotID string, amountBTC, costBasisUsd *float64, purchaseDate *time.Time) (string, error) {
	lot, err := r.GetLot(userID, lotID)
	if err != nil {
		return "", err
	}

	// La edición reescribe remaining_btc, así que compite con el consumo
	// FIFO por el mismo saldo: se serializa con el mismo candado por
	// billetera y el saldo se relee adentro, nunca con el valor previo
	lock := r.walletLock(lot.WalletID)
	lock.Lock()
	defer lock.Unlock()

	dbTx, err := r.db.Begin()
	if err != nil {
		return "", err
	}
	defer dbTx.Rollback()

	var amount, remaining float64
	err = dbTx.QueryRow(
		`SELECT amount_btc, remaining_btc FROM purchase_lots WHERE id = ?`, lotID,
	).Scan(&amount, &remaining)
	if err == sql.ErrNoRows {
		return "", ErrLotNotFound
	}
	if err != nil {
		return "", err
	}

	if remaining <= btcEpsilon {
		return "", ErrLotExhausted
	}

	consumed := amount - remaining

	newAmount := amount
	if amountBTC != nil {
		newAmount = *amountBTC
	}
	if newAmount < consumed-btcEpsilon {
		return "", fmt.Errorf("el nuevo monto %.8f es menor que lo ya consumido %.8f", newAmount, consumed)
	}

	newCostBasis := lot.CostBasisUsd
	if costBasisUsd != nil {
		newCostBasis = *costBasisUsd
	}
	newDate := lot.PurchaseDate
	if purchaseDate != nil {
		newDate = *purchaseDate
	}

	// El saldo restante se reajusta preservando lo consumido
	newRemaining := newAmount - consumed

	query := `
		UPDATE purchase_lots
		SET amount_btc = ?, cost_basis_usd = ?, remaining_btc = ?, purchase_date = ?
		WHERE id = ?`

	if _, err := dbTx.Exec(query, newAmount, newCostBasis, newRemaining, newDate, lotID); err != nil {
		return "", err
	}
	if err := dbTx.Commit(); err != nil {
		return "", err
	}

	warning := ""
	if consumed > btcEpsilon {
		warning = "el lote ya tiene consumos registrados: editarlo altera resultados de costo base ya calculados"
	}
	return warning, nil
}

// DeleteLot elimina un lote. Si el lote ya fue consumido en parte, borrarlo
// haría desaparecer costo base ya aplicado, así que exige force.
func (r *PurchaseRepository) DeleteLot(userID, lotID string, force bool) error {
	lot, err := r.GetLot(userID, lotID)
	if err != nil {
		return err
	}

	// Mismo candado que el consumo FIFO: el estado del lote se relee bajo
	// el candado para no decidir con un saldo viejo
	lock := r.walletLock(lot.WalletID)
	lock.Lock()
	defer lock.Unlock()

	var amount, remaining float64
	err = r.db.QueryRow(
		`SELECT amount_btc, remaining_btc FROM purchase_lots WHERE id = ?`, lotID,
	).Scan(&amount, &remaining)
	if err == sql.ErrNoRows {
		return ErrLotNotFound
	}
	if err != nil {
		return err
	}

	if remaining < amount-btcEpsilon && !force {
		return ErrLotConsumed
	}

	_, err = r.db.Exec(`DELETE FROM purchase_lots WHERE id = ?`, lotID)
	return err
}

// ComputeCostBasis calcula la ganancia o pérdida realizada de una
// transacción de envío consumiendo los lotes en orden FIFO estricto. Si la
// transacción ya tiene consumos registrados el resultado se reconstruye del
// diario en lugar de consumir de nuevo.
func (r *PurchaseRepository) ComputeCostBasis(userID, transactionID string) (*models.CostBasisResult, error) {
	tx, err := r.getOwnedTransaction(userID, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Type != models.TransactionTypeSent {
		return nil, fmt.Errorf("%w: %s", ErrNotDisposal, transactionID)
	}

	lock := r.walletLock(tx.WalletID)
	lock.Lock()
	defer lock.Unlock()

	// Un cálculo previo dejó su rastro en el diario: el resultado es
	// derivado y se reconstruye de ahí
	if result, ok, err := r.resultFromJournal(tx); err != nil {
		return nil, err
	} else if ok {
		return result, nil
	}

	return r.consumeLots(tx)
}

type ownedTransaction struct {
	ID           string
	WalletID     string
	Type         string
	AmountBTC    float64
	SaleValueUsd float64
}

func (r *PurchaseRepository) getOwnedTransaction(userID, transactionID string) (*ownedTransaction, error) {
	query := `
		SELECT t.id, t.wallet_id, t.type, t.amount_btc, t.usd_value
		FROM wallet_transactions t
		JOIN wallets w ON w.id = t.wallet_id
		WHERE w.user_id = ? AND t.id = ?`

	var tx ownedTransaction
	err := r.db.QueryRow(query, userID, transactionID).Scan(
		&tx.ID,
		&tx.WalletID,
		&tx.Type,
		&tx.AmountBTC,
		&tx.SaleValueUsd,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// resultFromJournal reconstruye el resultado desde lot_consumptions
func (r *PurchaseRepository) resultFromJournal(tx *ownedTransaction) (*models.CostBasisResult, bool, error) {
	var count int
	var consumedBTC, costBasisUsd float64
	err := r.db.QueryRow(`
		SELECT COUNT(1), COALESCE(SUM(amount_btc), 0), COALESCE(SUM(cost_basis_usd), 0)
		FROM lot_consumptions
		WHERE transaction_id = ?`, tx.ID,
	).Scan(&count, &consumedBTC, &costBasisUsd)
	if err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, false, nil
	}

	return &models.CostBasisResult{
		TransactionID: tx.ID,
		Type:          tx.Type,
		AmountBTC:     tx.AmountBTC,
		SaleValueUsd:  tx.SaleValueUsd,
		CostBasisUsd:  costBasisUsd,
		GainLossUsd:   tx.SaleValueUsd - costBasisUsd,
		LotsExhausted: consumedBTC < tx.AmountBTC-btcEpsilon,
	}, true, nil
}

// consumeLots aplica el FIFO estricto: lotes con saldo ordenados por fecha
// de compra (empates por orden de creación), consumiendo cada uno hasta
// cubrir el monto vendido. Todo ocurre dentro de una transacción SQL con un
// decremento condicional, para que un saldo nunca quede negativo.
func (r *PurchaseRepository) consumeLots(tx *ownedTransaction) (*models.CostBasisResult, error) {
	dbTx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	rows, err := dbTx.Query(`
		SELECT id, amount_btc, cost_basis_usd, remaining_btc
		FROM purchase_lots
		WHERE wallet_id = ? AND remaining_btc > ?
		ORDER BY purchase_date ASC, created_at ASC`,
		tx.WalletID, btcEpsilon,
	)
	if err != nil {
		return nil, err
	}

	type lotRow struct {
		id           string
		amountBTC    float64
		costBasisUsd float64
		remainingBTC float64
	}
	var lots []lotRow
	for rows.Next() {
		var lot lotRow
		if err := rows.Scan(&lot.id, &lot.amountBTC, &lot.costBasisUsd, &lot.remainingBTC); err != nil {
			rows.Close()
			return nil, err
		}
		lots = append(lots, lot)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	need := tx.AmountBTC
	costBasisUsd := 0.0

	for _, lot := range lots {
		if need <= btcEpsilon {
			break
		}

		consumed := lot.remainingBTC
		if need < consumed {
			consumed = need
		}
		pricePerBTC := lot.costBasisUsd / lot.amountBTC
		lotCost := consumed * pricePerBTC

		// Decremento condicional: si otra disposición ganó la carrera el
		// saldo ya no alcanza y el cálculo se aborta
		res, err := dbTx.Exec(`
			UPDATE purchase_lots
			SET remaining_btc = remaining_btc - ?
			WHERE id = ? AND remaining_btc >= ?`,
			consumed, lot.id, consumed-btcEpsilon,
		)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected != 1 {
			return nil, fmt.Errorf("conflicto de concurrencia consumiendo el lote %s", lot.id)
		}

		_, err = dbTx.Exec(`
			INSERT INTO lot_consumptions (id, lot_id, transaction_id, amount_btc, cost_basis_usd)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), lot.id, tx.ID, consumed, lotCost,
		)
		if err != nil {
			return nil, err
		}

		costBasisUsd += lotCost
		need -= consumed
	}

	lotsExhausted := need > btcEpsilon
	if lotsExhausted {
		// El inventario no cubre la venta: el remanente queda con costo
		// base cero y el resultado lo deja a la vista, nunca en silencio
		log.Printf("Inventario de lotes agotado para la transacción %s: %.8f BTC sin cobertura", tx.ID, need)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	return &models.CostBasisResult{
		TransactionID: tx.ID,
		Type:          tx.Type,
		AmountBTC:     tx.AmountBTC,
		SaleValueUsd:  tx.SaleValueUsd,
		CostBasisUsd:  costBasisUsd,
		GainLossUsd:   tx.SaleValueUsd - costBasisUsd,
		LotsExhausted: lotsExhausted,
	}, nil
}
