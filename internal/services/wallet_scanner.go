package services

import (
	"sort"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
)

// ScanConfig son los parámetros del escaneo con límite de gap
type ScanConfig struct {
	GapLimit    int
	BatchSize   int
	HardCap     int
	Concurrency int
	BatchDelay  time.Duration
}

// DefaultScanConfig devuelve los valores estándar: gap de 20 direcciones,
// lotes de 10, tope duro de 200 por rama y 3 consultas simultáneas
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		GapLimit:    20,
		BatchSize:   10,
		HardCap:     200,
		Concurrency: 3,
		BatchDelay:  500 * time.Millisecond,
	}
}

// BlockchainFetcher es lo que el escáner necesita del cliente del indexador
type BlockchainFetcher interface {
	FetchAddressTransactions(address, network string) ([]models.RawTransaction, error)
	FetchAddressBatch(addresses []string, network string, concurrency int) map[string][]models.RawTransaction
}

// WalletScanner recorre las dos ramas de derivación de una clave extendida
// hasta el límite de gap, juntando las transacciones crudas deduplicadas y
// el conjunto completo de direcciones de la billetera
type WalletScanner struct {
	client BlockchainFetcher
	config ScanConfig
	events ScanEvents
}

func NewWalletScanner(client BlockchainFetcher, config ScanConfig, events ScanEvents) *WalletScanner {
	if events == nil {
		events = LogScanEvents{}
	}
	return &WalletScanner{
		client: client,
		config: config,
		events: events,
	}
}

// Estado propio de cada invocación: el mapa de deduplicación y el conjunto
// de direcciones viven y mueren con el escaneo, nada se comparte entre
// escaneos concurrentes
type scanState struct {
	txByID     map[string]models.RawTransaction
	addressSet map[string]bool
}

// ScanWallet escanea una dirección individual o una clave extendida y
// devuelve las transacciones crudas deduplicadas por txid junto con el
// conjunto de direcciones derivadas. El clasificador necesita el conjunto
// completo de ambas ramas: el cambio de una transacción puede caer en la
// rama interna aunque la transacción se haya descubierto por la externa.
func (s *WalletScanner) ScanWallet(keyOrAddress, network string) ([]models.RawTransaction, map[string]bool, error) {
	s.events.ScanStarted(keyOrAddress, network)

	state := &scanState{
		txByID:     make(map[string]models.RawTransaction),
		addressSet: make(map[string]bool),
	}

	if !IsExtendedKey(keyOrAddress) {
		// Dirección individual: el escaneo degenera en una sola consulta
		txs, err := s.client.FetchAddressTransactions(keyOrAddress, network)
		if err != nil {
			return nil, nil, err
		}
		state.addressSet[keyOrAddress] = true
		for _, tx := range txs {
			state.txByID[tx.TxID] = tx
		}
	} else {
		for _, chain := range []AddressChain{ExternalChain, InternalChain} {
			if err := s.scanChain(keyOrAddress, network, chain, state); err != nil {
				return nil, nil, err
			}
		}
	}

	txs := make([]models.RawTransaction, 0, len(state.txByID))
	for _, tx := range state.txByID {
		txs = append(txs, tx)
	}
	// Orden cronológico estable para el resto del pipeline
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Status.BlockTime != txs[j].Status.BlockTime {
			return txs[i].Status.BlockTime < txs[j].Status.BlockTime
		}
		return txs[i].TxID < txs[j].TxID
	})

	s.events.ScanFinished(len(txs), len(state.addressSet))
	return txs, state.addressSet, nil
}

// scanChain recorre una rama derivando en lotes de tamaño fijo hasta juntar
// GapLimit direcciones vacías consecutivas o llegar al tope duro. El tope
// es una válvula de seguridad: se registra como advertencia, no es un error.
func (s *WalletScanner) scanChain(key, network string, chain AddressChain, state *scanState) error {
	startIndex := uint32(0)
	consecutiveEmpty := 0

	for {
		if int(startIndex) >= s.config.HardCap {
			s.events.HardCapReached(chain, s.config.HardCap)
			return nil
		}

		batch, err := DeriveAddresses(key, uint32(s.config.BatchSize), startIndex, chain)
		if err != nil {
			return err
		}

		addresses := make([]string, len(batch))
		for i, derived := range batch {
			addresses[i] = derived.Address
			state.addressSet[derived.Address] = true
		}

		results := s.client.FetchAddressBatch(addresses, network, s.config.Concurrency)

		active := 0
		gapReached := false
		var lastIndex uint32
		for _, derived := range batch {
			lastIndex = derived.Index
			if txs := results[derived.Address]; len(txs) > 0 {
				consecutiveEmpty = 0
				active++
				for _, tx := range txs {
					state.txByID[tx.TxID] = tx
				}
			} else {
				consecutiveEmpty++
				if consecutiveEmpty >= s.config.GapLimit {
					gapReached = true
					break
				}
			}
		}

		s.events.BatchCompleted(chain, startIndex, active)

		if gapReached {
			s.events.GapReached(chain, lastIndex)
			return nil
		}

		startIndex += uint32(s.config.BatchSize)

		// Pausa entre lotes despachados para respetar el límite informal
		// del indexador
		time.Sleep(s.config.BatchDelay)
	}
}
