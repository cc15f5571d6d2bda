package services

import (
	"sync"
	"testing"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeFetcher sirve transacciones precargadas por dirección y registra cada
// dirección consultada, para verificar hasta dónde avanzó el escaneo
type fakeFetcher struct {
	mu      sync.Mutex
	txs     map[string][]models.RawTransaction
	fetched map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		txs:     make(map[string][]models.RawTransaction),
		fetched: make(map[string]bool),
	}
}

func (f *fakeFetcher) FetchAddressTransactions(address, network string) ([]models.RawTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched[address] = true
	return f.txs[address], nil
}

func (f *fakeFetcher) FetchAddressBatch(addresses []string, network string, concurrency int) map[string][]models.RawTransaction {
	results := make(map[string][]models.RawTransaction)
	for _, address := range addresses {
		txs, _ := f.FetchAddressTransactions(address, network)
		results[address] = txs
	}
	return results
}

// scanEventsRecorder acumula los eventos de advertencia del escaneo
type scanEventsRecorder struct {
	LogScanEvents
	mu          sync.Mutex
	gapChains   []AddressChain
	hardCapHits int
}

func (r *scanEventsRecorder) GapReached(chain AddressChain, lastIndex uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gapChains = append(r.gapChains, chain)
}

func (r *scanEventsRecorder) HardCapReached(chain AddressChain, cap int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hardCapHits++
}

func testScanConfig() ScanConfig {
	config := DefaultScanConfig()
	config.BatchDelay = 0
	return config
}

func rawTx(txid string, blockTime int64) models.RawTransaction {
	return models.RawTransaction{
		TxID:   txid,
		Status: models.TxStatus{Confirmed: true, BlockTime: blockTime},
	}
}

func TestScanWalletSingleAddress(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.txs["bc1qsuelta"] = []models.RawTransaction{rawTx("tx-1", 1700000001)}

	scanner := NewWalletScanner(fetcher, testScanConfig(), nil)
	txs, addressSet, err := scanner.ScanWallet("bc1qsuelta", models.NetworkMainnet)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, map[string]bool{"bc1qsuelta": true}, addressSet)
}

func TestScanWalletGapLimitStopsDerivation(t *testing.T) {
	// Rama externa con actividad en los índices 0 a 9: el gap de 20 se
	// completa en el índice 29, así que el escaneo no debe derivar el 30.
	// La rama interna está vacía y se corta en el índice 19.
	external, err := DeriveAddresses(testZpub, 40, 0, ExternalChain)
	require.NoError(t, err)
	internal, err := DeriveAddresses(testZpub, 40, 0, InternalChain)
	require.NoError(t, err)

	fetcher := newFakeFetcher()
	for i := 0; i < 10; i++ {
		fetcher.txs[external[i].Address] = []models.RawTransaction{
			rawTx("tx-externa-"+external[i].Address, 1700000000+int64(i)),
		}
	}

	recorder := &scanEventsRecorder{}
	scanner := NewWalletScanner(fetcher, testScanConfig(), recorder)
	txs, addressSet, err := scanner.ScanWallet(testZpub, models.NetworkMainnet)
	require.NoError(t, err)
	require.Len(t, txs, 10)

	// La rama externa llega exactamente hasta el índice 29
	require.True(t, fetcher.fetched[external[29].Address])
	require.False(t, fetcher.fetched[external[30].Address])

	// La rama interna, vacía, se corta en el índice 19
	require.True(t, fetcher.fetched[internal[19].Address])
	require.False(t, fetcher.fetched[internal[20].Address])

	// El conjunto devuelto incluye todas las direcciones derivadas de
	// ambas ramas, no solo las activas
	require.Len(t, addressSet, 50)
	require.True(t, addressSet[internal[0].Address])

	require.Len(t, recorder.gapChains, 2)
	require.Zero(t, recorder.hardCapHits)
}

func TestScanWalletDeduplicatesByTxid(t *testing.T) {
	// Una transacción que toca dos direcciones activas aparece una sola vez
	external, err := DeriveAddresses(testZpub, 2, 0, ExternalChain)
	require.NoError(t, err)

	shared := rawTx("tx-compartida", 1700000005)
	fetcher := newFakeFetcher()
	fetcher.txs[external[0].Address] = []models.RawTransaction{shared, rawTx("tx-a", 1700000001)}
	fetcher.txs[external[1].Address] = []models.RawTransaction{shared}

	scanner := NewWalletScanner(fetcher, testScanConfig(), nil)
	txs, _, err := scanner.ScanWallet(testZpub, models.NetworkMainnet)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	// Orden cronológico por block_time
	require.Equal(t, "tx-a", txs[0].TxID)
	require.Equal(t, "tx-compartida", txs[1].TxID)
}

func TestScanWalletHardCapWarns(t *testing.T) {
	// Todas las direcciones tienen actividad: sin el tope el escaneo no
	// terminaría nunca. El tope corta cada rama y queda registrado como
	// advertencia, no como error.
	config := testScanConfig()
	config.HardCap = 40

	external, err := DeriveAddresses(testZpub, 41, 0, ExternalChain)
	require.NoError(t, err)

	fetcher := newFakeFetcher()
	activeEverywhere := &fakeActiveFetcher{inner: fetcher}

	recorder := &scanEventsRecorder{}
	scanner := NewWalletScanner(activeEverywhere, config, recorder)
	_, _, err = scanner.ScanWallet(testZpub, models.NetworkMainnet)
	require.NoError(t, err)

	require.Equal(t, 2, recorder.hardCapHits)
	require.True(t, fetcher.fetched[external[39].Address])
	require.False(t, fetcher.fetched[external[40].Address])
}

// fakeActiveFetcher responde con una transacción sintética para cualquier
// dirección consultada
type fakeActiveFetcher struct {
	inner *fakeFetcher
}

func (f *fakeActiveFetcher) FetchAddressTransactions(address, network string) ([]models.RawTransaction, error) {
	f.inner.mu.Lock()
	f.inner.fetched[address] = true
	f.inner.mu.Unlock()
	return []models.RawTransaction{rawTx("tx-"+address, 1700000000)}, nil
}

func (f *fakeActiveFetcher) FetchAddressBatch(addresses []string, network string, concurrency int) map[string][]models.RawTransaction {
	results := make(map[string][]models.RawTransaction)
	for _, address := range addresses {
		txs, _ := f.FetchAddressTransactions(address, network)
		results[address] = txs
	}
	return results
}
