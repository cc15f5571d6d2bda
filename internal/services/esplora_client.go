package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
)

// Errores de red del indexador. Se reintentan internamente y solo se
// devuelven al agotar los reintentos.
var (
	ErrRateLimited        = errors.New("el indexador limitó la tasa de consultas")
	ErrServiceUnavailable = errors.New("el indexador no está disponible")
	ErrRequestTimedOut    = errors.New("la consulta al indexador excedió el tiempo límite")
)

// EsploraClient consulta el historial de transacciones confirmadas de una
// dirección contra un indexador con API esplora (blockstream.info o
// compatible), con paginación por cursor, reintentos con backoff
// exponencial y un límite de requests simultáneos para los lotes.
type EsploraClient struct {
	httpClient *http.Client
	mainnetURL string
	testnetURL string

	pageSize          int
	maxRetries        int
	retryBaseDelay    time.Duration
	pageDelay         time.Duration
	secondChanceDelay time.Duration

	events ScanEvents
}

// NewEsploraClient crea el cliente con las URLs de los indexadores desde el
// entorno y los valores por defecto de reintento
func NewEsploraClient(events ScanEvents) *EsploraClient {
	mainnetURL := os.Getenv("ESPLORA_MAINNET_URL")
	if mainnetURL == "" {
		mainnetURL = "https://blockstream.info/api"
	}
	testnetURL := os.Getenv("ESPLORA_TESTNET_URL")
	if testnetURL == "" {
		testnetURL = "https://blockstream.info/testnet/api"
	}
	if events == nil {
		events = LogScanEvents{}
	}

	return &EsploraClient{
		httpClient:        &http.Client{Timeout: 30 * time.Second},
		mainnetURL:        mainnetURL,
		testnetURL:        testnetURL,
		pageSize:          25,
		maxRetries:        3,
		retryBaseDelay:    time.Second,
		pageDelay:         200 * time.Millisecond,
		secondChanceDelay: 5 * time.Second,
		events:            events,
	}
}

func (c *EsploraClient) baseURL(network string) string {
	if network == models.NetworkTestnet {
		return c.testnetURL
	}
	return c.mainnetURL
}

// FetchAddressTransactions devuelve todas las transacciones confirmadas de
// una dirección, siguiendo el cursor del indexador mientras las páginas
// vengan completas. Una dirección sin historial no es un error.
func (c *EsploraClient) FetchAddressTransactions(address, network string) ([]models.RawTransaction, error) {
	var confirmed []models.RawTransaction
	lastTxid := ""

	for {
		pageURL := fmt.Sprintf("%s/address/%s/txs", c.baseURL(network), address)
		if lastTxid != "" {
			pageURL = fmt.Sprintf("%s/address/%s/txs/chain/%s", c.baseURL(network), address, lastTxid)
		}

		page, err := c.fetchPage(pageURL, address)
		if err != nil {
			return nil, err
		}

		for _, tx := range page {
			if tx.Status.Confirmed {
				confirmed = append(confirmed, tx)
			}
		}

		if len(page) < c.pageSize {
			break
		}
		lastTxid = page[len(page)-1].TxID

		// Pausa entre páginas para no castigar al indexador
		time.Sleep(c.pageDelay)
	}

	return confirmed, nil
}

// fetchPage hace una consulta con reintentos acotados. El backoff es un
// bucle iterativo con contador explícito de intentos, nunca recursión.
func (c *EsploraClient) fetchPage(pageURL, address string) ([]models.RawTransaction, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.events.RetryAttempted(address, attempt, lastErr)
			// La demora base se duplica en cada intento
			time.Sleep(c.retryBaseDelay * time.Duration(1<<(attempt-1)))
		}

		resp, err := c.httpClient.Get(pageURL)
		if err != nil {
			var urlErr *url.Error
			if errors.As(err, &urlErr) && urlErr.Timeout() {
				return nil, fmt.Errorf("%w: %s", ErrRequestTimedOut, address)
			}
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var page []models.RawTransaction
			err := json.NewDecoder(resp.Body).Decode(&page)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("error parseando la respuesta del indexador: %w", err)
			}
			return page, nil

		case http.StatusNotFound:
			// Dirección sin historial: resultado vacío, no es un error
			resp.Body.Close()
			return []models.RawTransaction{}, nil

		case http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = ErrRateLimited

		case http.StatusServiceUnavailable:
			resp.Body.Close()
			lastErr = ErrServiceUnavailable

		default:
			resp.Body.Close()
			return nil, fmt.Errorf("respuesta inesperada del indexador: %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("%w: dirección %s", lastErr, address)
}

// FetchAddressBatch consulta varias direcciones acotando los requests en
// vuelo a concurrency mediante un semáforo de canal. Las direcciones que
// fallaron por límite de tasa, indisponibilidad o timeout reciben una
// segunda oportunidad tras una pausa más larga; si vuelven a fallar quedan
// con resultado vacío en lugar de abortar el lote entero.
func (c *EsploraClient) FetchAddressBatch(addresses []string, network string, concurrency int) map[string][]models.RawTransaction {
	if concurrency <= 0 {
		concurrency = 2
	}

	results := make(map[string][]models.RawTransaction, len(addresses))
	var mu sync.Mutex
	var failed []string

	fetchAll := func(addrs []string, collectFailures bool) {
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup

		for _, addr := range addrs {
			wg.Add(1)
			sem <- struct{}{}
			go func(addr string) {
				defer wg.Done()
				defer func() { <-sem }()

				txs, err := c.FetchAddressTransactions(addr, network)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if collectFailures && isRetryableError(err) {
						failed = append(failed, addr)
						return
					}
					log.Printf("No se pudo obtener el historial de %s: %v", addr, err)
					results[addr] = nil
					return
				}
				results[addr] = txs
			}(addr)
		}
		wg.Wait()
	}

	fetchAll(addresses, true)

	if len(failed) > 0 {
		log.Printf("Reintentando %d direcciones tras una pausa más larga", len(failed))
		time.Sleep(c.secondChanceDelay)
		retry := failed
		failed = nil
		fetchAll(retry, false)
	}

	return results
}

func isRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrRequestTimedOut)
}
