package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/models"
)

// ErrExchangeRateUnavailable indica que no se pudo obtener la cotización
// histórica para alguna fecha. Es fatal para todo el lote de valuación: no
// se permite una lista de transacciones valuada a medias.
var ErrExchangeRateUnavailable = errors.New("cotización histórica BTC/USD no disponible")

// ExchangeRateService obtiene la cotización histórica BTC/USD por fecha.
// Cachea por fecha en memoria y en la tabla exchange_rates para acotar las
// llamadas al servicio externo.
type ExchangeRateService struct {
	baseURL    string
	httpClient *http.Client
	db         *sql.DB

	mu    sync.RWMutex
	cache map[string]float64
}

// NewExchangeRateService crea el servicio. db puede ser nil: en ese caso
// solo se usa la caché en memoria.
func NewExchangeRateService(db *sql.DB) *ExchangeRateService {
	baseURL := os.Getenv("EXCHANGE_RATE_URL")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &ExchangeRateService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		db:         db,
		cache:      make(map[string]float64),
	}
}

// Respuesta del endpoint de historial de CoinGecko
type coinHistoryResponse struct {
	MarketData struct {
		CurrentPrice struct {
			Usd float64 `json:"usd"`
		} `json:"current_price"`
	} `json:"market_data"`
}

// GetRateForDate devuelve la cotización BTC/USD del día indicado
func (s *ExchangeRateService) GetRateForDate(date time.Time) (float64, error) {
	key := date.UTC().Format("2006-01-02")

	// Primero la caché en memoria
	s.mu.RLock()
	rate, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return rate, nil
	}

	// Después la caché persistente
	if s.db != nil {
		err := s.db.QueryRow(`SELECT rate FROM exchange_rates WHERE date = ?`, key).Scan(&rate)
		if err == nil && rate > 0 {
			s.mu.Lock()
			s.cache[key] = rate
			s.mu.Unlock()
			return rate, nil
		}
	}

	// Finalmente el servicio externo
	url := fmt.Sprintf("%s/coins/bitcoin/history?date=%s&localization=false",
		s.baseURL, date.UTC().Format("02-01-2006"))

	resp, err := s.httpClient.Get(url)
	if err != nil {
		log.Printf("Error consultando la cotización del %s: %v", key, err)
		return 0, fmt.Errorf("%w: %s", ErrExchangeRateUnavailable, key)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Respuesta %d consultando la cotización del %s", resp.StatusCode, key)
		return 0, fmt.Errorf("%w: %s", ErrExchangeRateUnavailable, key)
	}

	var history coinHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrExchangeRateUnavailable, key)
	}

	rate = history.MarketData.CurrentPrice.Usd
	if rate <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrExchangeRateUnavailable, key)
	}

	// Guardar en ambas cachés
	s.mu.Lock()
	s.cache[key] = rate
	s.mu.Unlock()

	if s.db != nil {
		if _, err := s.db.Exec(
			`INSERT OR REPLACE INTO exchange_rates (date, rate, fetched_at) VALUES (?, ?, ?)`,
			key, rate, time.Now(),
		); err != nil {
			log.Printf("No se pudo persistir la cotización del %s: %v", key, err)
		}
	}

	return rate, nil
}

// AttachUsdValues agrega la valuación histórica en USD a cada transacción
// clasificada. Si falta la cotización de alguna fecha, falla el lote entero.
func (s *ExchangeRateService) AttachUsdValues(parsed []models.ParsedTransaction) ([]models.ValuedTransaction, error) {
	valued := make([]models.ValuedTransaction, 0, len(parsed))

	for _, tx := range parsed {
		rate, err := s.GetRateForDate(tx.Date)
		if err != nil {
			return nil, err
		}

		valued = append(valued, models.ValuedTransaction{
			ParsedTransaction: tx,
			UsdValue:          tx.AmountBTC * rate,
			FeeUsd:            tx.FeeBTC * rate,
			ExchangeRate:      rate,
		})
	}

	return valued, nil
}
