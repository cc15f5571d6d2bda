package services

import (
	"log"
	"sync"
	"time"
)

// RateCacheWarmer es un servicio de fondo que refresca periódicamente la
// cotización del día para que las valuaciones del mismo día salgan de la
// caché en lugar de golpear al servicio externo
type RateCacheWarmer struct {
	interval  time.Duration
	rates     *ExchangeRateService
	isRunning bool
	stopChan  chan struct{}
	mutex     sync.Mutex
}

// NewRateCacheWarmer crea el servicio con el intervalo de actualización
func NewRateCacheWarmer(rates *ExchangeRateService, interval time.Duration) *RateCacheWarmer {
	return &RateCacheWarmer{
		interval: interval,
		rates:    rates,
		stopChan: make(chan struct{}),
	}
}

// Start inicia el bucle de actualización en una goroutine
func (w *RateCacheWarmer) Start() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.isRunning {
		return
	}
	w.isRunning = true

	go w.run()
	log.Printf("Actualizador de cotizaciones iniciado (cada %v)", w.interval)
}

// Stop detiene el bucle de actualización
func (w *RateCacheWarmer) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.isRunning {
		return
	}
	w.isRunning = false
	close(w.stopChan)
	log.Println("Actualizador de cotizaciones detenido")
}

func (w *RateCacheWarmer) run() {
	// Calentar la caché de entrada, sin esperar el primer tick
	w.refresh()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refresh()
		case <-w.stopChan:
			return
		}
	}
}

func (w *RateCacheWarmer) refresh() {
	if _, err := w.rates.GetRateForDate(time.Now()); err != nil {
		log.Printf("No se pudo refrescar la cotización del día: %v", err)
	}
}
