package services

import "log"

// ScanEvents recibe el progreso de un escaneo. Reemplaza los logs sueltos
// por una interfaz observable: quien escucha decide qué hacer con cada
// evento sin parsear texto.
type ScanEvents interface {
	ScanStarted(walletKey, network string)
	BatchCompleted(chain AddressChain, startIndex uint32, activeAddresses int)
	RetryAttempted(address string, attempt int, err error)
	GapReached(chain AddressChain, lastIndex uint32)
	HardCapReached(chain AddressChain, cap int)
	ScanFinished(txCount, addressCount int)
}

// LogScanEvents es la implementación por defecto: registra cada evento con
// el logger estándar
type LogScanEvents struct{}

func (LogScanEvents) ScanStarted(walletKey, network string) {
	log.Printf("Iniciando escaneo de la billetera en %s", network)
}

func (LogScanEvents) BatchCompleted(chain AddressChain, startIndex uint32, activeAddresses int) {
	log.Printf("Lote completado: rama %d, índice inicial %d, %d direcciones activas", chain, startIndex, activeAddresses)
}

func (LogScanEvents) RetryAttempted(address string, attempt int, err error) {
	log.Printf("Reintento %d para la dirección %s: %v", attempt, address, err)
}

func (LogScanEvents) GapReached(chain AddressChain, lastIndex uint32) {
	log.Printf("Límite de gap alcanzado en la rama %d, último índice derivado %d", chain, lastIndex)
}

func (LogScanEvents) HardCapReached(chain AddressChain, cap int) {
	log.Printf("Advertencia: se alcanzó el tope de %d direcciones en la rama %d sin llegar al gap", cap, chain)
}

func (LogScanEvents) ScanFinished(txCount, addressCount int) {
	log.Printf("Escaneo finalizado: %d transacciones únicas, %d direcciones derivadas", txCount, addressCount)
}
