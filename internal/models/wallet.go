package models

import "time"

// Redes soportadas por el servicio
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// Wallet representa una billetera registrada por el usuario: puede ser una
// dirección individual o una clave pública extendida (xpub/ypub/zpub)
type Wallet struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name" binding:"required"`
	KeyOrAddress string     `json:"key_or_address" binding:"required"`
	Network      string     `json:"network"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// ScanStats resume el resultado de un escaneo de la billetera
type ScanStats struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}
