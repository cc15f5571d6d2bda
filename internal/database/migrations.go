package database

import (
	"log"
)

// RunMigrations ejecuta las migraciones necesarias para actualizar el esquema de la base de datos
func RunMigrations() error {
	log.Println("Ejecutando migraciones de la base de datos...")

	// Migración para añadir la columna source a la tabla purchase_lots
	addLotSourceColumnSQL := `
	ALTER TABLE purchase_lots ADD COLUMN source TEXT DEFAULT 'manual';
	`

	_, err := DB.Exec(addLotSourceColumnSQL)
	if err != nil {
		log.Printf("Error al añadir la columna source: %v", err)
		// No retornamos error porque SQLite puede dar error si la columna ya existe
		// y queremos que la migración continúe
	} else {
		log.Println("Columna source añadida correctamente")
	}

	return nil
}
