package main

import (
	"log"
	"os"
	"time"

	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/database"
	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/middleware"
	routes "github.com/AgusMolinaCode/BTC_Ledger.git/internal/server"
	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Instancia global del actualizador de cotizaciones
var rateWarmer *services.RateCacheWarmer

func main() {
	// Cargar variables de entorno
	if err := godotenv.Load(); err != nil {
		log.Printf("No se pudo cargar el archivo .env: %v", err)
	}

	// Crear el router de Gin
	router := gin.Default()

	// Configurar CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"http://localhost:3000"}
	config.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = true
	config.ExposeHeaders = []string{"Content-Length", "Content-Disposition"}
	router.Use(cors.New(config))

	// Inicializar base de datos
	if err := database.InitDB(); err != nil {
		log.Fatalf("Error al inicializar la base de datos: %v", err)
	}
	defer database.DB.Close()

	// Servicio de cotizaciones históricas con su caché persistente
	rateService := services.NewExchangeRateService(database.DB)

	// Refrescar la cotización del día cada hora para que las valuaciones
	// del mismo día salgan de la caché
	rateWarmer = services.NewRateCacheWarmer(rateService, time.Hour)
	rateWarmer.Start()
	defer rateWarmer.Stop()

	// Inicializar repositorios y servicios de los handlers
	middleware.InitHandlers(database.DB, rateService)

	// Configurar las rutas
	routes.RegisterRoutes(router)

	// Iniciar el servidor
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Error al iniciar el servidor: %v", err)
	}
}
