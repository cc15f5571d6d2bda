package routes

import (
	"github.com/AgusMolinaCode/BTC_Ledger.git/internal/middleware"
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.Engine) {
	protected := router.Group("/")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.POST("/wallets", middleware.CreateWallet)
		protected.GET("/wallets", middleware.GetUserWallets)
		protected.POST("/wallets/:id/fetch-transactions", middleware.FetchWalletTransactions)
		protected.GET("/wallets/:id/transactions", middleware.GetWalletTransactions)

		protected.GET("/transactions/cost-basis", middleware.GetCostBasis)

		protected.POST("/purchases", middleware.CreatePurchase)
		protected.GET("/purchases", middleware.GetPurchases)
		protected.PATCH("/purchases/:id", middleware.UpdatePurchase)
		protected.DELETE("/purchases/:id", middleware.DeletePurchase)

		protected.GET("/export/csv", middleware.ExportTransactionsCSV)
	}
}
