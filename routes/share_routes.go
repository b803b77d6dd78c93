package routes

import (
	"github.com/gin-gonic/gin"

	"nimbusdrive/controllers"
	"nimbusdrive/middleware"
	"nimbusdrive/services"
)

func RegisterShareRoutes(rg *gin.RouterGroup, jwtSecret string, shareService *services.ShareService) {
	shareController := controllers.NewShareController(shareService)

	// Owner-facing share management.
	shares := rg.Group("/shares")
	shares.Use(middleware.AuthMiddleware(jwtSecret))
	{
		shares.POST("/", shareController.CreateShare)       // POST /shares
		shares.GET("/", shareController.ListShares)         // GET /shares
		shares.GET("/:id", shareController.GetShare)        // GET /shares/:id
		shares.PATCH("/:id", shareController.UpdateShare)   // PATCH /shares/:id
		shares.DELETE("/:id", shareController.RevokeShare)  // DELETE /shares/:id
	}

	// Token redemption: the token itself is the credential, so these routes
	// only attach auth when the caller presents it.
	redeem := rg.Group("/share")
	redeem.Use(middleware.OptionalAuthMiddleware(jwtSecret))
	{
		redeem.GET("/:token", shareController.ViewShared)              // GET /share/:token
		redeem.GET("/:token/download", shareController.DownloadShared) // GET /share/:token/download
	}
}
