package routes

import (
	"github.com/gin-gonic/gin"

	"nimbusdrive/controllers"
	"nimbusdrive/middleware"
	"nimbusdrive/services"
)

func RegisterFolderRoutes(rg *gin.RouterGroup, jwtSecret string, folderService *services.FolderService) {
	folderController := controllers.NewFolderController(folderService)

	folders := rg.Group("/folders")
	folders.Use(middleware.AuthMiddleware(jwtSecret))
	{
		folders.POST("/", folderController.CreateFolder)            // POST /folders
		folders.GET("/", folderController.ListFolders)              // GET /folders?parent_id=
		folders.GET("/:id", folderController.GetFolder)             // GET /folders/:id
		folders.PATCH("/:id/rename", folderController.RenameFolder) // PATCH /folders/:id/rename
		folders.DELETE("/:id", folderController.DeleteFolder)       // DELETE /folders/:id (soft delete, cascading)
	}
}
