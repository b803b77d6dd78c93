package routes

import (
	"github.com/gin-gonic/gin"

	"nimbusdrive/controllers"
	"nimbusdrive/middleware"
	"nimbusdrive/services"
)

func RegisterFileRoutes(rg *gin.RouterGroup, jwtSecret string, fileService *services.FileService) {
	fileController := controllers.NewFileController(fileService)

	files := rg.Group("/files")
	files.Use(middleware.AuthMiddleware(jwtSecret))
	{
		files.POST("/upload", fileController.UploadFile)          // POST /files/upload (multipart)
		files.POST("/upload-url", fileController.RequestUpload)   // POST /files/upload-url (presigned PUT)
		files.POST("/confirm-upload", fileController.ConfirmUpload)
		files.GET("/", fileController.ListFiles)                  // GET /files?folder_id=&limit=&offset=
		files.GET("/:id", fileController.GetFile)                 // GET /files/:id
		files.GET("/:id/download", fileController.DownloadFile)   // GET /files/:id/download
		files.PATCH("/:id", fileController.UpdateFile)            // PATCH /files/:id (tags, metadata)
		files.PATCH("/:id/move", fileController.MoveFile)         // PATCH /files/:id/move
		files.POST("/:id/access", fileController.GrantAccess)     // POST /files/:id/access
		files.DELETE("/:id/access/:userId", fileController.RevokeAccess)
		files.DELETE("/:id", fileController.DeleteFile)           // DELETE /files/:id (soft delete)
		files.DELETE("/:id/permanent", fileController.PurgeFile)  // DELETE /files/:id/permanent
	}
}
