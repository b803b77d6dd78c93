package routes

import (
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gin-gonic/gin"

	"nimbusdrive/logger"
	"nimbusdrive/repository"
	"nimbusdrive/services"
)

// StorageConfig holds the object-store settings the services need.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// ServiceContainer holds all services and dependencies.
type ServiceContainer struct {
	DB            *mongo.Database
	JWTSecret     string
	Storage       services.ObjectStorage
	FolderService *services.FolderService
	FileService   *services.FileService
	ShareService  *services.ShareService
	FileRepo      repository.FileRepository
	Log           *logger.Logger
}

// NewServiceContainer wires repositories, the object store, and the services.
func NewServiceContainer(db *mongo.Database, jwtSecret string, storageCfg StorageConfig, publicBaseURL string, log *logger.Logger) (*ServiceContainer, error) {
	storage, err := services.NewS3Storage(services.S3StorageConfig{
		Endpoint:  storageCfg.Endpoint,
		AccessKey: storageCfg.AccessKey,
		SecretKey: storageCfg.SecretKey,
		Region:    storageCfg.Region,
		UseSSL:    storageCfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	folderRepo := repository.NewMongoFolderRepository(db)
	fileRepo := repository.NewMongoFileRepository(db)
	shareRepo := repository.NewMongoShareRepository(db)

	folderService := services.NewFolderService(folderRepo, storage, storageCfg.Bucket, log)
	fileService := services.NewFileService(fileRepo, folderRepo, storage, storageCfg.Bucket, log)
	shareService := services.NewShareService(shareRepo, fileRepo, folderRepo, storage, publicBaseURL, log)

	return &ServiceContainer{
		DB:            db,
		JWTSecret:     jwtSecret,
		Storage:       storage,
		FolderService: folderService,
		FileService:   fileService,
		ShareService:  shareService,
		FileRepo:      fileRepo,
		Log:           log,
	}, nil
}

// SetupRoutes registers all route groups on the API router group.
func SetupRoutes(api *gin.RouterGroup, container *ServiceContainer) {
	RegisterFolderRoutes(api, container.JWTSecret, container.FolderService)
	RegisterFileRoutes(api, container.JWTSecret, container.FileService)
	RegisterShareRoutes(api, container.JWTSecret, container.ShareService)
}
