package controllers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"nimbusdrive/middleware"
	"nimbusdrive/services"
	"nimbusdrive/utils"
)

type FolderController struct {
	folderService *services.FolderService
}

func NewFolderController(folderService *services.FolderService) *FolderController {
	return &FolderController{folderService: folderService}
}

// CreateFolder handles POST /folders
func (fc *FolderController) CreateFolder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req struct {
		Name     string  `json:"name" binding:"required,foldername"`
		ParentID *string `json:"parent_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	parentID, ok := parseOptionalObjectID(c, req.ParentID, "parent folder ID")
	if !ok {
		return
	}

	folder, err := fc.folderService.CreateFolder(c.Request.Context(), userID, req.Name, parentID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Folder created successfully", folder)
}

// ListFolders handles GET /folders and GET /folders?parent_id=...
func (fc *FolderController) ListFolders(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var parentID *primitive.ObjectID
	if raw := c.Query("parent_id"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid parent folder ID format", nil)
			return
		}
		parentID = &id
	}

	folders, err := fc.folderService.ListChildren(c.Request.Context(), userID, parentID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Folders retrieved successfully", folders)
}

// GetFolder handles GET /folders/:id
func (fc *FolderController) GetFolder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	folderID, ok := parsePathObjectID(c, "id", "folder ID")
	if !ok {
		return
	}

	folder, err := fc.folderService.GetFolder(c.Request.Context(), userID, folderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	path, err := fc.folderService.PathSegments(c.Request.Context(), userID, &folderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Folder retrieved successfully", gin.H{
		"folder": folder,
		"path":   path,
	})
}

// RenameFolder handles PATCH /folders/:id/rename
func (fc *FolderController) RenameFolder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	folderID, ok := parsePathObjectID(c, "id", "folder ID")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required,foldername"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	folder, err := fc.folderService.RenameFolder(c.Request.Context(), userID, folderID, req.Name)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Folder renamed successfully", folder)
}

// DeleteFolder handles DELETE /folders/:id (soft delete, cascading)
func (fc *FolderController) DeleteFolder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	folderID, ok := parsePathObjectID(c, "id", "folder ID")
	if !ok {
		return
	}

	count, err := fc.folderService.SoftDeleteSubtree(c.Request.Context(), userID, folderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Folder moved to trash", gin.H{"folders_deleted": count})
}
