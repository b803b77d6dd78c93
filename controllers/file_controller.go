package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nimbusdrive/config"
	"nimbusdrive/middleware"
	"nimbusdrive/services"
	"nimbusdrive/utils"
)

const defaultListLimit = 50

type FileController struct {
	fileService *services.FileService
}

func NewFileController(fileService *services.FileService) *FileController {
	return &FileController{fileService: fileService}
}

// UploadFile handles POST /files/upload (multipart)
func (fc *FileController) UploadFile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file provided", err.Error())
		return
	}
	if err := utils.ValidateFileSize(header.Size, config.AppConfig.MaxFileSize); err != nil {
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "File too large", err.Error())
		return
	}

	var folderIDRaw *string
	if raw := c.PostForm("folder_id"); raw != "" {
		folderIDRaw = &raw
	}
	folderID, ok := parseOptionalObjectID(c, folderIDRaw, "folder ID")
	if !ok {
		return
	}

	src, err := header.Open()
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to read uploaded file", err.Error())
		return
	}
	defer src.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file, err := fc.fileService.Upload(c.Request.Context(), userID, header.Filename, src, header.Size, contentType, folderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "File uploaded successfully", file)
}

// RequestUpload handles POST /files/upload-url (presigned two-step upload)
func (fc *FileController) RequestUpload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req struct {
		FileName          string  `json:"file_name" binding:"required,min=1,max=255"`
		FolderID          *string `json:"folder_id,omitempty"`
		ExpirationSeconds int     `json:"expiration_seconds,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	folderID, ok := parseOptionalObjectID(c, req.FolderID, "folder ID")
	if !ok {
		return
	}

	ticket, err := fc.fileService.IssuePresignedUpload(c.Request.Context(), userID, req.FileName, folderID, req.ExpirationSeconds)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Upload URL issued", ticket)
}

// ConfirmUpload handles POST /files/confirm-upload
func (fc *FileController) ConfirmUpload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req struct {
		FileName     string  `json:"file_name" binding:"required"`
		OriginalName string  `json:"original_name" binding:"required,min=1,max=255"`
		MimeType     string  `json:"mime_type,omitempty"`
		FolderID     *string `json:"folder_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	folderID, ok := parseOptionalObjectID(c, req.FolderID, "folder ID")
	if !ok {
		return
	}

	file, err := fc.fileService.ConfirmUpload(c.Request.Context(), userID, req.FileName, req.OriginalName, req.MimeType, folderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "File registered successfully", file)
}

// ListFiles handles GET /files
func (fc *FileController) ListFiles(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	input := services.ListFilesInput{
		Limit:       parseInt64Query(c, "limit", defaultListLimit),
		Offset:      parseInt64Query(c, "offset", 0),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
		MimePattern: c.Query("mime_type"),
	}

	if raw := c.Query("folder_id"); raw != "" {
		if raw == "root" {
			input.RootOnly = true
		} else {
			folderID, ok := parseOptionalObjectID(c, &raw, "folder ID")
			if !ok {
				return
			}
			input.FolderID = folderID
		}
	}

	listing, err := fc.fileService.ListFiles(c.Request.Context(), userID, input)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedSuccessResponse(c, "Files retrieved successfully", listing.Files, &utils.Pagination{
		Limit:     listing.Limit,
		Offset:    listing.Offset,
		Total:     listing.Total,
		TotalSize: listing.TotalSize,
	})
}

// GetFile handles GET /files/:id
func (fc *FileController) GetFile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	fileID, ok := parsePathObjectID(c, "id", "file ID")
	if !ok {
		return
	}

	file, err := fc.fileService.GetFile(c.Request.Context(), userID, fileID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "File retrieved successfully", file)
}

// DownloadFile handles GET /files/:id/download
func (fc *FileController) DownloadFile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	fileID, ok := parsePathObjectID(c, "id", "file ID")
	if !ok {
		return
	}

	expiration := int(parseInt64Query(c, "expiration", 3600))
	url, err := fc.fileService.IssuePresignedDownload(c.Request.Context(), fileID, userID, expiration)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Download URL issued", gin.H{"download_url": url})
}

// MoveFile handles PATCH /files/:id/move
func (fc *FileController) MoveFile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	fileID, ok := parsePathObjectID(c, "id", "file ID")
	if !ok {
		return
	}

	var req struct {
		FolderID *string `json:"folder_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	folderID, ok := parseOptionalObjectID(c, req.FolderID, "destination folder ID")
	if !ok {
		return
	}

	file, err := fc.fileService.MoveFile(c.Request.Context(), userID, fileID, folderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "File moved successfully", file)
}

// UpdateFile handles PATCH /files/:id (tags and metadata)
func (fc *FileController) UpdateFile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	fileID, ok := parsePathObjectID(c, "id", "file ID")
	if !ok {
		return
	}

	var req struct {
		Tags     *[]string          `json:"tags,omitempty"`
		Metadata *map[string]string `json:"metadata,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	file, err := fc.fileService.UpdateMetadata(c.Request.Context(), userID, fileID, req.Tags, req.Metadata)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "File updated successfully", file)
}

// GrantAccess handles POST /files/:id/access
func (fc *FileController) GrantAccess(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	fileID, ok := parsePathObjectID(c, "id", "file ID")
	if !ok {
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}
	principalID, ok := parseOptionalObjectID(c, &req.UserID, "user ID")
	if !ok || principalID == nil {
		return
	}

	if err := fc.fileService.ShareWithUser(c.Request.Context(), userID, fileID, *principalID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Access granted", nil)
}

// RevokeAccess handles DELETE /files/:id/access/:userId
func (fc *FileController) RevokeAccess(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	fileID, ok := parsePathObjectID(c, "id", "file ID")
	if !ok {
		return
	}
	principalID, ok := parsePathObjectID(c, "userId", "user ID")
	if !ok {
		return
	}

	if err := fc.fileService.UnshareWithUser(c.Request.Context(), userID, fileID, principalID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Access revoked", nil)
}

// DeleteFile handles DELETE /files/:id (soft delete)
func (fc *FileController) DeleteFile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	fileID, ok := parsePathObjectID(c, "id", "file ID")
	if !ok {
		return
	}

	if err := fc.fileService.SoftDelete(c.Request.Context(), userID, fileID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "File moved to trash", nil)
}

// PurgeFile handles DELETE /files/:id/permanent
func (fc *FileController) PurgeFile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	fileID, ok := parsePathObjectID(c, "id", "file ID")
	if !ok {
		return
	}

	if err := fc.fileService.PermanentDelete(c.Request.Context(), userID, fileID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "File permanently deleted", nil)
}

func parseInt64Query(c *gin.Context, key string, fallback int64) int64 {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
