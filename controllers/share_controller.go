package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"nimbusdrive/middleware"
	"nimbusdrive/services"
	"nimbusdrive/utils"
)

type ShareController struct {
	shareService *services.ShareService
}

func NewShareController(shareService *services.ShareService) *ShareController {
	return &ShareController{shareService: shareService}
}

// CreateShare handles POST /shares
func (sc *ShareController) CreateShare(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req struct {
		ItemType      string     `json:"item_type" binding:"required,oneof=file folder"`
		ItemID        string     `json:"item_id" binding:"required"`
		Permissions   []string   `json:"permissions,omitempty"`
		AllowedEmails []string   `json:"allowed_emails,omitempty"`
		ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	itemID, ok := parseOptionalObjectID(c, &req.ItemID, "item ID")
	if !ok || itemID == nil {
		return
	}

	share, url, err := sc.shareService.CreateShare(c.Request.Context(), userID, services.CreateShareInput{
		ItemType:      req.ItemType,
		ItemID:        *itemID,
		Permissions:   req.Permissions,
		AllowedEmails: req.AllowedEmails,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Share created successfully", gin.H{
		"share":      share,
		"access_url": url,
	})
}

// ListShares handles GET /shares
func (sc *ShareController) ListShares(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	shares, err := sc.shareService.ListShares(c.Request.Context(), userID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Shares retrieved successfully", shares)
}

// GetShare handles GET /shares/:id
func (sc *ShareController) GetShare(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	shareID, ok := parsePathObjectID(c, "id", "share ID")
	if !ok {
		return
	}

	share, err := sc.shareService.GetShare(c.Request.Context(), userID, shareID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Share retrieved successfully", share)
}

// UpdateShare handles PATCH /shares/:id
func (sc *ShareController) UpdateShare(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	shareID, ok := parsePathObjectID(c, "id", "share ID")
	if !ok {
		return
	}

	var req struct {
		Permissions   *[]string  `json:"permissions,omitempty"`
		AllowedEmails *[]string  `json:"allowed_emails,omitempty"`
		ExpiresAt     *time.Time `json:"expires_at,omitempty"`
		ClearExpiry   bool       `json:"clear_expiry,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	share, err := sc.shareService.UpdateShare(c.Request.Context(), userID, shareID, services.UpdateShareInput{
		Permissions:   req.Permissions,
		AllowedEmails: req.AllowedEmails,
		ExpiresAt:     req.ExpiresAt,
		ClearExpiry:   req.ClearExpiry,
	})
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Share updated successfully", share)
}

// RevokeShare handles DELETE /shares/:id
func (sc *ShareController) RevokeShare(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	shareID, ok := parsePathObjectID(c, "id", "share ID")
	if !ok {
		return
	}

	changed, err := sc.shareService.RevokeShare(c.Request.Context(), userID, shareID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Share revoked", gin.H{"changed": changed})
}

// ViewShared handles GET /share/:token — anonymous access with an optional
// recipient email for allowlisted grants.
func (sc *ShareController) ViewShared(c *gin.Context) {
	view, err := sc.shareService.ViewViaToken(c.Request.Context(), c.Param("token"), sc.recipientEmail(c))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Shared item retrieved", view)
}

// DownloadShared handles GET /share/:token/download
func (sc *ShareController) DownloadShared(c *gin.Context) {
	expiration := int(parseInt64Query(c, "expiration", 3600))
	dl, err := sc.shareService.DownloadViaToken(c.Request.Context(), c.Param("token"), sc.recipientEmail(c), expiration)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Download URLs issued", dl)
}

// recipientEmail prefers the authenticated identity, falling back to the
// email query parameter for anonymous recipients.
func (sc *ShareController) recipientEmail(c *gin.Context) string {
	if email := middleware.UserEmail(c); email != "" {
		return email
	}
	return c.Query("email")
}
