package controllers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"nimbusdrive/utils"
)

// parsePathObjectID reads a path parameter as an ObjectID, writing a 400
// response itself when the value is malformed.
func parsePathObjectID(c *gin.Context, param, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+label+" format", nil)
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseOptionalObjectID reads an optional hex string; nil and "" mean absent.
func parseOptionalObjectID(c *gin.Context, raw *string, label string) (*primitive.ObjectID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(*raw)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+label+" format", nil)
		return nil, false
	}
	return &id, true
}
