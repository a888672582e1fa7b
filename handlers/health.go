package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const serviceName = "storefront"

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
	})
}
