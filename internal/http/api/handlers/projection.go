package handlers

import (
	"github.com/clearlabel/transparency/internal/models"
	"github.com/gin-gonic/gin"
)

// productJSON is the wire shape of a product. _id mirrors id for document-style clients.
func productJSON(p *models.Product) gin.H {
	questions := []models.Question(p.Questions)
	if questions == nil {
		questions = []models.Question{}
	}
	return gin.H{
		"id":          p.ID,
		"_id":         p.ID,
		"productName": p.ProductName,
		"category":    p.Category,
		"questions":   questions,
		"status":      p.Status,
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
}

// publicUser never includes the password hash or pending OTP.
func publicUser(u *models.User, withVerified bool) gin.H {
	out := gin.H{
		"id":       u.ID,
		"_id":      u.ID,
		"fullname": u.Fullname,
		"email":    u.Email,
	}
	if withVerified {
		out["isVerified"] = u.IsVerified
	}
	return out
}
