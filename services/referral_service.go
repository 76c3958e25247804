// services/referral_service.go
package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/pvuminhtri-cloud/kiemcoinnao/middleware"
	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

// ReferralService serves referral stats and code validation.
type ReferralService struct {
	DB *gorm.DB
}

func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{DB: db}
}

// Stats returns the current user's referral code and totals.
func (s *ReferralService) Stats(c *fiber.Ctx) error {
	var user models.User
	err := s.DB.First(&user, "username = ?", middleware.Username(c)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": false, "message": "user not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"referralCode":    user.ReferralCode,
			"totalReferrals":  user.TotalReferrals,
			"totalCommission": user.TotalCommission,
		},
	})
}

// List returns the users the current user referred, newest first.
func (s *ReferralService) List(c *fiber.Ctx) error {
	type referredView struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Balance   int64  `json:"balance"`
		CreatedAt string `json:"createdAt"`
	}

	var rows []models.User
	err := s.DB.
		Where("referred_by = ?", middleware.Username(c)).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	out := make([]referredView, len(rows))
	for i, u := range rows {
		out[i] = referredView{
			Username:  u.Username,
			Email:     u.Email,
			Balance:   u.Balance,
			CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
		}
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

// Validate checks a referral code during registration. Public endpoint.
func (s *ReferralService) Validate(c *fiber.Ctx) error {
	var user models.User
	err := s.DB.First(&user, "referral_code = ?", c.Params("code")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": false, "message": "invalid referral code"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"referrerUsername": user.Username},
	})
}
