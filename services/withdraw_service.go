// services/withdraw_service.go
package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pvuminhtri-cloud/kiemcoinnao/middleware"
	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

// MinWithdrawAmount is the smallest coin amount a user may request.
const MinWithdrawAmount = 15

// WithdrawService handles withdrawal requests and per-user history.
type WithdrawService struct {
	DB *gorm.DB
}

func NewWithdrawService(db *gorm.DB) *WithdrawService {
	return &WithdrawService{DB: db}
}

// Request deducts the amount and appends a pending ledger row in one
// transaction. The row stays pending until an admin reviews it.
func (s *WithdrawService) Request(c *fiber.Ctx) error {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	if req.Amount < MinWithdrawAmount {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "the minimum withdrawal is 15 coins"})
	}

	username := middleware.Username(c)
	var created models.Withdrawal

	err := s.DB.WithContext(c.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "username = ?", username).Error; err != nil {
			return err
		}
		if user.Balance < req.Amount {
			return errInsufficientBalance
		}
		if user.BankAccount == "" || user.BankName == "" {
			return errMissingBankInfo
		}

		user.Balance -= req.Amount
		if err := tx.Model(&models.User{}).Where("username = ?", username).
			UpdateColumn("balance", user.Balance).Error; err != nil {
			return err
		}

		created = models.Withdrawal{
			ID:        uuid.NewString(),
			Username:  username,
			Amount:    req.Amount,
			Method:    user.BankName,
			Status:    models.WithdrawalStatusPending,
			Timestamp: time.Now(),
		}
		return tx.Create(&created).Error
	})

	switch {
	case errors.Is(err, errInsufficientBalance):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "insufficient balance"})
	case errors.Is(err, errMissingBankInfo):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "please add your bank details in settings first"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "account not found"})
	case err != nil:
		log.Printf("❌ withdrawal request failed for %s: %v", username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"message":    "withdrawal request submitted",
		"withdrawal": created,
	})
}

var (
	errInsufficientBalance = errors.New("insufficient balance")
	errMissingBankInfo     = errors.New("bank details missing")
)

// History returns the user's withdrawal rows, newest first, 5 per page.
func (s *WithdrawService) History(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	const perPage = 5

	username := middleware.Username(c)
	var total int64
	if err := s.DB.Model(&models.Withdrawal{}).Where("username = ?", username).Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	var rows []models.Withdrawal
	err := s.DB.Where("username = ?", username).
		Order("timestamp DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&rows).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"history": rows,
		"page":    page,
		"total":   total,
	})
}
