// services/admin_service.go
package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
)

// AdminService backs the admin dashboard: withdrawal review, user risk
// management and aggregate stats.
type AdminService struct {
	DB *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{DB: db}
}

// DashboardStats aggregates the headline numbers and the top-5 tasks by
// successful completions.
func (s *AdminService) DashboardStats(c *fiber.Ctx) error {
	var totalUsers int64
	if err := s.DB.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	var totalPaid int64
	err := s.DB.Model(&models.Withdrawal{}).
		Where("status = ?", models.WithdrawalStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalPaid).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	var pendingWithdrawals int64
	if err := s.DB.Model(&models.Withdrawal{}).
		Where("status = ?", models.WithdrawalStatusPending).
		Count(&pendingWithdrawals).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	type taskCount struct {
		TaskName string `json:"task_name"`
		Count    int64  `json:"count"`
	}
	var popular []taskCount
	err = s.DB.Model(&models.TaskHistory{}).
		Where("status = ?", models.TaskStatusSuccess).
		Select("task_name, COUNT(*) AS count").
		Group("task_name").
		Order("count DESC").
		Limit(5).
		Scan(&popular).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats": fiber.Map{
			"total_users":         totalUsers,
			"total_paid":          totalPaid,
			"pending_withdrawals": pendingWithdrawals,
			"popular_tasks":       popular,
		},
	})
}

// PendingWithdrawals lists every withdrawal awaiting review, with the bank
// details the admin needs to pay out.
func (s *AdminService) PendingWithdrawals(c *fiber.Ctx) error {
	var rows []models.Withdrawal
	err := s.DB.Where("status = ?", models.WithdrawalStatusPending).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	usernames := make([]string, 0, len(rows))
	for _, w := range rows {
		usernames = append(usernames, w.Username)
	}
	userByName := make(map[string]models.User, len(usernames))
	if len(usernames) > 0 {
		var users []models.User
		if err := s.DB.Where("username IN ?", usernames).Find(&users).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
		}
		for _, u := range users {
			userByName[u.Username] = u
		}
	}

	type requestView struct {
		ID              string `json:"id"`
		Username        string `json:"username"`
		Email           string `json:"email"`
		Amount          int64  `json:"amount"`
		Method          string `json:"method"`
		BankAccount     string `json:"bank_account"`
		BankAccountName string `json:"bank_account_name"`
		Timestamp       string `json:"timestamp"`
	}
	out := make([]requestView, len(rows))
	for i, w := range rows {
		u := userByName[w.Username]
		out[i] = requestView{
			ID:              w.ID,
			Username:        w.Username,
			Email:           u.Email,
			Amount:          w.Amount,
			Method:          w.Method,
			BankAccount:     u.BankAccount,
			BankAccountName: u.BankAccountName,
			Timestamp:       w.Timestamp.Format(time.RFC3339),
		}
	}
	return c.JSON(fiber.Map{"success": true, "requests": out})
}

// ReviewWithdrawal approves or rejects one pending row. Rejection refunds
// the amount to the user in the same transaction.
func (s *AdminService) ReviewWithdrawal(c *fiber.Ctx) error {
	var req struct {
		Action string `json:"action"` // approve | reject
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	if req.Action != "approve" && req.Action != "reject" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "action must be approve or reject"})
	}

	id := c.Params("id")
	var reviewed models.Withdrawal
	err := s.DB.WithContext(c.Context()).Transaction(func(tx *gorm.DB) error {
		var w models.Withdrawal
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&w, "id = ?", id).Error; err != nil {
			return err
		}
		if w.Status != models.WithdrawalStatusPending {
			return errAlreadyReviewed
		}

		now := time.Now()
		w.ProcessedAt = &now
		if req.Action == "approve" {
			w.Status = models.WithdrawalStatusCompleted
		} else {
			w.Status = models.WithdrawalStatusRejected
			if err := tx.Model(&models.User{}).Where("username = ?", w.Username).
				UpdateColumn("balance", gorm.Expr("balance + ?", w.Amount)).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Withdrawal{}).Where("id = ?", w.ID).
			Updates(map[string]interface{}{"status": w.Status, "processed_at": w.ProcessedAt}).Error; err != nil {
			return err
		}
		reviewed = w
		return nil
	})

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "withdrawal not found"})
	case errors.Is(err, errAlreadyReviewed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "message": "this request was already reviewed"})
	case err != nil:
		log.Printf("❌ withdrawal review failed for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	return c.JSON(fiber.Map{"success": true, "withdrawal": reviewed})
}

var errAlreadyReviewed = errors.New("withdrawal already reviewed")

// ListUsers returns accounts for the management table, optionally filtered
// by risk status and username/email search.
func (s *AdminService) ListUsers(c *fiber.Ctx) error {
	db := s.DB.Model(&models.User{}).Order("created_at DESC").Limit(200)

	if status := c.Query("status"); status != "" && status != "all" {
		db = db.Where("status = ?", status)
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}
	return c.JSON(fiber.Map{"success": true, "users": users})
}

// UpdateUserStatus moves an account between normal, suspicious and banned.
func (s *AdminService) UpdateUserStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.UserStatus `json:"status"`
		Reason string            `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	switch req.Status {
	case models.UserStatusNormal, models.UserStatusSuspicious, models.UserStatusBanned:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "unknown status"})
	}

	reason := req.Reason
	if req.Status == models.UserStatusNormal {
		reason = "" // lifting a flag clears its reason
	}
	res := s.DB.Model(&models.User{}).Where("username = ?", c.Params("username")).
		Updates(map[string]interface{}{"status": req.Status, "fraud_reason": reason})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "user does not exist"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "status updated"})
}

// ResetPassword sets a new password for a user.
func (s *AdminService) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	if len(req.Password) < minPasswordLen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "password must be at least 6 characters"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	res := s.DB.Model(&models.User{}).Where("username = ?", c.Params("username")).
		UpdateColumn("password", string(hash))
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "user does not exist"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "password updated"})
}

// DeleteUser removes an account (soft delete).
func (s *AdminService) DeleteUser(c *fiber.Ctx) error {
	res := s.DB.Where("username = ?", c.Params("username")).Delete(&models.User{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "user does not exist"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "user deleted"})
}
