// services/user_service.go
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pvuminhtri-cloud/kiemcoinnao/middleware"
	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
	"github.com/pvuminhtri-cloud/kiemcoinnao/utils"
)

const bcryptCost = 10
const minPasswordLen = 6

// UserService owns registration, login and profile management.
type UserService struct {
	DB        *gorm.DB
	JWTSecret string
}

func NewUserService(db *gorm.DB, jwtSecret string) *UserService {
	return &UserService{DB: db, JWTSecret: jwtSecret}
}

const referralCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newReferralCode() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = referralCodeChars[int(b)%len(referralCodeChars)]
	}
	return string(buf)
}

// Register creates an account. Username/email/phone are unique across all
// accounts; a valid referral code links the new user to their referrer.
func (s *UserService) Register(c *fiber.Ctx) error {
	var req struct {
		Username     string `json:"username"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
		Password     string `json:"password"`
		IP           string `json:"ip"`
		ReferralCode string `json:"referralCode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "username and password are required"})
	}
	if len(req.Password) < minPasswordLen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "password must be at least 6 characters"})
	}

	var count int64
	err := s.DB.Model(&models.User{}).
		Where("username = ? OR (email <> '' AND email = ?) OR (phone <> '' AND phone = ?)",
			req.Username, req.Email, req.Phone).
		Count(&count).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}
	if count > 0 {
		return c.JSON(fiber.Map{"success": false, "message": "username, email or phone already registered"})
	}

	var referrer *models.User
	if req.ReferralCode != "" {
		var ref models.User
		err := s.DB.First(&ref, "referral_code = ?", req.ReferralCode).Error
		if err == nil {
			if ref.Username == req.Username {
				return c.JSON(fiber.Map{"success": false, "message": "you cannot refer yourself"})
			}
			referrer = &ref
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
		}
	}

	// retry until the generated code is free
	code := newReferralCode()
	for {
		var n int64
		if err := s.DB.Model(&models.User{}).Where("referral_code = ?", code).Count(&n).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
		}
		if n == 0 {
			break
		}
		code = newReferralCode()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     string(hash),
		LastIP:       req.IP,
		ReferralCode: code,
		DailyTasks:   models.DailyCounts{},
		Status:       models.UserStatusNormal,
	}
	if referrer != nil {
		user.ReferredBy = &referrer.Username
	}

	if err := s.DB.Create(&user).Error; err != nil {
		log.Printf("❌ DB error creating user %s: %v", req.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	if referrer != nil {
		if err := s.DB.Model(&models.User{}).Where("username = ?", referrer.Username).
			UpdateColumn("total_referrals", gorm.Expr("total_referrals + 1")).Error; err != nil {
			log.Printf("⚠️ failed to bump referral count for %s: %v", referrer.Username, err)
		}
	}

	return c.JSON(fiber.Map{"success": true, "message": "registration successful"})
}

// Login authenticates by username, email or phone.
func (s *UserService) Login(c *fiber.Ctx) error {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
		IP         string `json:"ip"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	if req.Identifier == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "please enter your account and password"})
	}

	var user models.User
	err := s.DB.
		Where("username = ? OR (email <> '' AND email = ?) OR (phone <> '' AND phone = ?)",
			req.Identifier, req.Identifier, req.Identifier).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": false, "message": "incorrect account or password"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return c.JSON(fiber.Map{"success": false, "message": "incorrect account or password"})
	}
	if user.Status == models.UserStatusBanned {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "this account has been locked"})
	}

	if req.IP != "" {
		if err := s.DB.Model(&user).UpdateColumn("last_ip", req.IP).Error; err != nil {
			log.Printf("⚠️ failed to record last IP for %s: %v", user.Username, err)
		}
	}

	token, err := middleware.GenerateToken(&user, s.JWTSecret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
		"isAdmin": user.IsAdmin,
	})
}

// VerifyToken lets the client check whether its stored token is still good.
func (s *UserService) VerifyToken(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if header == "" {
		return c.JSON(fiber.Map{"success": false, "message": "no token"})
	}
	claims, err := middleware.ParseToken(strings.TrimPrefix(header, "Bearer "), s.JWTSecret)
	if err != nil {
		return c.JSON(fiber.Map{"success": false, "message": "token invalid or expired"})
	}
	return c.JSON(fiber.Map{"success": true, "user": fiber.Map{
		"id":       claims.UserID,
		"username": claims.Username,
		"isAdmin":  claims.IsAdmin,
	}})
}

func (s *UserService) canAccess(c *fiber.Ctx, username string) bool {
	return middleware.Username(c) == username || middleware.IsAdmin(c)
}

// GetProfile returns a user record. Users may only read themselves.
func (s *UserService) GetProfile(c *fiber.Ctx) error {
	username := c.Params("username")
	if !s.canAccess(c, username) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "you cannot view another user's profile"})
	}

	var user models.User
	if err := s.DB.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "user does not exist"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

// UpdateProfile changes the allowlisted profile fields. Email and phone are
// immutable after registration; a username rename re-issues the token.
func (s *UserService) UpdateProfile(c *fiber.Ctx) error {
	current := c.Params("username")
	if !s.canAccess(c, current) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "you cannot update another user's profile"})
	}

	var user models.User
	if err := s.DB.First(&user, "username = ?", current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "user does not exist"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	var req struct {
		Username        *string `json:"username"`
		BankName        *string `json:"bank_name"`
		BankAccount     *string `json:"bank_account"`
		BankAccountName *string `json:"bank_account_name"`
		ProfilePicture  *string `json:"profile_picture"`
		Password        *string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}

	renamed := false
	if req.Username != nil && *req.Username != current {
		newName := strings.TrimSpace(*req.Username)
		if newName == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "username cannot be empty"})
		}
		var n int64
		if err := s.DB.Model(&models.User{}).Where("username = ?", newName).Count(&n).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
		}
		if n > 0 {
			return c.JSON(fiber.Map{"success": false, "message": "the new username is already taken"})
		}
		user.Username = newName
		renamed = true
	}
	if req.BankName != nil {
		user.BankName = *req.BankName
	}
	if req.BankAccount != nil {
		user.BankAccount = *req.BankAccount
	}
	if req.BankAccountName != nil {
		user.BankAccountName = *req.BankAccountName
	}
	if req.ProfilePicture != nil {
		user.ProfilePicture = *req.ProfilePicture
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLen {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "password must be at least 6 characters"})
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcryptCost)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
		}
		user.Password = string(hash)
	}

	if err := s.DB.Save(&user).Error; err != nil {
		log.Printf("❌ DB error updating user %s: %v", current, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	resp := fiber.Map{"success": true, "message": "profile updated"}
	if renamed {
		token, err := middleware.GenerateToken(&user, s.JWTSecret)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
		}
		resp["token"] = token
		resp["newUsername"] = user.Username
	}
	return c.JSON(resp)
}

// UploadAvatar stores a profile picture in object storage and records its
// public URL on the account.
func (s *UserService) UploadAvatar(c *fiber.Ctx) error {
	username := c.Params("username")
	if !s.canAccess(c, username) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "you cannot update another user's profile"})
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "avatar file is required"})
	}

	key := fmt.Sprintf("avatars/%s%s", uuid.NewString(), filepath.Ext(fileHeader.Filename))
	publicURL, err := utils.UploadFileToR2(fileHeader, key)
	if err != nil {
		log.Printf("❌ avatar upload failed for %s: %v", username, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"success": false, "message": "could not store the picture, please try again"})
	}

	if err := s.DB.Model(&models.User{}).Where("username = ?", username).
		UpdateColumn("profile_picture", publicURL).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	return c.JSON(fiber.Map{"success": true, "profile_picture": publicURL})
}
