// services/task_service.go
package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/pvuminhtri-cloud/kiemcoinnao/middleware"
	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
	"github.com/pvuminhtri-cloud/kiemcoinnao/tasks"
)

// TaskService exposes the task flow over HTTP: listing tasks with remaining
// turns, starting an attempt, consuming the return callback, and history.
type TaskService struct {
	DB       *gorm.DB
	Catalog  *tasks.Catalog
	Tracker  *tasks.Tracker
	Issuer   *tasks.Issuer
	Verifier *tasks.Verifier
	Pending  tasks.PendingStore
}

func NewTaskService(db *gorm.DB, catalog *tasks.Catalog, shortener tasks.Shortener, appURL string) *TaskService {
	tracker := &tasks.Tracker{Accounts: &tasks.GormAccounts{DB: db}}
	pending := &tasks.GormPendingStore{DB: db}
	settler := &tasks.GormSettler{DB: db}

	return &TaskService{
		DB:      db,
		Catalog: catalog,
		Tracker: tracker,
		Pending: pending,
		Issuer: &tasks.Issuer{
			Catalog:   catalog,
			Tracker:   tracker,
			Pending:   pending,
			Shortener: shortener,
			AppURL:    appURL,
		},
		Verifier: &tasks.Verifier{
			Catalog: catalog,
			Tracker: tracker,
			Pending: pending,
			Settler: settler,
		},
	}
}

func (s *TaskService) currentUser(c *fiber.Ctx) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(c.Context()).
		First(&user, "username = ?", middleware.Username(c)).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListTasks returns the tasks the user can still do today, with turn counts
// and the live pending attempt if one exists. Exhausted tasks are omitted,
// mirroring the hidden card on the dashboard.
func (s *TaskService) ListTasks(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "account not found"})
	}

	rec, err := s.Pending.Get(c.Context(), user.Username)
	if err != nil {
		log.Printf("❌ pending lookup failed for %s: %v", user.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	type taskView struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Reward         int64  `json:"reward"`
		MaxTurns       int    `json:"max_turns"`
		TurnsRemaining int    `json:"turns_remaining"`
		ShortURL       string `json:"short_url,omitempty"`
		ExpiresAt      string `json:"expires_at,omitempty"`
	}

	views := make([]taskView, 0, len(s.Catalog.All()))
	for _, def := range s.Catalog.All() {
		remaining, err := s.Tracker.RemainingTurns(c.Context(), user, def.ID, def.MaxTurns)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
		}
		if remaining <= 0 {
			continue
		}
		v := taskView{
			ID:             def.ID,
			Name:           def.Name,
			Reward:         def.Reward,
			MaxTurns:       def.MaxTurns,
			TurnsRemaining: remaining,
		}
		if rec != nil && rec.TaskID == def.ID {
			v.ShortURL = rec.ShortURL
			v.ExpiresAt = rec.Timestamp.Add(tasks.PendingTTL).Format(time.RFC3339)
		}
		views = append(views, v)
	}

	return c.JSON(fiber.Map{"success": true, "tasks": views})
}

// StartTask issues a shortlink attempt for the task.
func (s *TaskService) StartTask(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "account not found"})
	}

	rec, err := s.Issuer.Issue(c.Context(), user, c.Params("id"))
	switch {
	case errors.Is(err, tasks.ErrUnknownTask):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "task does not exist"})
	case errors.Is(err, tasks.ErrNoTurnsLeft):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "you have no turns left for this task today"})
	case err != nil:
		log.Printf("❌ issue failed for %s task %s: %v", user.Username, c.Params("id"), err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"success": false, "message": "could not shorten the task link, please try again"})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"task_id":    rec.TaskID,
		"task_name":  rec.TaskName,
		"short_url":  rec.ShortURL,
		"expires_at": rec.Timestamp.Add(tasks.PendingTTL).Format(time.RFC3339),
	})
}

// CompleteTask consumes the return-redirect callback parameters.
func (s *TaskService) CompleteTask(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "account not found"})
	}

	cb := tasks.Callback{
		Status: c.Query("status"),
		Reward: c.Query("reward"),
		Task:   c.Query("task"),
		TaskID: c.Query("taskId"),
		Key:    c.Query("key"),
	}

	res, err := s.Verifier.Verify(c.Context(), user, cb)
	if err != nil {
		log.Printf("❌ verification failed for %s: %v", user.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error, please try again"})
	}

	switch res.Outcome {
	case tasks.OutcomeVerified:
		return c.JSON(fiber.Map{
			"success":         true,
			"message":         "task completed",
			"task_name":       res.TaskName,
			"reward":          res.Reward,
			"balance":         res.Balance,
			"turns_remaining": res.TurnsRemaining,
		})
	case tasks.OutcomeRejected:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false, "message": "invalid or expired verification",
		})
	case tasks.OutcomeReplayed:
		return c.JSON(fiber.Map{
			"success": false, "message": "this completion was already credited",
		})
	case tasks.OutcomeQuotaExhausted:
		return c.JSON(fiber.Map{
			"success": false, "message": "daily limit for this task was already reached",
		})
	default: // OutcomeIgnored
		return c.JSON(fiber.Map{"success": true, "message": "nothing to verify"})
	}
}

// TaskHistory returns the user's attempts, newest first, 10 per page.
func (s *TaskService) TaskHistory(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	const perPage = 10

	username := middleware.Username(c)
	var total int64
	if err := s.DB.Model(&models.TaskHistory{}).Where("username = ?", username).Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "server error"})
	}

	var rows []models.TaskHistory
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
