// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
	"github.com/pvuminhtri-cloud/kiemcoinnao/tasks"
)

// SweepService runs the periodic maintenance jobs: clearing expired pending
// attempts (readers already lazy-expire them, the sweep just keeps the table
// small) and flagging accounts that share an IP or bank account.
type SweepService struct {
	DB *gorm.DB
}

func NewSweepService(db *gorm.DB) *SweepService {
	return &SweepService{DB: db}
}

func (s *SweepService) StartSweeps() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.sweepExpiredPending),
	)

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(s.sweepAnomalies),
	)
}

func (s *SweepService) sweepExpiredPending() {
	cutoff := time.Now().Add(-tasks.PendingTTL)
	res := s.DB.Where("timestamp <= ?", cutoff).Delete(&models.PendingTask{})
	if res.Error != nil {
		log.Printf("[Sweep] failed to delete expired pending tasks: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("✅ Swept %d expired pending task(s)", res.RowsAffected)
	}
}

// sweepAnomalies marks normal accounts as suspicious when they share a last
// IP or a bank account with another live account. Banned accounts are left
// out of both the counting and the flagging.
func (s *SweepService) sweepAnomalies() {
	var users []models.User
	if err := s.DB.Where("status <> ?", models.UserStatusBanned).Find(&users).Error; err != nil {
		log.Printf("[Sweep] failed to load users for anomaly check: %v", err)
		return
	}

	ipCounts := make(map[string]int)
	bankCounts := make(map[string]int)
	for _, u := range users {
		if u.LastIP != "" && u.LastIP != "N/A" {
			ipCounts[u.LastIP]++
		}
		if u.BankAccount != "" {
			bankCounts[u.BankAccount]++
		}
	}

	flagged := 0
	for _, u := range users {
		if u.Status != models.UserStatusNormal {
			continue
		}
		var reason string
		switch {
		case u.LastIP != "" && u.LastIP != "N/A" && ipCounts[u.LastIP] > 1:
			reason = "duplicate IP"
		case u.BankAccount != "" && bankCounts[u.BankAccount] > 1:
			reason = "duplicate bank account"
		default:
			continue
		}

		err := s.DB.Model(&models.User{}).Where("username = ?", u.Username).
			Updates(map[string]interface{}{
				"status":       models.UserStatusSuspicious,
				"fraud_reason": reason,
			}).Error
		if err != nil {
			log.Printf("[Sweep] failed to flag user %s: %v", u.Username, err)
			continue
		}
		flagged++
	}
	if flagged > 0 {
		log.Printf("⚠️ Anomaly sweep flagged %d account(s) as suspicious", flagged)
	}
}
