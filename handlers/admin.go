// handlers/admin.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pvuminhtri-cloud/kiemcoinnao/middleware"
	"github.com/pvuminhtri-cloud/kiemcoinnao/services"
)

func SetupAdminRoutes(app *fiber.App, adminService *services.AdminService, auth fiber.Handler) {
	admin := app.Group("/api/admin", auth, middleware.AdminRequired())

	admin.Get("/stats", adminService.DashboardStats)

	admin.Get("/withdrawals", adminService.PendingWithdrawals)
	admin.Post("/withdrawals/:id", adminService.ReviewWithdrawal)

	admin.Get("/users", adminService.ListUsers)
	admin.Patch("/users/:username/status", adminService.UpdateUserStatus)
	admin.Patch("/users/:username/password", adminService.ResetPassword)
	admin.Delete("/users/:username", adminService.DeleteUser)
}
