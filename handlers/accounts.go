// handlers/accounts.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pvuminhtri-cloud/kiemcoinnao/services"
)

func SetupAccountRoutes(
	app *fiber.App,
	userService *services.UserService,
	referralService *services.ReferralService,
	withdrawService *services.WithdrawService,
	auth fiber.Handler,
) {
	// 🔓 Public routes
	app.Post("/api/auth/register", userService.Register)
	app.Post("/api/auth/login", userService.Login)
	app.Get("/api/auth/verify", userService.VerifyToken)
	app.Get("/api/referrals/validate/:code", referralService.Validate)

	// 🔐 Secured routes
	users := app.Group("/api/users", auth)
	users.Get("/:username", userService.GetProfile)
	users.Put("/:username", userService.UpdateProfile)
	users.Post("/:username/avatar", userService.UploadAvatar)

	referrals := app.Group("/api/referrals", auth)
	referrals.Get("/stats", referralService.Stats)
	referrals.Get("/list", referralService.List)

	withdrawals := app.Group("/api/withdrawals", auth)
	withdrawals.Post("/", withdrawService.Request)
	withdrawals.Get("/", withdrawService.History)
}
