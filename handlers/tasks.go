// handlers/tasks.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pvuminhtri-cloud/kiemcoinnao/services"
)

func SetupTaskRoutes(app *fiber.App, taskService *services.TaskService, auth fiber.Handler) {
	secured := app.Group("/api/tasks", auth)

	secured.Get("/", taskService.ListTasks)
	// The shortened link redirects the user back here with the callback
	// parameters; the frontend forwards them with the session token.
	secured.Get("/complete", taskService.CompleteTask)
	secured.Get("/history", taskService.TaskHistory)
	secured.Post("/:id/start", taskService.StartTask)
}
