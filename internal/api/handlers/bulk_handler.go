package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/postpilot/postpilot/internal/queue"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/postpilot/postpilot/internal/transfer"
)

type BulkHandler struct {
	s           service.BulkService
	AsynqClient *asynq.Client
}

func NewBulkHandler(service service.BulkService, asynqClient *asynq.Client) *BulkHandler {
	return &BulkHandler{s: service, AsynqClient: asynqClient}
}

// ImportPosts accepts a parsed spreadsheet of rows and schedules them as one
// batch. Validation failures come back as a 200 with success=false and the
// per-row error list; the batch persists nothing in that case.
func (h *BulkHandler) ImportPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.BulkImportRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	result, err := h.s.ImportPosts(c.Context(), userID, &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.enqueueImmediate(result)

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *BulkHandler) GenerateFromTemplate(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.BulkGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	result, err := h.s.GenerateFromTemplate(c.Context(), userID, &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.enqueueImmediate(result)

	return c.Status(fiber.StatusOK).JSON(result)
}

// enqueueImmediate pushes unscheduled batch posts straight onto the queue.
// Scheduled ones are left for the due-posts sweep so their claim semantics
// hold. Every id in the list was persisted even when sibling rows failed,
// and the sweep cannot see posts without a scheduled time, so these are
// dispatched regardless of the batch outcome.
func (h *BulkHandler) enqueueImmediate(result *transfer.BulkScheduleResult) {
	if result == nil {
		return
	}
	for _, postID := range result.ImmediatePostIDs {
		err := queue.EnqueuePost(h.AsynqClient, queue.PublishPostPayload{PostID: postID}, 0)
		if err != nil {
			slog.Error("error enqueueing bulk post", "post_id", postID, "error", err.Error())
		}
	}
}
