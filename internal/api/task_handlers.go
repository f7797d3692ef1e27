package api

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/lco77/netops-portal/internal/models"
	"github.com/lco77/netops-portal/internal/tasks"
)

// @Summary Submit task
// @Description Queues an asynchronous job and returns its id immediately. Supported types: "hello" (echoes data) and "sh_int_desc" (runs "show interface description" on data.ip_address with the caller's credentials; requires a device role).
// @Tags Tasks
// @Accept json
// @Produce json
// @Param request body models.TaskRequest true "Task type and data"
// @Success 202 {object} models.TaskAcceptedResponse
// @Failure 400 {object} models.ErrorResponse "Missing type/data or unsupported task type"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 500 {object} models.ErrorResponse "Queue unavailable"
// @Router /api/task [post]
func (h *Handlers) CreateTaskHandler(c *gin.Context) {
	sess := currentSession(c)

	var req models.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateTask failed for user '%s': Invalid request body: %v", sess.Username, err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	id, err := h.deps.Tasks.Submit(c.Request.Context(), req.Type, req.Data, tasks.Caller{
		Username:       sess.Username,
		SealedPassword: sess.SealedPassword,
		Roles:          sess.Roles,
	})
	if err != nil {
		writeTaskError(c, sess.Username, err)
		return
	}

	c.JSON(http.StatusAccepted, models.TaskAcceptedResponse{TaskID: id})
}

// @Summary Task status
// @Description Returns the state of a job. Unknown or expired ids report PENDING. "result" is set only when the job succeeded.
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} models.TaskStatusResponse
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 500 {object} models.ErrorResponse "Result store unavailable"
// @Router /api/task/{id} [get]
func (h *Handlers) TaskStatusHandler(c *gin.Context) {
	id := c.Param("id")
	st, err := h.deps.Tasks.Status(c.Request.Context(), id)
	if err != nil {
		log.Errorf("TaskStatus for '%s' failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to read task status"})
		return
	}
	c.JSON(http.StatusOK, st)
}
