package controllers

import (
	"errors"

	"Backend-Volunteer-Hours/src/apperror"
	"Backend-Volunteer-Hours/src/models"
	hourrecords "Backend-Volunteer-Hours/src/services/hour-records"
	"Backend-Volunteer-Hours/src/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HourRecordResponse is the envelope of every /app/hour endpoint. Business
// failures are reported in Code with HTTP status 200.
type HourRecordResponse = models.APIResponse[models.HourRecord]

type HourRecordController struct {
	svc      *hourrecords.Service
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHourRecordController(svc *hourrecords.Service) *HourRecordController {
	return &HourRecordController{
		svc:      svc,
		validate: validator.New(),
		logger:   zap.L().Named("controllers.hour"),
	}
}

func actorFrom(c *fiber.Ctx) hourrecords.Actor {
	userID, _ := c.Locals("userId").(string)
	legalName, _ := c.Locals("legalName").(string)
	role, _ := c.Locals("role").(string)
	return hourrecords.Actor{UserID: userID, LegalName: legalName, Role: role}
}

// SignRecord opens or closes a volunteer session
// @Summary Check a volunteer in or out
// @Description type=1 opens a session at startTime, type=2 closes session id at endTime
// @Tags HourRecords
// @Accept x-www-form-urlencoded
// @Produce json
// @Param request formData models.SignRecordRequest true "Sign record form"
// @Success 200 {object} models.APIResponse[models.HourRecord]
// @Failure 401 {object} models.ErrorResponse
// @Router /app/hour/signRecord [post]
// @Security BearerAuth
func (h *HourRecordController) SignRecord(c *fiber.Ctx) error {
	var req models.SignRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return h.respondError(c, apperror.Wrap(err, apperror.KindParameter, "Invalid form body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.respondError(c, apperror.Wrap(err, apperror.KindParameter, err.Error()))
	}

	rec, err := h.svc.Sign(c.Context(), actorFrom(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(HourRecordResponse{Code: models.CodeSuccess, Msg: "OK", Data: rec})
}

// LastRecordList returns the newest record of a volunteer
// @Summary Latest session of a volunteer
// @Tags HourRecords
// @Produce json
// @Param userId query string true "Volunteer id"
// @Success 200 {object} models.APIResponse[models.HourRecord]
// @Router /app/hour/lastRecordList [get]
// @Security BearerAuth
func (h *HourRecordController) LastRecordList(c *fiber.Ctx) error {
	rec, err := h.svc.Latest(c.Context(), actorFrom(c), c.Query("userId"))
	if err != nil {
		return h.respondError(c, err)
	}
	msg := "OK"
	if rec == nil {
		msg = "no record"
	}
	return c.JSON(HourRecordResponse{Code: models.CodeSuccess, Msg: msg, Data: rec})
}

// RecordList lists sessions newest first
// @Summary List sessions
// @Tags HourRecords
// @Produce json
// @Param userId query string false "Volunteer id"
// @Param openOnly query bool false "Only sessions not checked out yet"
// @Param page query int false "Page, 1-based" default(1)
// @Param limit query int false "Rows per page" default(50)
// @Success 200 {object} models.APIResponse[models.HourRecord]
// @Router /app/hour/recordList [get]
// @Security BearerAuth
func (h *HourRecordController) RecordList(c *fiber.Ctx) error {
	var filters models.HourRecordFilters
	page := models.DefaultPagination()
	if err := c.QueryParser(&filters); err != nil {
		return h.respondError(c, apperror.Wrap(err, apperror.KindParameter, "Invalid query parameters"))
	}
	if err := c.QueryParser(&page); err != nil {
		return h.respondError(c, apperror.Wrap(err, apperror.KindParameter, "Invalid query parameters"))
	}

	rows, total, err := h.svc.List(c.Context(), actorFrom(c), filters, page)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(HourRecordResponse{Code: models.CodeSuccess, Msg: "OK", Total: total, Rows: rows})
}

func (h *HourRecordController) respondError(c *fiber.Ctx, err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("hour record request failed", zap.String("path", c.Path()), zap.Error(err))
		return utils.HandleError(c, fiber.StatusInternalServerError, err.Error())
	}

	code := appErr.Code
	if appErr.Kind != apperror.KindRemoteRejection || code == 0 {
		code = utils.StatusForKind(appErr.Kind)
	}
	h.logger.Info("hour record request refused",
		zap.String("path", c.Path()),
		zap.String("kind", string(appErr.Kind)),
		zap.Int("code", code),
		zap.String("msg", appErr.Message),
	)
	return c.JSON(HourRecordResponse{Code: code, Msg: appErr.Message})
}
