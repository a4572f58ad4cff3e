package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/spml-provisioner/internal/dto"
	"github.com/noah-isme/spml-provisioner/internal/middleware"
	"github.com/noah-isme/spml-provisioner/internal/models"
	"github.com/noah-isme/spml-provisioner/internal/service"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
	"github.com/noah-isme/spml-provisioner/pkg/response"
)

const defaultLogLimit = 20

type provisioner interface {
	Handle(ctx context.Context, actor models.Identity, operation string, req dto.SPMLRequest, rawBody string) error
	Batch(ctx context.Context, actor models.Identity, req dto.BatchRequest) ([]service.BatchResult, error)
	History(ctx context.Context, login string, limit int) ([]models.RequestLog, error)
}

// SPMLHandler exposes the provisioning feed endpoints.
type SPMLHandler struct {
	service   provisioner
	validator *validator.Validate
}

// NewSPMLHandler builds a new handler.
func NewSPMLHandler(service provisioner, validate *validator.Validate) *SPMLHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SPMLHandler{service: service, validator: validate}
}

// Add godoc
// @Summary Provision an account
// @Tags SPML
// @Accept json
// @Produce json
// @Security BasicAuth
// @Security BearerAuth
// @Param payload body dto.SPMLRequest true "Add request"
// @Success 200 {object} response.Triple
// @Failure 401 {object} response.Triple
// @Router /spml/add [post]
func (h *SPMLHandler) Add(c *gin.Context) {
	h.single(c, dto.OperationAdd)
}

// Modify godoc
// @Summary Record a modify request
// @Tags SPML
// @Accept json
// @Produce json
// @Security BasicAuth
// @Security BearerAuth
// @Param payload body dto.SPMLRequest true "Modify request"
// @Success 200 {object} response.Triple
// @Router /spml/modify [post]
func (h *SPMLHandler) Modify(c *gin.Context) {
	h.single(c, dto.OperationModify)
}

// Delete godoc
// @Summary Record a delete request
// @Tags SPML
// @Accept json
// @Produce json
// @Security BasicAuth
// @Security BearerAuth
// @Param payload body dto.SPMLRequest true "Delete request"
// @Success 200 {object} response.Triple
// @Router /spml/delete [post]
func (h *SPMLHandler) Delete(c *gin.Context) {
	h.single(c, dto.OperationDelete)
}

// Batch godoc
// @Summary Process a batch of SPML requests in order
// @Tags SPML
// @Accept json
// @Produce json
// @Security BasicAuth
// @Security BearerAuth
// @Param payload body dto.BatchRequest true "Batch request"
// @Success 200 {object} response.Triple
// @Router /spml/batch [post]
func (h *SPMLHandler) Batch(c *gin.Context) {
	actor, ok := middleware.IdentityFrom(c)
	if !ok {
		response.SPMLError(c, "", appErrors.ErrLoginFailure)
		return
	}

	var req dto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SPML(c, response.Failure("", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload")))
		return
	}

	results, err := h.service.Batch(c.Request.Context(), actor, req)
	if err != nil {
		response.SPML(c, response.Failure(req.RequestID, err))
		return
	}

	overall := response.Success(req.RequestID)
	overall.Responses = make([]response.Triple, 0, len(results))
	for _, result := range results {
		if result.Err != nil {
			overall.Result = response.ResultFailure
			overall.Responses = append(overall.Responses, response.Failure(result.RequestID, result.Err))
			continue
		}
		overall.Responses = append(overall.Responses, response.Success(result.RequestID))
	}
	response.SPML(c, overall)
}

// Log godoc
// @Summary List logged requests for a login
// @Tags SPML
// @Produce json
// @Security BasicAuth
// @Security BearerAuth
// @Param login path string true "Login"
// @Param limit query int false "Maximum entries (1-100)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /spml/log/{login} [get]
func (h *SPMLHandler) Log(c *gin.Context) {
	var query dto.LogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	query.Login = service.Login(map[string]string{service.AttrLogin: c.Param("login")})
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultLogLimit
	}

	entries, err := h.service.History(c.Request.Context(), query.Login, query.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"login": query.Login, "limit": query.Limit})
}

func (h *SPMLHandler) single(c *gin.Context, operation string) {
	actor, ok := middleware.IdentityFrom(c)
	if !ok {
		response.SPMLError(c, "", appErrors.ErrLoginFailure)
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		response.SPML(c, response.Failure("", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable body")))
		return
	}
	var req dto.SPMLRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		response.SPML(c, response.Failure("", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+operation+" payload")))
		return
	}

	if err := h.service.Handle(c.Request.Context(), actor, operation, req, string(raw)); err != nil {
		if appErrors.Is(err, appErrors.ErrSPMLInternal) {
			response.SPMLError(c, req.RequestID, err)
			return
		}
		response.SPML(c, response.Failure(req.RequestID, err))
		return
	}
	response.SPML(c, response.Success(req.RequestID))
}
