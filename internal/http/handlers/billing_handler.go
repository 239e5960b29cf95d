package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/internal/middleware"
	"github.com/Dhoini/seatsync/internal/service"
	"github.com/Dhoini/seatsync/pkg/logger"
	"github.com/Dhoini/seatsync/pkg/req"
	"github.com/Dhoini/seatsync/pkg/res"
)

// BillingReader serves billing views for a member of an organization.
type BillingReader interface {
	Summary(ctx context.Context, orgID, userID string) (*service.BillingSummary, error)
	InvitationEligibility(ctx context.Context, orgID, userID string) (*service.InvitationEligibility, error)
}

type BillingHandler struct {
	service BillingReader
	log     *logger.Logger
}

func NewBillingHandler(service BillingReader, log *logger.Logger) *BillingHandler {
	return &BillingHandler{service: service, log: log}
}

type organizationParams struct {
	OrganizationID string `uri:"organization_id" validate:"required,uuid"`
}

// GetBilling handles GET /organizations/:organization_id/billing
func (h *BillingHandler) GetBilling(c *gin.Context) {
	params, ok := h.bindOrganization(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), params.OrganizationID, middleware.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	res.JsonResponse(c.Writer, summary, http.StatusOK)
}

// GetInvitationEligibility handles GET /organizations/:organization_id/invitations/eligibility
func (h *BillingHandler) GetInvitationEligibility(c *gin.Context) {
	params, ok := h.bindOrganization(c)
	if !ok {
		return
	}
	eligibility, err := h.service.InvitationEligibility(c.Request.Context(), params.OrganizationID, middleware.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	res.JsonResponse(c.Writer, eligibility, http.StatusOK)
}

func (h *BillingHandler) bindOrganization(c *gin.Context) (*organizationParams, bool) {
	params, err := req.BindURI[organizationParams](c)
	if err != nil {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error:   "Invalid organization id",
			Details: req.ValidationDetails(err),
		}, http.StatusBadRequest, h.log)
		return nil, false
	}
	return params, true
}

func (h *BillingHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Not a member of this organization"}, http.StatusForbidden, h.log)
	case errors.Is(err, domain.ErrOrganizationNotFound):
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Organization not found"}, http.StatusNotFound, h.log)
	default:
		h.log.Errorw("Billing request failed", "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Internal server error"}, http.StatusInternalServerError, h.log)
	}
}
