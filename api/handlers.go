/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"remedyops.dev/remedy/enrichment"
	"remedyops.dev/remedy/executor"
	"remedyops.dev/remedy/remediation"
)

// Handler serves the remediation API.
type Handler struct {
	store   enrichment.Store
	exec    executor.Executor
	targets remediation.TargetSource
	enabled bool
	now     func() time.Time
}

// Option customizes the Handler.
type Option func(*Handler)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler constructs a Handler. When enabled is false every trigger is
// rejected with 403 but status queries still work.
func NewHandler(store enrichment.Store, exec executor.Executor, targets remediation.TargetSource, enabled bool, opts ...Option) *Handler {
	h := &Handler{
		store:   store,
		exec:    exec,
		targets: targets,
		enabled: enabled,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register wires the handler's routes onto an echo instance.
func (h *Handler) Register(e *echo.Echo) {
	v1 := e.Group("/api/v1")
	v1.POST("/remediations", h.trigger)
	v1.GET("/remediations/:target", h.status)
}

type triggerRequest struct {
	AlertID    string `json:"alert_id"`
	IncidentID string `json:"incident_id"`
}

// reference extracts the single target reference from the request.
func (r *triggerRequest) reference() (remediation.TargetType, string, error) {
	switch {
	case r.AlertID != "" && r.IncidentID != "":
		return "", "", &remediation.ValidationError{Reason: "provide exactly one of alert_id or incident_id"}
	case r.AlertID != "":
		return remediation.TargetTypeAlert, r.AlertID, nil
	case r.IncidentID != "":
		return remediation.TargetTypeIncident, r.IncidentID, nil
	default:
		return "", "", &remediation.ValidationError{Reason: "provide exactly one of alert_id or incident_id"}
	}
}

// Submission responses report "enqueued" for a freshly admitted job and
// "processing" when an earlier run is still in flight; the record itself
// tracks the pending/processing/success/failed lifecycle.
type triggerResponse struct {
	JobID    string `json:"job_id"`
	TargetID string `json:"target_id"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

func (h *Handler) trigger(c echo.Context) error {
	ctx := c.Request().Context()
	log := clog.FromContext(ctx)

	if !h.enabled {
		return echo.NewHTTPError(http.StatusForbidden, remediation.ErrFeatureDisabled.Error())
	}

	var req triggerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	typ, targetID, err := req.reference()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, err := h.targets.Target(ctx, typ, targetID); err != nil {
		if errors.Is(err, remediation.ErrTargetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, string(typ)+" not found")
		}
		log.Errorf("Looking up %s %s: %v", typ, targetID, err)
		return echo.NewHTTPError(http.StatusBadGateway, "looking up target")
	}

	job := remediation.Job{ID: uuid.NewString(), TargetType: typ, TargetID: targetID}
	adm, err := h.store.Admit(ctx, job, h.now())
	if err != nil {
		log.Errorf("Admitting job for %s %s: %v", typ, targetID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "admitting remediation job")
	}

	if !adm.Created {
		// A run is already in flight; report it rather than starting another.
		admissionsTotal.WithLabelValues("duplicate").Inc()
		return c.JSON(http.StatusAccepted, triggerResponse{
			JobID:    adm.Job.ID,
			TargetID: targetID,
			Status:   "processing",
			Message:  "remediation already in progress",
		})
	}

	if err := h.exec.Enqueue(ctx, job); err != nil {
		log.Errorf("Enqueuing job %s: %v", job.ID, err)
		// Best effort: leave a terminal record so the target can be
		// re-triggered instead of sticking at pending forever.
		if ferr := h.store.Fail(ctx, job, "enqueuing remediation job: "+err.Error(), h.now()); ferr != nil {
			log.Errorf("Failing job %s after enqueue error: %v", job.ID, ferr)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "enqueuing remediation job")
	}

	admissionsTotal.WithLabelValues("admitted").Inc()
	log.Infof("Admitted remediation job %s for %s %s", job.ID, typ, targetID)
	return c.JSON(http.StatusAccepted, triggerResponse{
		JobID:    job.ID,
		TargetID: targetID,
		Status:   "enqueued",
	})
}

func (h *Handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	rec, err := h.store.Get(ctx, c.Param("target"))
	if err != nil {
		if errors.Is(err, remediation.ErrTargetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no remediation for target")
		}
		clog.FromContext(ctx).Errorf("Reading record for %s: %v", c.Param("target"), err)
		return echo.NewHTTPError(http.StatusInternalServerError, "reading remediation record")
	}
	return c.JSON(http.StatusOK, rec)
}
