package controllers

import (
	"net/http"

	"go-bnpl/models"
	"go-bnpl/services"

	"go.uber.org/zap"
)

// PlanController manages the BNPL plans
type PlanController struct {
	Plans *services.PlanService
	Log   *zap.Logger
}

func NewPlanController(plans *services.PlanService, log *zap.Logger) *PlanController {
	return &PlanController{Plans: plans, Log: log}
}

func (pc *PlanController) list(w http.ResponseWriter, r *http.Request, publishedOnly bool) {
	ctx, cancel := requestContext(r)
	defer cancel()
	plans, err := pc.Plans.List(ctx, publishedOnly)
	if err != nil {
		writeError(w, pc.Log, err, "Error fetching plans")
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// GetPublishedPlans lists the plans offered at checkout
func (pc *PlanController) GetPublishedPlans(w http.ResponseWriter, r *http.Request) {
	pc.list(w, r, true)
}

// GetPlans lists every plan, drafts included (Admin only)
func (pc *PlanController) GetPlans(w http.ResponseWriter, r *http.Request) {
	pc.list(w, r, false)
}

// CreatePlan handles adding a plan (Admin only)
func (pc *PlanController) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var plan models.BNPLPlan
	if !decodeJSON(w, r, &plan) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	created, err := pc.Plans.Create(ctx, plan)
	if err != nil {
		writeError(w, pc.Log, err, "Error creating plan")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdatePlan replaces a plan's terms (Admin only)
func (pc *PlanController) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id", "plan")
	if !ok {
		return
	}
	var plan models.BNPLPlan
	if !decodeJSON(w, r, &plan) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	updated, err := pc.Plans.Update(ctx, id, plan)
	if err != nil {
		writeError(w, pc.Log, err, "Error updating plan")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeletePlan handles deleting a plan (Admin only)
func (pc *PlanController) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id", "plan")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Plans.Delete(ctx, id); err != nil {
		writeError(w, pc.Log, err, "Error deleting plan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
