package handler

import (
	"net/http"
	"time"

	"github.com/templui/bullseye/internal/apperr"
	"github.com/templui/bullseye/internal/ctxkeys"
	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/registry"
	"github.com/templui/bullseye/internal/service"
)

const maxClaimTimeout = 2 * time.Minute

type GoalHandler struct {
	goalService *service.GoalService
}

func NewGoalHandler(goalService *service.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

type createGoalRequest struct {
	model.GoalSpec
	// Amount is an alternative to locked_amount, in whole units ("1.5").
	Amount string `json:"amount,omitempty"`
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	spec := req.GoalSpec
	if req.Amount != "" && spec.LockedAmount == 0 {
		amount, err := registry.ParseAmount(req.Amount, h.goalService.Registry().Policy().Decimals)
		if err != nil {
			writeError(w, r, apperr.With(service.ErrInvalidAmount, "%s", err.Error()))
			return
		}
		spec.LockedAmount = amount
	}

	goal, err := h.goalService.RequestGoal(r.Context(), ctxkeys.Identity(r.Context()), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goalService.Goals(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if goals == nil {
		goals = []*model.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) Show(w http.ResponseWriter, r *http.Request) {
	goal, err := h.goalService.Goal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Verification(w http.ResponseWriter, r *http.Request) {
	v, err := h.goalService.Verification(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *GoalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	goal, links, err := h.goalService.SubmitForVerification(r.Context(), r.PathValue("id"), ctxkeys.Identity(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"goal":       goal,
		"vote_links": links,
	})
}

type voteRequest struct {
	Choice model.VoteChoice `json:"choice"`
}

func (h *GoalHandler) Vote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	identity := ctxkeys.Identity(r.Context())
	// Vote links name the verifier they were sent to; the token must match it.
	if hint := r.URL.Query().Get("verifier"); hint != "" && identity != "" && hint != identity {
		writeError(w, r, apperr.With(service.ErrUnauthorizedVerifier, "this vote link belongs to %s", hint))
		return
	}

	outcome, err := h.goalService.Vote(r.Context(), r.PathValue("id"), identity, req.Choice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type claimRequest struct {
	Timeout string `json:"timeout,omitempty"`
}

func (h *GoalHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var timeout time.Duration
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 || d > maxClaimTimeout {
			writeError(w, r, apperr.Newf(apperr.KindValidation, apperr.CodeInvalidRequest,
				"timeout must be a duration between 0 and %s", maxClaimTimeout))
			return
		}
		timeout = d
	}

	receipt, err := h.goalService.Claim(r.Context(), r.PathValue("id"), ctxkeys.Identity(r.Context()), timeout)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *GoalHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.goalService.Stats(r.Context(), r.PathValue("owner"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
