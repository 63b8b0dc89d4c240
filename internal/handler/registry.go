package handler

import (
	"net/http"

	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/registry"
)

type RegistryHandler struct {
	registry *registry.Registry
}

func NewRegistryHandler(registry *registry.Registry) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

type policyView struct {
	registry.Policy
	MinLockDisplay     string `json:"min_lock_display"`
	MaxLockDisplay     string `json:"max_lock_display"`
	VerificationWindow string `json:"verification_window"`
}

func (h *RegistryHandler) Show(w http.ResponseWriter, r *http.Request) {
	policy := h.registry.Policy()

	panels := map[model.VerificationType]registry.Panel{}
	for _, vt := range []model.VerificationType{model.VerificationCommunityPanel, model.VerificationSingleVerifier} {
		if p, ok := h.registry.Panel(vt); ok {
			panels[vt] = p
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"burn_address":     h.registry.BurnAddress(),
		"treasury_address": h.registry.TreasuryAddress(),
		"policy": policyView{
			Policy:             policy,
			MinLockDisplay:     h.registry.FormatAmount(policy.MinLock),
			MaxLockDisplay:     h.registry.FormatAmount(policy.MaxLock),
			VerificationWindow: policy.VerificationWindow.String(),
		},
		"panels": panels,
	})
}
