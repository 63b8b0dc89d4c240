package handler

import (
	"net/http"
	"strconv"

	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/service"
)

type FeedHandler struct {
	eventService *service.EventService
}

func NewFeedHandler(eventService *service.EventService) *FeedHandler {
	return &FeedHandler{eventService: eventService}
}

// Feed lists goal events newest first. Pass the last id seen as ?before= to page.
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.eventService.Events(limit, r.URL.Query().Get("before"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
