package handlers

import (
	"net/http"
	"sort"
	"time"

	"apphost-ota/internal/crypto"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type UpdateItem struct {
	UpdateUUID string `json:"updateUUID"`
	UpdateId   string `json:"updateId"`
	CreatedAt  string `json:"createdAt"`
}

// Operator listing API, gated by the upload-key middleware.

func (s *Server) GetChannelsHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	channels, err := s.bucket.GetChannels()
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error listing channels", err)
		return
	}
	sort.Strings(channels)
	writeJSONSuccess(w, "", channels)
}

func (s *Server) GetRuntimeVersionsHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	vars := mux.Vars(r)
	channel := vars["CHANNEL"]
	runtimeVersions, err := s.bucket.GetRuntimeVersions(channel)
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error listing runtime versions", err)
		return
	}
	sort.Slice(runtimeVersions, func(i, j int) bool {
		timeI, _ := time.Parse(time.RFC3339, runtimeVersions[i].CreatedAt)
		timeJ, _ := time.Parse(time.RFC3339, runtimeVersions[j].CreatedAt)
		return timeI.After(timeJ)
	})
	writeJSONSuccess(w, "", runtimeVersions)
}

func (s *Server) GetUpdatesHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	vars := mux.Vars(r)
	channel := vars["CHANNEL"]
	runtimeVersion := vars["RUNTIME_VERSION"]
	updates, err := s.updates.GetAllUpdates(channel, runtimeVersion)
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error listing updates", err)
		return
	}
	items := make([]UpdateItem, 0, len(updates))
	for _, u := range updates {
		metadata, err := s.updates.GetMetadata(u)
		if err != nil {
			continue
		}
		items = append(items, UpdateItem{
			UpdateUUID: crypto.ConvertSHA256HashToUUID(metadata.ID),
			UpdateId:   u.UpdateId,
			CreatedAt:  metadata.CreatedAt,
		})
	}
	writeJSONSuccess(w, "", items)
}
