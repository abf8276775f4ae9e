package handlers

import (
	"archive/zip"
	"bytes"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"apphost-ota/internal/helpers"
	"apphost-ota/internal/notify"

	"github.com/google/uuid"
)

// Uploaded bundles are buffered in memory before extraction; generated app
// bundles are a few tens of megabytes at most.
const maxUploadSize = 256 << 20

// UploadHandler ingests a zipped update bundle into the store under
// <channel>/<runtimeVersion>/<currentUnixSecond>/. Authentication is the
// static upload key shared with the release pipeline.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	uploadKey := r.Header.Get("upload-key")
	if uploadKey == "" {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "No upload-key provided", nil)
		return
	}
	if uploadKey != s.cfg.UploadKey {
		logAndWriteJSONError(w, requestID, http.StatusUnauthorized, errAuth, "Invalid upload key", nil)
		return
	}
	channel := helpers.ResolveExpoChannel(r.Header)
	if channel == "" {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "No channel name provided", nil)
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "Invalid multipart body", err)
		return
	}
	runtimeVersion := r.FormValue("runtimeVersion")
	if runtimeVersion == "" {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "No runtimeVersion provided", nil)
		return
	}
	file, _, err := r.FormFile("upload")
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusBadRequest, errValidation, "No upload file provided", err)
		return
	}
	defer file.Close()

	archiveBytes, err := io.ReadAll(file)
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error reading upload", err)
		return
	}
	archive, err := zip.NewReader(bytes.NewReader(archiveBytes), int64(len(archiveBytes)))
	if err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error opening zip archive", err)
		return
	}

	updateId := strconv.FormatInt(time.Now().Unix(), 10)
	if err := s.bucket.IngestUpdate(channel, runtimeVersion, updateId, archive); err != nil {
		logAndWriteJSONError(w, requestID, http.StatusInternalServerError, errInternal, "Error extracting update bundle", err)
		return
	}
	s.updates.InvalidateLatestUpdate(channel, runtimeVersion)

	if err := s.notifier.UpdatePublished(r.Context(), notify.UpdatePublishedEvent{
		Channel:        channel,
		RuntimeVersion: runtimeVersion,
		UpdateId:       updateId,
	}); err != nil {
		// The bundle is already stored; a webhook failure is not the
		// uploader's problem.
		log.Printf("[RequestID: %s] Error notifying release pipeline: %v", requestID, err)
	}

	log.Printf("[RequestID: %s] Ingested update %s for channel %s, runtime version %s", requestID, updateId, channel, runtimeVersion)
	writeJSONSuccess(w, "Upload successful", nil)
}
