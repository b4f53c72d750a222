package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studiofront/internal/domain"
	"studiofront/internal/jobclient"
)

type jobStartResponse struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
}

// Generate launches a job of the kind named in the path. Kinds with upload
// slots take multipart form data (one file per slot plus an optional
// "payload" JSON field); kinds without take a JSON body.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	kind := domain.JobKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		a.error(w, http.StatusNotFound, "not_found", "unknown generation kind")
		return
	}
	spec, err := jobclient.SpecFor(kind)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "unknown generation kind")
		return
	}

	var req jobclient.Request
	if len(spec.Slots) > 0 {
		req, err = a.multipartRequest(r, spec)
	} else {
		req, err = jsonRequest(r)
	}
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	job, err := a.Jobs.Start(kind, req)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			a.error(w, http.StatusBadRequest, "validation_error", ve.Error())
			return
		}
		a.Logger.Error().Err(err).Str("kind", string(kind)).Msg("job start failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to start job")
		return
	}
	a.json(w, http.StatusAccepted, jobStartResponse{JobID: job.ID, Status: job.Status})
}

func jsonRequest(r *http.Request) (jobclient.Request, error) {
	payload := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return jobclient.Request{}, fmt.Errorf("invalid payload")
	}
	return jobclient.Request{Payload: payload}, nil
}

func (a *App) multipartRequest(r *http.Request, spec jobclient.KindSpec) (jobclient.Request, error) {
	if err := r.ParseMultipartForm(a.Config.MaxUploadBytes); err != nil {
		return jobclient.Request{}, fmt.Errorf("invalid multipart form")
	}
	payload := map[string]any{}
	if raw := r.FormValue("payload"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return jobclient.Request{}, fmt.Errorf("payload field is not valid JSON")
		}
	}

	files := make([]jobclient.FileInput, 0, len(spec.Slots))
	for _, slot := range spec.Slots {
		file, header, err := r.FormFile(slot.Field)
		if err != nil {
			return jobclient.Request{}, fmt.Errorf("missing %s file", slot.Field)
		}
		input := jobclient.FileInput{
			Slot:        slot.Name,
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		}
		// buffer the file now: the form's temp files are reclaimed when
		// this handler returns, while the pipeline reads asynchronously
		if header.Size <= jobclient.MaxFileBytes {
			data, readErr := io.ReadAll(file)
			_ = file.Close()
			if readErr != nil {
				return jobclient.Request{}, fmt.Errorf("reading %s file", slot.Field)
			}
			input.Reader = bytes.NewReader(data)
		}
		files = append(files, input)
	}
	return jobclient.Request{Payload: payload, Files: files}, nil
}

// Upload validates and relays one file to the backend upload endpoint,
// returning the remote URL for later submission.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	kind := domain.JobKind(chi.URLParam(r, "kind"))
	spec, err := jobclient.SpecFor(kind)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "unknown generation kind")
		return
	}
	if len(spec.Slots) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "this kind takes no file uploads")
		return
	}
	if err := r.ParseMultipartForm(a.Config.MaxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "missing file")
		return
	}
	defer file.Close()

	contentType := r.FormValue("file_type")
	if contentType == "" {
		contentType = header.Header.Get("Content-Type")
	}
	input := jobclient.FileInput{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Reader:      file,
	}

	slot, err := matchSlot(spec, input)
	if err != nil {
		a.error(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	url, err := a.Transport.Upload(r.Context(), slot.Path, input)
	if err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) {
			a.error(w, http.StatusBadGateway, "transport_error", "upload service unreachable")
			return
		}
		a.error(w, http.StatusBadGateway, "upload_error", err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": url})
}

// matchSlot finds the first slot whose allow-list accepts the file.
func matchSlot(spec jobclient.KindSpec, f jobclient.FileInput) (jobclient.UploadSlot, error) {
	var lastErr error
	for _, slot := range spec.Slots {
		if err := jobclient.ValidateFile(f, slot); err == nil {
			return slot, nil
		} else {
			lastErr = err
		}
	}
	return jobclient.UploadSlot{}, lastErr
}

// JobStatus returns the tracked descriptor for one job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, err := a.Jobs.Get(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, job)
}

// JobsList returns every tracked job, newest first.
func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Jobs.List()})
}

// JobForget stops tracking a job locally. The backend copy is untouched.
func (a *App) JobForget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	if err := a.Jobs.Forget(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JobReset aborts the in-flight job for a kind and returns its client to
// idle. Resetting an idle client succeeds.
func (a *App) JobReset(w http.ResponseWriter, r *http.Request) {
	kind := domain.JobKind(chi.URLParam(r, "kind"))
	client, ok := a.Jobs.Client(kind)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown generation kind")
		return
	}
	client.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// JobEvents streams progress events for a kind as server-sent events until
// the client disconnects.
func (a *App) JobEvents(w http.ResponseWriter, r *http.Request) {
	kind := domain.JobKind(chi.URLParam(r, "kind"))
	client, ok := a.Jobs.Client(kind)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown generation kind")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	events, unsubscribe := client.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
