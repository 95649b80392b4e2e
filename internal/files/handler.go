package files

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/response"
	"github.com/supriyameruva/filegate/internal/storage"
)

// Handler holds HTTP handlers for the file endpoints, one set per backend.
type Handler struct {
	svc      *Service
	maxBytes int64
}

// NewHandler creates a new files Handler.
func NewHandler(svc *Service, maxBytes int64) *Handler {
	return &Handler{svc: svc, maxBytes: maxBytes}
}

type uploadData struct {
	Message string `json:"message" example:"File cat.png uploaded successfully to the object store"`
	Name    string `json:"name"    example:"cat.png"`
}

type listData struct {
	Files []string `json:"files"`
}

// UploadBlob godoc
//
//	@Summary		Upload a file to the object store
//	@Description	Stores the multipart "file" field in the object store container. Fails with 409 when the name exists and overwriting is disabled.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Success		200	{object}	response.Envelope{data=uploadData}
//	@Failure		400	{object}	response.Envelope
//	@Failure		409	{object}	response.Envelope
//	@Failure		413	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/upload_blob [post]
func (h *Handler) UploadBlob(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, storage.ObjectStore, "the object store")
}

// UploadShare godoc
//
//	@Summary		Upload a file to the file share
//	@Description	Stores the multipart "file" field on the network file share.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Success		200	{object}	response.Envelope{data=uploadData}
//	@Failure		400	{object}	response.Envelope
//	@Failure		409	{object}	response.Envelope
//	@Failure		413	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/upload [post]
func (h *Handler) UploadShare(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, storage.Share, "the file share")
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, kind storage.BackendKind, label string) {
	if r.Method == http.MethodGet {
		response.OK(w, map[string]string{
			"message": "POST a multipart form with a single \"file\" field to upload",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d byte upload limit", h.maxBytes))
			return
		}
		response.FromError(w, apperr.New(apperr.KindNoFile, "no file selected for upload"))
		return
	}
	defer file.Close()

	name, err := h.svc.Upload(r.Context(), kind, header.Filename, file, header.Size)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, uploadData{
		Message: fmt.Sprintf("File %s uploaded successfully to %s", name, label),
		Name:    name,
	})
}

// ListBlobs godoc
//
//	@Summary	List object store contents
//	@Tags		files
//	@Produce	json
//	@Success	200	{object}	response.Envelope{data=listData}
//	@Failure	500	{object}	response.Envelope
//	@Router		/list_blobs [get]
func (h *Handler) ListBlobs(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, storage.ObjectStore)
}

// ListShare godoc
//
//	@Summary	List file share contents
//	@Tags		files
//	@Produce	json
//	@Success	200	{object}	response.Envelope{data=listData}
//	@Failure	500	{object}	response.Envelope
//	@Router		/list [get]
func (h *Handler) ListShare(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, storage.Share)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, kind storage.BackendKind) {
	names, err := h.svc.List(r.Context(), kind)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, listData{Files: names})
}

// DownloadBlob godoc
//
//	@Summary	Download a file from the object store
//	@Tags		files
//	@Produce	octet-stream
//	@Param		name	path	string	true	"Object name"
//	@Success	200	{file}		binary
//	@Failure	404	{object}	response.Envelope
//	@Failure	500	{object}	response.Envelope
//	@Router		/download_blob/{name} [get]
func (h *Handler) DownloadBlob(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, storage.ObjectStore)
}

// DownloadShare godoc
//
//	@Summary	Download a file from the file share
//	@Tags		files
//	@Produce	octet-stream
//	@Param		name	path	string	true	"File name"
//	@Success	200	{file}		binary
//	@Failure	404	{object}	response.Envelope
//	@Failure	500	{object}	response.Envelope
//	@Router		/download/{name} [get]
func (h *Handler) DownloadShare(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, storage.Share)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request, kind storage.BackendKind) {
	rc, size, name, err := h.svc.Download(r.Context(), kind, chi.URLParam(r, "name"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	defer rc.Close()

	response.Attachment(w, name, size, rc)
}
