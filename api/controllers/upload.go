package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/storefront-labs/storefront-backend/api/responses"
	"github.com/storefront-labs/storefront-backend/internal/media"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

const (
	uploadField          = "image"
	multipartOverhead    = 1 << 20
	multipartMemoryLimit = 8 << 20
)

type uploadResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// UploadImage relays the multipart "image" field to object storage and answers with its URL.
func UploadImage(svc media.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				msg := fmt.Sprintf("File exceeds the %d MB limit", maxBytes>>20)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, msg))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "No file uploaded"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile(uploadField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "No file uploaded"))
			return
		}
		defer file.Close()

		result, err := svc.Upload(r.Context(), header.Filename, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, uploadResponse{Message: "File uploaded successfully", URL: result.URL})
	}
}
