package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

const defaultObjectPrefix = "products"

type objectStore interface {
	Upload(ctx context.Context, bucket, object, contentType string, body io.Reader) (string, error)
}

// Service relays product images to object storage.
type Service interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*UploadResult, error)
}

// UploadResult describes the stored object.
type UploadResult struct {
	URL         string `json:"url"`
	Object      string `json:"-"`
	ContentType string `json:"-"`
	Size        int64  `json:"-"`
}

type service struct {
	store    objectStore
	bucket   string
	prefix   string
	maxBytes int64
	breaker  *gobreaker.CircuitBreaker[string]
	logg     *logger.Logger
}

// NewService constructs the upload relay. The store call runs behind a circuit breaker so a
// failing bucket is not hammered by every admin upload.
func NewService(store objectStore, gcs config.GCSConfig, cfg config.MediaConfig, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	prefix := strings.Trim(gcs.ObjectPrefix, "/")
	if prefix == "" {
		prefix = defaultObjectPrefix
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "gcs-upload",
		MaxRequests: cfg.BreakerHalfOpenProbe,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logg.Warn(logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}), "circuit breaker state changed")
		},
	}

	return &service{
		store:    store,
		bucket:   gcs.BucketName,
		prefix:   prefix,
		maxBytes: cfg.MaxUploadBytes(),
		breaker:  gobreaker.NewCircuitBreaker[string](settings),
		logg:     logg,
	}, nil
}

func (s *service) Upload(ctx context.Context, filename string, body io.Reader) (*UploadResult, error) {
	if body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "No file uploaded")
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Could not read uploaded file")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "No file uploaded")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("File exceeds the %d MB limit", s.maxBytes>>20))
	}

	mt := sniff(data)
	if !isImage(mt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Only image uploads are allowed").
			WithDetails(map[string]any{"contentType": mt.String()})
	}

	object := s.prefix + "/" + uuid.NewString() + extensionFor(mt, filename)
	url, err := s.breaker.Execute(func() (string, error) {
		return s.store.Upload(ctx, s.bucket, object, mt.String(), bytes.NewReader(data))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpload, err, "Upload service temporarily unavailable")
		}
		s.logg.Error(s.logg.WithField(ctx, "object", object), "gcs upload failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpload, err, "Upload failed")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"object":       object,
		"content_type": mt.String(),
		"size":         len(data),
	}), "image uploaded")
	return &UploadResult{URL: url, Object: object, ContentType: mt.String(), Size: int64(len(data))}, nil
}

// ErrUploadDisabled is returned by the Disabled service.
var ErrUploadDisabled = pkgerrors.New(pkgerrors.CodeUpload, "Image upload is not configured")

type disabled struct{}

// Disabled stands in when no bucket is configured, so the upload route still answers
// with an upload failure instead of disappearing.
func Disabled() Service { return disabled{} }

func (disabled) Upload(context.Context, string, io.Reader) (*UploadResult, error) {
	return nil, ErrUploadDisabled
}
