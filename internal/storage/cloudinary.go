package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/joshua-takyi/eventify/internal/models"
)

const (
	MaxImageSize = 5 << 20
	appTag       = "eventify"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var ErrImageTooLarge = errors.New("image exceeds the 5MB limit")

// BlobStore keeps event images and avatars.
type BlobStore interface {
	Store(ctx context.Context, folder string, r io.Reader) (*models.Image, error)
	Delete(ctx context.Context, image *models.Image) error
}

type uploaderAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

type CloudinaryStore struct {
	api uploaderAPI
}

func NewCloudinaryStore(cld *cloudinary.Cloudinary) *CloudinaryStore {
	return &CloudinaryStore{api: &cld.Upload}
}

// ReadImage buffers an upload and checks its size and sniffed content type.
func ReadImage(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, models.Invalid("image is empty")
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidInput, ErrImageTooLarge)
	}
	if contentType := http.DetectContentType(data); !allowedImageTypes[contentType] {
		return nil, models.Invalid(fmt.Sprintf("unsupported image type %s", contentType))
	}
	return data, nil
}

func (s *CloudinaryStore) Store(ctx context.Context, folder string, r io.Reader) (*models.Image, error) {
	data, err := ReadImage(r)
	if err != nil {
		return nil, err
	}

	res, err := s.api.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder: folder,
		Tags:   []string{appTag, folder},
	})
	if err != nil {
		return nil, models.Upstream("upload image", err)
	}
	if res.Error.Message != "" {
		return nil, models.Upstream("upload image", errors.New(res.Error.Message))
	}

	return &models.Image{ImageURL: res.SecureURL, FileName: res.PublicID}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, image *models.Image) error {
	if image == nil || image.FileName == "" {
		return nil
	}

	res, err := s.api.Destroy(ctx, uploader.DestroyParams{PublicID: image.FileName})
	if err != nil {
		return models.Upstream("delete image", err)
	}
	if res.Error.Message != "" {
		return models.Upstream("delete image", errors.New(res.Error.Message))
	}
	return nil
}
