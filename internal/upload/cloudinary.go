package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Carlosrossos/dlh-backend/internal/config"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const uploadFolder = "dormir-la-haut"

// Service wraps the image host. Photos are pushed as opaque buffers and come
// back as public URLs; the URL is what enters the moderation queue.
type Service struct {
	cld *cloudinary.Cloudinary
}

func NewService(cfg config.Config) (*Service, error) {
	if cfg.CloudinaryCloudName == "" {
		return &Service{}, nil
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %w", err)
	}
	return &Service{cld: cld}, nil
}

func (s *Service) Upload(ctx context.Context, file io.Reader) (string, error) {
	if s.cld == nil {
		return "", errors.New("image host not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder: uploadFolder,
	})
	if err != nil {
		return "", fmt.Errorf("upload error: %w", err)
	}
	return resp.SecureURL, nil
}
