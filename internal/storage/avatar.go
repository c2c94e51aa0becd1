package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/frahmantamala/task-dashboard/internal"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarStore keeps profile images in the <bucket>/ prefix of a blob bucket
// and serves them under /storage/<bucket>/. Without a bucket URL the bucket
// is the local directory cfg.Dir.
type AvatarStore struct {
	bucket        *blob.Bucket
	name          string
	publicBaseURL string
	maxBytes      int64
	logger        *slog.Logger
}

func NewAvatarStore(ctx context.Context, cfg internal.StorageConfig, logger *slog.Logger) (*AvatarStore, error) {
	name := cfg.Bucket
	if name == "" {
		name = internal.DefaultAvatarBucket
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = internal.DefaultAvatarMaxSize
	}

	var (
		bucket *blob.Bucket
		err    error
	)
	if cfg.URL != "" {
		bucket, err = blob.OpenBucket(ctx, cfg.URL)
	} else {
		bucket, err = fileblob.OpenBucket(cfg.Dir, &fileblob.Options{CreateDir: true})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open avatar bucket: %w", err)
	}

	return &AvatarStore{
		bucket:        blob.PrefixedBucket(bucket, name+"/"),
		name:          name,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxBytes:      maxBytes,
		logger:        logger,
	}, nil
}

func (s *AvatarStore) PathPrefix() string {
	return "/storage/" + s.name + "/"
}

func (s *AvatarStore) MaxBytes() int64 {
	return s.maxBytes
}

func (s *AvatarStore) Ping(ctx context.Context) error {
	ok, err := s.bucket.IsAccessible(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("avatar bucket is not accessible")
	}
	return nil
}

func (s *AvatarStore) Close() error {
	return s.bucket.Close()
}

// Save sniffs and writes the image, returning its public URL.
func (s *AvatarStore) Save(ctx context.Context, ownerID string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", internal.NewTransportError("failed to read upload", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", internal.NewValidationFieldError("avatar",
			fmt.Sprintf("Image must be %dMB or smaller", s.maxBytes/(1024*1024)), internal.ErrCodeFileTooLarge)
	}
	if len(data) == 0 {
		return "", internal.NewValidationFieldError("avatar", "Image is required", internal.ErrCodeUnsupportedMedia)
	}

	mtype := mimetype.Detect(data)
	ext, ok := allowedImageTypes[mtype.String()]
	if !ok {
		return "", internal.NewValidationFieldError("avatar",
			"Image must be a JPEG, PNG, GIF or WebP file", internal.ErrCodeUnsupportedMedia)
	}

	owner := path.Base(path.Clean("/" + ownerID))
	if owner == "/" || owner == "." {
		return "", internal.NewValidationFieldError("avatar", "Owner is required", internal.ErrCodeValidationFailed)
	}
	key := path.Join(owner, uuid.NewString()+ext)

	if err := s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: mtype.String()}); err != nil {
		return "", internal.NewTransportError("failed to store avatar", err)
	}

	s.logger.InfoContext(ctx, "avatar stored", "owner_id", owner, "key", key, "content_type", mtype.String(), "bytes", len(data))
	return s.publicBaseURL + s.PathPrefix() + key, nil
}

// ServeHTTP serves a stored avatar. The request path is the object key, so
// mount it behind http.StripPrefix(PathPrefix()).
func (s *AvatarStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	reader, err := s.bucket.NewReader(r.Context(), key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			http.NotFound(w, r)
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to open avatar", "key", key, "error", err)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", reader.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(reader.Size(), 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.WarnContext(r.Context(), "avatar copy interrupted", "key", key, "error", err)
	}
}
