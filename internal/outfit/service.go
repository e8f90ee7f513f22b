// Package outfit orchestrates generation, revision and delivery of outfit
// images for a session.
package outfit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/infra"
	"makemyoutfit/internal/measure"
	"makemyoutfit/internal/providers/image"
	"makemyoutfit/internal/session"
	"makemyoutfit/internal/storage"
	"makemyoutfit/pkg/zip"
)

const (
	DefaultSignedURLTTL = 15 * time.Minute
	// MaxHistory caps history listings.
	MaxHistory = 50
	// MaxDimension bounds the requested render size.
	MaxDimension = 4096

	recordTimeout = 5 * time.Second
)

// Options wires the service collaborators. Generator, Sessions, Store and
// Bucket are required.
type Options struct {
	Generator        image.Generator
	Sessions         *session.Store
	Store            storage.ObjectStore
	Signer           storage.URLSigner
	History          domain.HistoryRepository
	Events           domain.EventPublisher
	Bucket           string
	SignedURLBuckets []string
	SignedURLTTL     time.Duration
	Logger           *infra.Logger
	Now              func() time.Time
}

// Service is the session and upload controller.
type Service struct {
	generator image.Generator
	sessions  *session.Store
	store     storage.ObjectStore
	signer    storage.URLSigner
	history   domain.HistoryRepository
	events    domain.EventPublisher
	bucket    string
	allowlist []string
	grantTTL  time.Duration
	logger    *infra.Logger
	now       func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Generator == nil {
		return nil, errors.New("outfit: generator is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("outfit: session store is required")
	}
	if opts.Store == nil {
		return nil, errors.New("outfit: object store is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("outfit: bucket is required")
	}

	allowlist := []string{bucket}
	for _, b := range opts.SignedURLBuckets {
		b = strings.TrimSpace(b)
		if b != "" && !slices.Contains(allowlist, b) {
			allowlist = append(allowlist, b)
		}
	}

	ttl := opts.SignedURLTTL
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		generator: opts.Generator,
		sessions:  opts.Sessions,
		store:     opts.Store,
		signer:    opts.Signer,
		history:   opts.History,
		events:    opts.Events,
		bucket:    bucket,
		allowlist: allowlist,
		grantTTL:  ttl,
		logger:    infra.OrNop(opts.Logger),
		now:       now,
	}, nil
}

// Bucket returns the managed bucket name.
func (s *Service) Bucket() string {
	return s.bucket
}

// EstimateMeasurements derives chest, waist and hips from the height.
func (s *Service) EstimateMeasurements(heightCm float64, photo *domain.Photo) (domain.Measurements, error) {
	return measure.Estimate(heightCm, photo)
}

// Generate renders a new outfit and records it as the session's latest image.
func (s *Service) Generate(ctx context.Context, sessionID, apiKey string, req domain.GenerateRequest) (domain.Result, error) {
	if strings.TrimSpace(apiKey) == "" {
		return domain.Result{}, domain.ErrMissingCredential
	}

	outfitID := strings.TrimSpace(req.OutfitID)
	if outfitID == "" {
		outfitID = NewOutfitID(s.now())
	} else if err := checkOutfitID(outfitID); err != nil {
		return domain.Result{}, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		description := strings.TrimSpace(req.Description)
		if description == "" {
			return domain.Result{}, domain.InvalidInput("masterPrompt or prompt is required")
		}
		prompt = image.MasterInstruction(description)
	}

	width, height, err := dimensions(req.Options)
	if err != nil {
		return domain.Result{}, err
	}

	img, err := s.generator.Generate(ctx, apiKey, image.OutfitRequest{
		Prompt:   prompt,
		Width:    width,
		Height:   height,
		TryOn:    req.Options.TryOn,
		Photo:    req.Photo,
		UserInfo: req.UserInfo,
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.sessions.Put(sessionID, outfitID, img)

	result, delivery, err := s.deliver(ctx, outfitID, outfitID+".png", img, req.DirectUpload)
	if err != nil {
		return domain.Result{}, err
	}

	s.record(ctx, sessionID, domain.HistoryEntry{
		OutfitID:   outfitID,
		Kind:       domain.HistoryKindGenerate,
		PromptText: prompt,
		ImageURL:   result.ImageURL,
		Delivery:   delivery,
	}, len(img))

	s.logger.Info().
		Str("outfit_id", outfitID).
		Str("delivery", string(delivery)).
		Int("bytes", len(img)).
		Bool("try_on", req.Options.TryOn).
		Msg("outfit generated")
	return result, nil
}

// Revise edits the image of req.OutfitID when the session has one, otherwise
// the session's latest image.
func (s *Service) Revise(ctx context.Context, sessionID, apiKey string, req domain.ReviseRequest) (domain.Result, error) {
	if strings.TrimSpace(apiKey) == "" {
		return domain.Result{}, domain.ErrMissingCredential
	}

	outfitID := strings.TrimSpace(req.OutfitID)
	if outfitID != "" {
		if err := checkOutfitID(outfitID); err != nil {
			return domain.Result{}, err
		}
	}

	var prior []byte
	if outfitID != "" {
		if img, ok := s.sessions.ForOutfit(sessionID, outfitID); ok {
			prior = img
		}
	}
	if prior == nil {
		// Unknown ids fall back to the latest image; the revision is then
		// stored under the supplied id.
		slot, ok := s.sessions.Latest(sessionID)
		if !ok {
			return domain.Result{}, domain.ErrNoPriorImage
		}
		prior = slot.Image
		if outfitID == "" {
			outfitID = slot.OutfitID
		}
	}

	revisionText := strings.TrimSpace(req.RevisionText)
	if revisionText == "" {
		return domain.Result{}, domain.InvalidInput("revisionText is required")
	}

	img, err := s.generator.Revise(ctx, apiKey, image.RevisionRequest{
		RevisionText: revisionText,
		PriorImage:   prior,
		Photo:        req.Photo,
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.sessions.Put(sessionID, outfitID, img)

	result, delivery, err := s.deliver(ctx, outfitID, RevisionObjectName(s.now()), img, req.DirectUpload)
	if err != nil {
		return domain.Result{}, err
	}

	s.record(ctx, sessionID, domain.HistoryEntry{
		OutfitID:     outfitID,
		Kind:         domain.HistoryKindRevise,
		RevisionText: revisionText,
		ImageURL:     result.ImageURL,
		Delivery:     delivery,
	}, len(img))

	s.logger.Info().
		Str("outfit_id", outfitID).
		Str("delivery", string(delivery)).
		Int("bytes", len(img)).
		Msg("outfit revised")
	return result, nil
}

func (s *Service) deliver(ctx context.Context, outfitID, objectName string, img []byte, direct bool) (domain.Result, domain.Delivery, error) {
	if direct {
		return domain.Result{OutfitID: outfitID, Image: img}, domain.DeliveryDirect, nil
	}

	err := s.store.Write(ctx, storage.Object{
		Bucket:      s.bucket,
		Name:        objectName,
		ContentType: domain.ArtifactMIME,
		Data:        img,
		Public:      true,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("bucket", s.bucket).Str("object", objectName).Msg("managed upload failed")
		return domain.Result{}, "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	return domain.Result{OutfitID: outfitID, ImageURL: s.store.PublicURL(s.bucket, objectName)}, domain.DeliveryManaged, nil
}

// record appends history and publishes the event. Failures are logged only.
func (s *Service) record(ctx context.Context, sessionID string, entry domain.HistoryEntry, size int) {
	entry.ID = uuid.NewString()
	entry.Namespace = session.Namespace(sessionID)
	entry.CreatedAt = s.now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if s.history != nil {
		if err := s.history.Append(ctx, entry); err != nil {
			s.logger.Warn().Err(err).Str("outfit_id", entry.OutfitID).Msg("history append failed")
		}
	}
	if s.events != nil {
		err := s.events.Publish(ctx, domain.OutfitEvent{
			ID:        entry.ID,
			Kind:      entry.Kind,
			OutfitID:  entry.OutfitID,
			Namespace: entry.Namespace,
			ImageURL:  entry.ImageURL,
			Delivery:  entry.Delivery,
			Bytes:     size,
			CreatedAt: entry.CreatedAt,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("outfit_id", entry.OutfitID).Msg("event publish failed")
		}
	}
}

// IssueUploadGrant presigns a direct upload of req.FileName for the session.
// The object is scoped under u/<namespace>/ and nothing is written.
func (s *Service) IssueUploadGrant(ctx context.Context, sessionID string, req domain.GrantRequest) (domain.UploadGrant, error) {
	if !s.sessions.Exists(sessionID) {
		return domain.UploadGrant{}, fmt.Errorf("%w: session has no generated outfit", domain.ErrForbidden)
	}
	if s.signer == nil {
		return domain.UploadGrant{}, fmt.Errorf("%w: signed uploads are not available", domain.ErrForbidden)
	}

	fileName := strings.TrimSpace(req.FileName)
	if err := validateObjectName(fileName); err != nil {
		return domain.UploadGrant{}, err
	}

	bucket := strings.TrimSpace(req.Bucket)
	if bucket == "" {
		bucket = s.bucket
	}
	if !slices.Contains(s.allowlist, bucket) {
		return domain.UploadGrant{}, fmt.Errorf("%w: bucket %q is not allowed", domain.ErrForbidden, bucket)
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = domain.ArtifactMIME
	}

	name := "u/" + session.Namespace(sessionID) + "/" + fileName
	writeURL, err := s.signer.SignedWriteURL(ctx, bucket, name, contentType, s.grantTTL)
	if err != nil {
		if errors.Is(err, storage.ErrSigningUnsupported) {
			return domain.UploadGrant{}, fmt.Errorf("%w: signed uploads are not available", domain.ErrForbidden)
		}
		return domain.UploadGrant{}, fmt.Errorf("sign upload: %w", err)
	}

	s.logger.Debug().Str("bucket", bucket).Str("object", name).Msg("upload grant issued")
	return domain.UploadGrant{
		WriteURL:  writeURL,
		PublicURL: s.signer.PublicURL(bucket, name),
		ExpiresAt: s.now().Add(s.grantTTL).UTC(),
	}, nil
}

// History lists the session's recent outfits, newest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]domain.HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}
	return s.history.ListRecent(ctx, session.Namespace(sessionID), limit)
}

// Archive zips the latest image of every outfit in the session.
func (s *Service) Archive(sessionID string) ([]byte, error) {
	slots := s.sessions.Snapshot(sessionID)
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: session has no outfits", domain.ErrNotFound)
	}
	assets := make([]zip.Asset, 0, len(slots))
	for _, slot := range slots {
		assets = append(assets, zip.Asset{
			Filename: slot.OutfitID + ".png",
			MIME:     domain.ArtifactMIME,
			Data:     slot.Image,
			Modified: slot.UpdatedAt,
		})
	}
	return zip.ArchiveAssets(assets)
}

func dimensions(opts domain.Options) (int, int, error) {
	width, height := opts.Width, opts.Height
	if width == 0 {
		width = domain.DefaultImageWidth
	}
	if height == 0 {
		height = domain.DefaultImageHeight
	}
	if width < 0 || height < 0 || width > MaxDimension || height > MaxDimension {
		return 0, 0, domain.InvalidInput("width and height must be between 1 and %d", MaxDimension)
	}
	return width, height, nil
}

func validateObjectName(name string) error {
	switch {
	case name == "":
		return domain.InvalidInput("fileName is required")
	case strings.HasPrefix(name, "/"):
		return domain.InvalidInput("fileName must be relative")
	case strings.Contains(name, "\\"):
		return domain.InvalidInput("fileName must not contain backslashes")
	case strings.Contains(name, ".."):
		return domain.InvalidInput("fileName must not contain '..'")
	case len(name) > 512:
		return domain.InvalidInput("fileName is too long")
	}
	return nil
}
