package domain

import "time"

const (
	DefaultImageWidth  = 1024
	DefaultImageHeight = 1024

	// ArtifactMIME is the content type every generated artifact is stored with.
	ArtifactMIME = "image/png"
)

// Photo is an inline image supplied by the caller, usually a full-body
// reference photo used for try-on.
type Photo struct {
	Data []byte
	MIME string
}

// Options tunes a single generation.
type Options struct {
	Width  int
	Height int
	TryOn  bool
}

// UserInfo mirrors the profile fields the client collects. Measurements are
// in centimetres; zero means unknown.
type UserInfo struct {
	FullName string
	Email    string
	HeightCm float64
	ChestCm  float64
	WaistCm  float64
	HipsCm   float64
}

// HasMeasurements reports whether any body measurement is known.
func (u UserInfo) HasMeasurements() bool {
	return u.HeightCm > 0 || u.ChestCm > 0 || u.WaistCm > 0 || u.HipsCm > 0
}

// GenerateRequest describes a fresh outfit generation.
//
// Prompt is the fully composed instruction. Description is the raw outfit
// description; it is only used when Prompt is empty, in which case the
// master instruction is applied server-side.
type GenerateRequest struct {
	OutfitID     string
	Prompt       string
	Description  string
	Options      Options
	UserInfo     UserInfo
	Photo        *Photo
	DirectUpload bool
}

// ReviseRequest edits the last image of the session. OutfitID optionally
// selects which outfit of the session is revised.
type ReviseRequest struct {
	OutfitID     string
	RevisionText string
	Photo        *Photo
	DirectUpload bool
}

// Result is returned by generate and revise. Exactly one of ImageURL (managed
// upload) and Image (direct upload) is set.
type Result struct {
	OutfitID string
	ImageURL string
	Image    []byte
}

// Delivery names the upload path used for a result.
type Delivery string

const (
	DeliveryManaged Delivery = "managed"
	DeliveryDirect  Delivery = "direct"
)

// Measurements are estimated body measurements in whole centimetres.
type Measurements struct {
	ChestCm int
	WaistCm int
	HipsCm  int
}

// GrantRequest asks for a signed direct-upload URL.
type GrantRequest struct {
	FileName    string
	ContentType string
	Bucket      string
}

// UploadGrant is a short-lived write URL plus the stable public read URL of
// the same object.
type UploadGrant struct {
	WriteURL  string
	PublicURL string
	ExpiresAt time.Time
}

// HistoryKind distinguishes generation from revision entries.
type HistoryKind string

const (
	HistoryKindGenerate HistoryKind = "generate"
	HistoryKindRevise   HistoryKind = "revise"
)

// HistoryEntry records one successful generate or revise.
type HistoryEntry struct {
	ID           string
	OutfitID     string
	Namespace    string
	Kind         HistoryKind
	PromptText   string
	RevisionText string
	ImageURL     string
	Delivery     Delivery
	CreatedAt    time.Time
}

// OutfitEvent is published after every successful generate or revise.
type OutfitEvent struct {
	ID        string      `json:"id"`
	Kind      HistoryKind `json:"kind"`
	OutfitID  string      `json:"outfitId"`
	Namespace string      `json:"namespace"`
	ImageURL  string      `json:"imageUrl,omitempty"`
	Delivery  Delivery    `json:"delivery"`
	Bytes     int         `json:"bytes"`
	CreatedAt time.Time   `json:"createdAt"`
}
