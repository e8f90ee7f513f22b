package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"makemyoutfit/internal/domain"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	if f, err := DetectFormat(encodePNG(t)); err != nil || f != PNG {
		t.Fatalf("DetectFormat(png) = %q, %v", f, err)
	}
	if f, err := DetectFormat(encodeJPEG(t)); err != nil || f != JPEG {
		t.Fatalf("DetectFormat(jpeg) = %q, %v", f, err)
	}
	if _, err := DetectFormat([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatal("expected error for garbage bytes")
	}
}

func TestDecodeBase64(t *testing.T) {
	jpg := encodeJPEG(t)
	tests := []struct {
		name     string
		payload  string
		declared string
		wantMIME string
		wantErr  bool
	}{
		{name: "declared mime wins", payload: base64.StdEncoding.EncodeToString(jpg), declared: "image/webp", wantMIME: "image/webp"},
		{name: "sniffed when missing", payload: base64.StdEncoding.EncodeToString(jpg), wantMIME: "image/jpeg"},
		{name: "alias folded", payload: base64.StdEncoding.EncodeToString(jpg), declared: "IMAGE/JPG", wantMIME: "image/jpeg"},
		{name: "data url", payload: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpg), wantMIME: "image/jpeg"},
		{name: "unknown bytes default to png", payload: base64.StdEncoding.EncodeToString([]byte("not an image")), wantMIME: "image/png"},
		{name: "unpadded base64", payload: base64.RawStdEncoding.EncodeToString([]byte("ab")), declared: "image/png", wantMIME: "image/png"},
		{name: "empty", payload: "   ", wantErr: true},
		{name: "invalid base64", payload: "***", wantErr: true},
		{name: "data url without base64", payload: "data:image/png,abc", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			photo, err := DecodeBase64(tc.payload, tc.declared)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeBase64 returned error: %v", err)
			}
			if photo.MIME != tc.wantMIME {
				t.Fatalf("MIME = %q, want %q", photo.MIME, tc.wantMIME)
			}
			if len(photo.Data) == 0 {
				t.Fatal("expected decoded bytes")
			}
		})
	}
}
