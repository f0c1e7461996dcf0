package model

import (
	"errors"
	"fmt"
	"strings"
)

// PhotoVariant selects which kind of specimen photograph the image lookup asks for.
// AntWeb calls this the "shot type" and identifies it by a one-letter code.
type PhotoVariant int

const (
	// PhotoHead is a head shot. This is the default variant.
	PhotoHead PhotoVariant = iota

	// PhotoDorsal is a dorsal (top-down) shot.
	PhotoDorsal

	// PhotoProfile is a lateral profile shot.
	PhotoProfile

	// PhotoLabel is a photograph of the specimen label.
	PhotoLabel
)

// ErrUnknownPhotoVariant is returned when a photo variant name or code is not recognized.
var ErrUnknownPhotoVariant = errors.New("unknown photo variant: expected head, dorsal, profile or label")

// String returns the long lowercase name of the variant.
func (v PhotoVariant) String() string {
	switch v {
	case PhotoHead:
		return "head"
	case PhotoDorsal:
		return "dorsal"
	case PhotoProfile:
		return "profile"
	case PhotoLabel:
		return "label"
	default:
		return "unknown"
	}
}

// Code returns the AntWeb shotType code: h, d, p or l.
// Unknown variants fall back to the head shot code.
func (v PhotoVariant) Code() string {
	switch v {
	case PhotoDorsal:
		return "d"
	case PhotoProfile:
		return "p"
	case PhotoLabel:
		return "l"
	default:
		return "h"
	}
}

// ParsePhotoVariant accepts either the long name ("dorsal") or the
// one-letter code ("d"), case-insensitively.
func ParsePhotoVariant(s string) (PhotoVariant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h", "head":
		return PhotoHead, nil
	case "d", "dorsal":
		return PhotoDorsal, nil
	case "p", "profile":
		return PhotoProfile, nil
	case "l", "label":
		return PhotoLabel, nil
	default:
		return PhotoHead, fmt.Errorf("%w: %q", ErrUnknownPhotoVariant, s)
	}
}

// MarshalText implements encoding.TextMarshaler so variants appear by name in
// JSON and YAML output.
func (v PhotoVariant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *PhotoVariant) UnmarshalText(text []byte) error {
	parsed, err := ParsePhotoVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
