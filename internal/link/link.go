// Package link classifies inspect link text into masked (inline hex payload)
// and unmasked (owner/market + asset + class reference) forms.
package link

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// Command is the console command every inspect link invokes.
	Command = "csgo_econ_action_preview"
	// SchemePrefix is the launcher URI placed before the command.
	SchemePrefix = "steam://rungame/730/76561202255233023/+"
	// Prefix is the canonical prefix produced by Format.
	Prefix = SchemePrefix + Command + "%20"
)

var ErrInvalidLinkFormat = errors.New("link: not a recognized inspect link")

// Kind discriminates the two payload encodings.
type Kind string

const (
	KindMasked   Kind = "masked"
	KindUnmasked Kind = "unmasked"
)

// RefKind discriminates owner (inventory) and market references.
type RefKind byte

const (
	RefOwner  RefKind = 'S'
	RefMarket RefKind = 'M'
)

// Reference identifies an item that must be resolved through the game
// session.
type Reference struct {
	Kind    RefKind `json:"kind"`
	RefID   string  `json:"ref_id"`
	AssetID string  `json:"asset_id"`
	ClassID string  `json:"class_id"`
}

// Owner returns the owner id, or "" for a market reference.
func (r Reference) Owner() string {
	if r.Kind != RefOwner {
		return ""
	}
	return r.RefID
}

// Market returns the market listing id, or "" for an owner reference.
func (r Reference) Market() string {
	if r.Kind != RefMarket {
		return ""
	}
	return r.RefID
}

// Token renders the reference in link payload grammar.
func (r Reference) Token() string {
	return fmt.Sprintf("%c%sA%sD%s", r.Kind, r.RefID, r.AssetID, r.ClassID)
}

// Info is the classification result. Ref is set only for KindUnmasked, Hex
// only for KindMasked.
type Info struct {
	Original   string     `json:"original"`
	Normalized string     `json:"normalized"`
	Kind       Kind       `json:"kind"`
	URLEncoded bool       `json:"url_encoded"`
	Ref        *Reference `json:"ref,omitempty"`
	Hex        string     `json:"hex,omitempty"`
}

func (i Info) Masked() bool   { return i.Kind == KindMasked }
func (i Info) Unmasked() bool { return i.Kind == KindUnmasked }

var (
	prefixPattern   = regexp.MustCompile(`^(?:steam://rungame/730/\d+/)?\+?` + Command + `( |%20)`)
	unmaskedPattern = regexp.MustCompile(`^([SM])(\d+)A(\d+)D(\d+)$`)
	hexPattern      = regexp.MustCompile(`^[0-9A-Fa-f]+$`)
)

// Classify normalizes text and determines its payload kind.
func Classify(text string) (Info, error) {
	original := text
	text = strings.TrimSpace(text)

	payload := text
	urlEncoded := false
	if m := prefixPattern.FindStringSubmatch(text); m != nil {
		payload = text[len(m[0]):]
		urlEncoded = m[1] == "%20"
	}
	if payload == "" {
		return Info{}, fmt.Errorf("%w: empty payload", ErrInvalidLinkFormat)
	}

	info := Info{
		Original:   original,
		Normalized: Prefix + payload,
		URLEncoded: urlEncoded,
	}
	if m := unmaskedPattern.FindStringSubmatch(payload); m != nil {
		info.Kind = KindUnmasked
		info.Ref = &Reference{
			Kind:    RefKind(m[1][0]),
			RefID:   m[2],
			AssetID: m[3],
			ClassID: m[4],
		}
		return info, nil
	}
	if hexPattern.MatchString(payload) {
		info.Kind = KindMasked
		info.Hex = payload
		return info, nil
	}
	return Info{}, fmt.Errorf("%w: %q", ErrInvalidLinkFormat, truncate(original, 64))
}

// IsInspectLink reports whether text classifies as either link kind.
func IsInspectLink(text string) bool {
	_, err := Classify(text)
	return err == nil
}

// Format rebuilds canonical link text from info's stored fields.
func Format(info Info) string {
	if info.Kind == KindUnmasked && info.Ref != nil {
		return Prefix + info.Ref.Token()
	}
	return Prefix + info.Hex
}

// FormatMasked returns the canonical link for a hex payload.
func FormatMasked(hex string) string {
	return Prefix + hex
}

// FormatUnmasked returns the canonical link for a reference.
func FormatUnmasked(ref Reference) string {
	return Prefix + ref.Token()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
