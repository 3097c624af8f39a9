// Package item defines the decoded attribute set of a single inspectable item.
package item

import (
	"math"
	"slices"
)

// Record is the full attribute set carried by a masked inspect link or
// returned by the game session for an unmasked one.
type Record struct {
	DefIndex    uint32  `json:"defindex"`
	PaintIndex  uint32  `json:"paintindex"`
	PatternSeed uint32  `json:"paintseed"`
	Wear        float32 `json:"paintwear"`

	AccountID          Opt[uint32] `json:"accountid,omitzero"`
	ItemID             Opt[uint64] `json:"itemid,omitzero"`
	Rarity             Opt[uint32] `json:"rarity,omitzero"`
	Quality            Opt[uint32] `json:"quality,omitzero"`
	KillEaterScoreType Opt[uint32] `json:"killeaterscoretype,omitzero"`
	KillEaterValue     Opt[uint32] `json:"killeatervalue,omitzero"`
	CustomName         Opt[string] `json:"customname,omitzero"`
	InventoryPos       Opt[uint32] `json:"inventory,omitzero"`
	Origin             Opt[uint32] `json:"origin,omitzero"`
	QuestID            Opt[uint32] `json:"questid,omitzero"`
	DropReason         Opt[uint32] `json:"dropreason,omitzero"`
	MusicIndex         Opt[uint32] `json:"musicindex,omitzero"`
	EntIndex           Opt[int32]  `json:"entindex,omitzero"`
	PetIndex           Opt[uint32] `json:"petindex,omitzero"`

	Stickers []Decoration `json:"stickers,omitempty"`
	Charms   []Decoration `json:"keychains,omitempty"`
}

// Decoration is one sticker or charm attached to a Record.
type Decoration struct {
	Slot    uint32 `json:"slot"`
	AssetID uint32 `json:"sticker_id"`

	Wear     Opt[float32] `json:"wear,omitzero"`
	Scale    Opt[float32] `json:"scale,omitzero"`
	Rotation Opt[float32] `json:"rotation,omitzero"`
	TintID   Opt[uint32]  `json:"tint_id,omitzero"`
	OffsetX  Opt[float32] `json:"offset_x,omitzero"`
	OffsetY  Opt[float32] `json:"offset_y,omitzero"`
	OffsetZ  Opt[float32] `json:"offset_z,omitzero"`
	Pattern  Opt[uint32]  `json:"pattern,omitzero"`
}

// Equal compares two records field by field. Floats compare by bit pattern.
func (r Record) Equal(o Record) bool {
	if r.DefIndex != o.DefIndex || r.PaintIndex != o.PaintIndex || r.PatternSeed != o.PatternSeed {
		return false
	}
	if math.Float32bits(r.Wear) != math.Float32bits(o.Wear) {
		return false
	}
	if r.AccountID != o.AccountID || r.ItemID != o.ItemID || r.Rarity != o.Rarity ||
		r.Quality != o.Quality || r.KillEaterScoreType != o.KillEaterScoreType ||
		r.KillEaterValue != o.KillEaterValue || r.CustomName != o.CustomName ||
		r.InventoryPos != o.InventoryPos || r.Origin != o.Origin || r.QuestID != o.QuestID ||
		r.DropReason != o.DropReason || r.MusicIndex != o.MusicIndex ||
		r.EntIndex != o.EntIndex || r.PetIndex != o.PetIndex {
		return false
	}
	return slices.EqualFunc(r.Stickers, o.Stickers, Decoration.Equal) &&
		slices.EqualFunc(r.Charms, o.Charms, Decoration.Equal)
}

func (d Decoration) Equal(o Decoration) bool {
	return d.Slot == o.Slot && d.AssetID == o.AssetID &&
		floatOptEqual(d.Wear, o.Wear) && floatOptEqual(d.Scale, o.Scale) &&
		floatOptEqual(d.Rotation, o.Rotation) && d.TintID == o.TintID &&
		floatOptEqual(d.OffsetX, o.OffsetX) && floatOptEqual(d.OffsetY, o.OffsetY) &&
		floatOptEqual(d.OffsetZ, o.OffsetZ) && d.Pattern == o.Pattern
}

func floatOptEqual(a, b Opt[float32]) bool {
	av, aok := a.Get()
	bv, bok := b.Get()
	if aok != bok {
		return false
	}
	return !aok || math.Float32bits(av) == math.Float32bits(bv)
}
