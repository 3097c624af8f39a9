package protocol

import (
	"math"

	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/protocol/wire"
)

// EncodeItem serializes r in ascending field order. Required fields are always
// written; optional fields only when present.
func EncodeItem(r item.Record) []byte {
	b := make([]byte, 0, 64)
	b = appendOptUint32(b, FieldAccountID, r.AccountID)
	if v, ok := r.ItemID.Get(); ok {
		b = appendVarintField(b, FieldItemID, v)
	}
	b = appendVarintField(b, FieldDefIndex, uint64(r.DefIndex))
	b = appendVarintField(b, FieldPaintIndex, uint64(r.PaintIndex))
	b = appendOptUint32(b, FieldRarity, r.Rarity)
	b = appendOptUint32(b, FieldQuality, r.Quality)
	b = appendVarintField(b, FieldPaintWear, uint64(math.Float32bits(r.Wear)))
	b = appendVarintField(b, FieldPaintSeed, uint64(r.PatternSeed))
	b = appendOptUint32(b, FieldKillEaterScoreType, r.KillEaterScoreType)
	b = appendOptUint32(b, FieldKillEaterValue, r.KillEaterValue)
	if v, ok := r.CustomName.Get(); ok {
		b = wire.AppendTag(b, FieldCustomName, wire.TypeBytes)
		b = wire.AppendBytes(b, []byte(v))
	}
	for _, d := range r.Stickers {
		b = appendDecoration(b, FieldSticker, d)
	}
	b = appendOptUint32(b, FieldInventory, r.InventoryPos)
	b = appendOptUint32(b, FieldOrigin, r.Origin)
	b = appendOptUint32(b, FieldQuestID, r.QuestID)
	b = appendOptUint32(b, FieldDropReason, r.DropReason)
	b = appendOptUint32(b, FieldMusicIndex, r.MusicIndex)
	if v, ok := r.EntIndex.Get(); ok {
		// negative int32 values sign-extend to ten bytes
		b = appendVarintField(b, FieldEntIndex, uint64(int64(v)))
	}
	b = appendOptUint32(b, FieldPetIndex, r.PetIndex)
	for _, d := range r.Charms {
		b = appendDecoration(b, FieldKeychain, d)
	}
	return b
}

// EncodeDecoration serializes one sticker/keychain submessage body.
func EncodeDecoration(d item.Decoration) []byte {
	b := make([]byte, 0, 32)
	b = appendVarintField(b, DecoSlot, uint64(d.Slot))
	b = appendVarintField(b, DecoAssetID, uint64(d.AssetID))
	b = appendOptFloat32(b, DecoWear, d.Wear)
	b = appendOptFloat32(b, DecoScale, d.Scale)
	b = appendOptFloat32(b, DecoRotation, d.Rotation)
	b = appendOptUint32(b, DecoTintID, d.TintID)
	b = appendOptFloat32(b, DecoOffsetX, d.OffsetX)
	b = appendOptFloat32(b, DecoOffsetY, d.OffsetY)
	b = appendOptFloat32(b, DecoOffsetZ, d.OffsetZ)
	b = appendOptUint32(b, DecoPattern, d.Pattern)
	return b
}

func appendDecoration(b []byte, num uint32, d item.Decoration) []byte {
	b = wire.AppendTag(b, num, wire.TypeBytes)
	return wire.AppendBytes(b, EncodeDecoration(d))
}

func appendVarintField(b []byte, num uint32, v uint64) []byte {
	b = wire.AppendTag(b, num, wire.TypeVarint)
	return wire.AppendVarint(b, v)
}

func appendOptUint32(b []byte, num uint32, o item.Opt[uint32]) []byte {
	v, ok := o.Get()
	if !ok {
		return b
	}
	return appendVarintField(b, num, uint64(v))
}

func appendOptFloat32(b []byte, num uint32, o item.Opt[float32]) []byte {
	v, ok := o.Get()
	if !ok {
		return b
	}
	b = wire.AppendTag(b, num, wire.TypeFixed32)
	return wire.AppendFloat32(b, v)
}
