package protocol

import (
	"fmt"
	"math"

	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/protocol/wire"
)

// DecodeItem parses an item payload. Unknown field numbers, and known numbers
// carried with an unexpected wire type, are skipped. Values are not range
// checked.
func DecodeItem(payload []byte) (item.Record, error) {
	fields, err := wire.DecodeFields(payload)
	if err != nil {
		return item.Record{}, fmt.Errorf("%w: %v", ErrCodecTruncated, err)
	}

	var r item.Record
	for _, f := range fields {
		if f.Type == wire.TypeBytes {
			switch f.Number {
			case FieldCustomName:
				r.CustomName = item.Some(string(f.Bytes))
			case FieldSticker, FieldKeychain:
				d, err := DecodeDecoration(f.Bytes)
				if err != nil {
					return item.Record{}, fmt.Errorf("field %d: %w", f.Number, err)
				}
				if f.Number == FieldSticker {
					r.Stickers = append(r.Stickers, d)
				} else {
					r.Charms = append(r.Charms, d)
				}
			}
			continue
		}
		if f.Type != wire.TypeVarint {
			continue
		}

		v := f.Varint
		switch f.Number {
		case FieldAccountID:
			r.AccountID = item.Some(uint32(v))
		case FieldItemID:
			r.ItemID = item.Some(v)
		case FieldDefIndex:
			r.DefIndex = uint32(v)
		case FieldPaintIndex:
			r.PaintIndex = uint32(v)
		case FieldRarity:
			r.Rarity = item.Some(uint32(v))
		case FieldQuality:
			r.Quality = item.Some(uint32(v))
		case FieldPaintWear:
			r.Wear = math.Float32frombits(uint32(v))
		case FieldPaintSeed:
			r.PatternSeed = uint32(v)
		case FieldKillEaterScoreType:
			r.KillEaterScoreType = item.Some(uint32(v))
		case FieldKillEaterValue:
			r.KillEaterValue = item.Some(uint32(v))
		case FieldInventory:
			r.InventoryPos = item.Some(uint32(v))
		case FieldOrigin:
			r.Origin = item.Some(uint32(v))
		case FieldQuestID:
			r.QuestID = item.Some(uint32(v))
		case FieldDropReason:
			r.DropReason = item.Some(uint32(v))
		case FieldMusicIndex:
			r.MusicIndex = item.Some(uint32(v))
		case FieldEntIndex:
			r.EntIndex = item.Some(int32(int64(v)))
		case FieldPetIndex:
			r.PetIndex = item.Some(uint32(v))
		}
	}
	return r, nil
}

// DecodeDecoration parses one sticker/keychain submessage body.
func DecodeDecoration(payload []byte) (item.Decoration, error) {
	fields, err := wire.DecodeFields(payload)
	if err != nil {
		return item.Decoration{}, fmt.Errorf("%w: decoration: %v", ErrCodecTruncated, err)
	}

	var d item.Decoration
	for _, f := range fields {
		switch f.Type {
		case wire.TypeVarint:
			switch f.Number {
			case DecoSlot:
				d.Slot = uint32(f.Varint)
			case DecoAssetID:
				d.AssetID = uint32(f.Varint)
			case DecoTintID:
				d.TintID = item.Some(uint32(f.Varint))
			case DecoPattern:
				d.Pattern = item.Some(uint32(f.Varint))
			}
		case wire.TypeFixed32:
			v := item.Some(f.Float32())
			switch f.Number {
			case DecoWear:
				d.Wear = v
			case DecoScale:
				d.Scale = v
			case DecoRotation:
				d.Rotation = v
			case DecoOffsetX:
				d.OffsetX = v
			case DecoOffsetY:
				d.OffsetY = v
			case DecoOffsetZ:
				d.OffsetZ = v
			}
		}
	}
	return d, nil
}
