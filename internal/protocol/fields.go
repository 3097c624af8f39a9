package protocol

// Item field numbers. Stable across encode and decode.
const (
	FieldAccountID          uint32 = 1
	FieldItemID             uint32 = 2
	FieldDefIndex           uint32 = 3
	FieldPaintIndex         uint32 = 4
	FieldRarity             uint32 = 5
	FieldQuality            uint32 = 6
	FieldPaintWear          uint32 = 7 // float bits carried as a varint
	FieldPaintSeed          uint32 = 8
	FieldKillEaterScoreType uint32 = 9
	FieldKillEaterValue     uint32 = 10
	FieldCustomName         uint32 = 11
	FieldSticker            uint32 = 12
	FieldInventory          uint32 = 13
	FieldOrigin             uint32 = 14
	FieldQuestID            uint32 = 15
	FieldDropReason         uint32 = 16
	FieldMusicIndex         uint32 = 17
	FieldEntIndex           uint32 = 18
	FieldPetIndex           uint32 = 19
	FieldKeychain           uint32 = 20
)

// Decoration field numbers, shared by stickers and keychains.
const (
	DecoSlot     uint32 = 1
	DecoAssetID  uint32 = 2
	DecoWear     uint32 = 3
	DecoScale    uint32 = 4
	DecoRotation uint32 = 5
	DecoTintID   uint32 = 6
	DecoOffsetX  uint32 = 7
	DecoOffsetY  uint32 = 8
	DecoOffsetZ  uint32 = 9
	DecoPattern  uint32 = 10
)
