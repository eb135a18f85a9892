package models

import (
	"encoding/json"
	"sort"
)

// BlockID is an opaque block code supplied by the host's block catalog
type BlockID int

// ItemID is an opaque item code supplied by the host's item catalog
type ItemID int

// Block codes referenced by the built-in defaults
const (
	BlockSapling             BlockID = 6
	BlockBedrock             BlockID = 7
	BlockGoldOre             BlockID = 14
	BlockIronOre             BlockID = 15
	BlockCoalOre             BlockID = 16
	BlockBed                 BlockID = 26
	BlockPoweredRail         BlockID = 27
	BlockDetectorRail        BlockID = 28
	BlockLongGrass           BlockID = 31
	BlockDeadBush            BlockID = 32
	BlockPistonExtension     BlockID = 34
	BlockPistonMovingPiece   BlockID = 36
	BlockYellowFlower        BlockID = 37
	BlockRedFlower           BlockID = 38
	BlockBrownMushroom       BlockID = 39
	BlockRedMushroom         BlockID = 40
	BlockTNT                 BlockID = 46
	BlockTorch               BlockID = 50
	BlockFire                BlockID = 51
	BlockRedstoneWire        BlockID = 55
	BlockDiamondOre          BlockID = 56
	BlockCrops               BlockID = 59
	BlockMinecartTracks      BlockID = 66
	BlockLever               BlockID = 69
	BlockRedstoneTorchOff    BlockID = 75
	BlockRedstoneTorchOn     BlockID = 76
	BlockStoneButton         BlockID = 77
	BlockCactus              BlockID = 81
	BlockReed                BlockID = 83
	BlockRedstoneRepeaterOff BlockID = 93
	BlockRedstoneRepeaterOn  BlockID = 94
)

// Item codes referenced by the built-in defaults
const (
	ItemWoodAxe ItemID = 271
	ItemCompass ItemID = 345
)

// DefaultDisallowedBlocks lists the blocks refused by default.
// The first group triggers physics or item drops when placed in bulk;
// the second group is ores and bedrock.
var DefaultDisallowedBlocks = []BlockID{
	// physics / drops
	BlockSapling, BlockBed, BlockPoweredRail,
	BlockDetectorRail, BlockLongGrass, BlockDeadBush,
	BlockPistonExtension, BlockPistonMovingPiece,
	BlockYellowFlower, BlockRedFlower, BlockBrownMushroom,
	BlockRedMushroom, BlockTNT, BlockTorch, BlockFire,
	BlockRedstoneWire, BlockCrops, BlockMinecartTracks,
	BlockLever, BlockRedstoneTorchOff,
	BlockRedstoneTorchOn, BlockRedstoneRepeaterOff,
	BlockRedstoneRepeaterOn, BlockStoneButton, BlockCactus,
	BlockReed,
	// ores and bedrock
	BlockBedrock, BlockGoldOre, BlockIronOre,
	BlockCoalOre, BlockDiamondOre,
}

// BlockSet is an unordered set of block codes
type BlockSet map[BlockID]struct{}

// NewBlockSet creates a BlockSet holding the given codes
func NewBlockSet(ids ...BlockID) BlockSet {
	s := make(BlockSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is a member of the set.
// A nil set contains nothing.
func (s BlockSet) Contains(id BlockID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of codes in the set
func (s BlockSet) Len() int {
	return len(s)
}

// Sorted returns the members in ascending order
func (s BlockSet) Sorted() []BlockID {
	ids := make([]BlockID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns an independent copy of the set
func (s BlockSet) Clone() BlockSet {
	c := make(BlockSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the set as a sorted array
func (s BlockSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of codes into the set
func (s *BlockSet) UnmarshalJSON(data []byte) error {
	var ids []BlockID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewBlockSet(ids...)
	return nil
}
