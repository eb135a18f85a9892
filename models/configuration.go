package models

import (
	"path/filepath"
)

// SnapshotRepository is an externally owned world-snapshot repository.
// The policy layer only carries the reference; it never looks inside.
type SnapshotRepository interface{}

// SnapshotDirectory is a SnapshotRepository rooted at a world-backup directory
type SnapshotDirectory string

// Configuration is one snapshot of the world-editing limits and toggles.
//
// Caps follow the unbounded-sentinel convention: a negative value means no
// limit is enforced. MaxRadius and MaxBrushRadius are checked with a "> 0"
// bounded test, so 0 is also unbounded for those two fields.
//
// A Configuration must not be modified once it has been published through
// policy.Store. Build a new value (see Clone) and publish that instead.
type Configuration struct {
	Profile bool `json:"profile"`

	DisallowedBlocks       BlockSet `json:"disallowed_blocks"`
	AllowedDataCycleBlocks BlockSet `json:"allowed_data_cycle_blocks"`

	DefaultChangeLimit        int `json:"default_change_limit"`
	MaxChangeLimit            int `json:"max_change_limit"`
	DefaultMaxPolygonalPoints int `json:"default_max_polygonal_points"`
	MaxPolygonalPoints        int `json:"max_polygonal_points"`
	MaxRadius                 int `json:"max_radius"`
	MaxSuperPickaxeSize       int `json:"max_super_pickaxe_size"`
	MaxBrushRadius            int `json:"max_brush_radius"`
	NavigationWandMaxDistance int `json:"navigation_wand_max_distance"`
	ButcherDefaultRadius      int `json:"butcher_default_radius"`
	ButcherMaxRadius          int `json:"butcher_max_radius"`

	ShellSaveType string             `json:"shell_save_type"`
	SnapshotRepo  SnapshotRepository `json:"-"`

	LogCommands bool   `json:"log_commands"`
	LogFile     string `json:"log_file"`

	WandItem             ItemID `json:"wand_item"`
	SuperPickaxeDrop     bool   `json:"super_pickaxe_drop"`
	SuperPickaxeManyDrop bool   `json:"super_pickaxe_many_drop"`
	NoDoubleSlash        bool   `json:"no_double_slash"`

	UseInventory                 bool `json:"use_inventory"`
	UseInventoryOverride         bool `json:"use_inventory_override"`
	UseInventoryCreativeOverride bool `json:"use_inventory_creative_override"`

	NavigationWand ItemID `json:"navigation_wand"`

	// ScriptTimeout is in milliseconds
	ScriptTimeout int `json:"script_timeout" validate:"gte=0"`

	SaveDir             string `json:"save_dir"`
	ScriptsDir          string `json:"scripts_dir"`
	ShowFirstUseVersion bool   `json:"show_first_use_version"`

	AllowExtraDataValues bool `json:"allow_extra_data_values"`
	AllowSymlinks        bool `json:"allow_symlinks"`

	BlocksPerBatch        int `json:"blocks_per_batch" validate:"gte=1"`
	BatchInterval         int `json:"batch_interval" validate:"gte=0"`
	OperationQueueMaxSize int `json:"operation_queue_max_size" validate:"gte=1"`

	// WorkingDir is the root for auxiliary storage; empty means the
	// process working directory
	WorkingDir string `json:"working_dir"`
}

// NewDefaultConfiguration returns the built-in defaults
func NewDefaultConfiguration() *Configuration {
	return &Configuration{
		DisallowedBlocks:       NewBlockSet(DefaultDisallowedBlocks...),
		AllowedDataCycleBlocks: NewBlockSet(),

		DefaultChangeLimit:        -1,
		MaxChangeLimit:            -1,
		DefaultMaxPolygonalPoints: -1,
		MaxPolygonalPoints:        20,
		MaxRadius:                 -1,
		MaxSuperPickaxeSize:       5,
		MaxBrushRadius:            6,
		NavigationWandMaxDistance: 50,
		ButcherDefaultRadius:      -1,
		ButcherMaxRadius:          -1,

		WandItem:             ItemWoodAxe,
		SuperPickaxeDrop:     true,
		SuperPickaxeManyDrop: true,
		NavigationWand:       ItemCompass,

		ScriptTimeout:       3000,
		SaveDir:             "schematics",
		ScriptsDir:          "craftscripts",
		ShowFirstUseVersion: true,

		BlocksPerBatch:        10000,
		BatchInterval:         1,
		OperationQueueMaxSize: 4,
	}
}

// Clone returns a deep copy of the configuration.
// The snapshot repository reference is shared, not copied.
func (c *Configuration) Clone() *Configuration {
	cp := *c
	cp.DisallowedBlocks = c.DisallowedBlocks.Clone()
	cp.AllowedDataCycleBlocks = c.AllowedDataCycleBlocks.Clone()
	return &cp
}

// WorkingDirectory returns the directory auxiliary data files are stored under
func (c *Configuration) WorkingDirectory() string {
	if c.WorkingDir == "" {
		return "."
	}
	return c.WorkingDir
}

// SchematicsDirectory returns SaveDir resolved against the working directory
func (c *Configuration) SchematicsDirectory() string {
	return c.resolve(c.SaveDir)
}

// ScriptsDirectory returns ScriptsDir resolved against the working directory
func (c *Configuration) ScriptsDirectory() string {
	return c.resolve(c.ScriptsDir)
}

func (c *Configuration) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.WorkingDirectory(), dir)
}
