package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/upb/worldedit-policy/models"
)

// DefaultPolicyEnvPrefix prefixes every policy variable, e.g. WE_MAX_RADIUS
const DefaultPolicyEnvPrefix = "WE_"

// EnvPolicyLoader builds policy snapshots from the built-in defaults
// overlaid with prefixed environment variables.
//
// Scalar variables that are unset or blank keep their default. Block lists
// are comma-separated codes; a list variable that is set but blank yields an
// empty set, which is how the built-in disallow list is switched off.
type EnvPolicyLoader struct {
	Prefix       string
	WorkingDir   string
	SnapshotRepo models.SnapshotRepository

	lookup func(key string) (string, bool)
}

// NewEnvPolicyLoader creates a loader reading the process environment.
// repo is attached to every snapshot it builds and may be nil.
func NewEnvPolicyLoader(cfg PolicyConfig, repo models.SnapshotRepository) *EnvPolicyLoader {
	prefix := cfg.EnvPrefix
	if prefix == "" {
		prefix = DefaultPolicyEnvPrefix
	}
	return &EnvPolicyLoader{
		Prefix:       prefix,
		WorkingDir:   cfg.WorkingDir,
		SnapshotRepo: repo,
		lookup:       os.LookupEnv,
	}
}

// Load implements policy.Loader
func (l *EnvPolicyLoader) Load(ctx context.Context) (*models.Configuration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lookup := l.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	r := &envReader{prefix: l.Prefix, lookup: lookup}

	cfg := models.NewDefaultConfiguration()
	cfg.WorkingDir = l.WorkingDir
	cfg.SnapshotRepo = l.SnapshotRepo

	r.boolVar(&cfg.Profile, "PROFILE")
	r.blocksVar(&cfg.DisallowedBlocks, "DISALLOWED_BLOCKS")
	r.blocksVar(&cfg.AllowedDataCycleBlocks, "ALLOWED_DATA_CYCLE_BLOCKS")

	r.intVar(&cfg.DefaultChangeLimit, "DEFAULT_CHANGE_LIMIT")
	r.intVar(&cfg.MaxChangeLimit, "MAX_CHANGE_LIMIT")
	r.intVar(&cfg.DefaultMaxPolygonalPoints, "DEFAULT_MAX_POLYGONAL_POINTS")
	r.intVar(&cfg.MaxPolygonalPoints, "MAX_POLYGONAL_POINTS")
	r.intVar(&cfg.MaxRadius, "MAX_RADIUS")
	r.intVar(&cfg.MaxSuperPickaxeSize, "MAX_SUPER_PICKAXE_SIZE")
	r.intVar(&cfg.MaxBrushRadius, "MAX_BRUSH_RADIUS")
	r.intVar(&cfg.NavigationWandMaxDistance, "NAVIGATION_WAND_MAX_DISTANCE")
	r.intVar(&cfg.ButcherDefaultRadius, "BUTCHER_DEFAULT_RADIUS")
	r.intVar(&cfg.ButcherMaxRadius, "BUTCHER_MAX_RADIUS")

	r.stringVar(&cfg.ShellSaveType, "SHELL_SAVE_TYPE")
	r.boolVar(&cfg.LogCommands, "LOG_COMMANDS")
	r.stringVar(&cfg.LogFile, "LOG_FILE")

	r.itemVar(&cfg.WandItem, "WAND_ITEM")
	r.boolVar(&cfg.SuperPickaxeDrop, "SUPER_PICKAXE_DROP")
	r.boolVar(&cfg.SuperPickaxeManyDrop, "SUPER_PICKAXE_MANY_DROP")
	r.boolVar(&cfg.NoDoubleSlash, "NO_DOUBLE_SLASH")
	r.boolVar(&cfg.UseInventory, "USE_INVENTORY")
	r.boolVar(&cfg.UseInventoryOverride, "USE_INVENTORY_OVERRIDE")
	r.boolVar(&cfg.UseInventoryCreativeOverride, "USE_INVENTORY_CREATIVE_OVERRIDE")
	r.itemVar(&cfg.NavigationWand, "NAVIGATION_WAND")

	r.intVar(&cfg.ScriptTimeout, "SCRIPT_TIMEOUT")
	r.stringVar(&cfg.SaveDir, "SAVE_DIR")
	r.stringVar(&cfg.ScriptsDir, "SCRIPTS_DIR")
	r.boolVar(&cfg.ShowFirstUseVersion, "SHOW_FIRST_USE_VERSION")
	r.boolVar(&cfg.AllowExtraDataValues, "ALLOW_EXTRA_DATA_VALUES")
	r.boolVar(&cfg.AllowSymlinks, "ALLOW_SYMLINKS")

	r.intVar(&cfg.BlocksPerBatch, "BLOCKS_PER_BATCH")
	r.intVar(&cfg.BatchInterval, "BATCH_INTERVAL")
	r.intVar(&cfg.OperationQueueMaxSize, "OPERATION_QUEUE_MAX_SIZE")

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("invalid policy environment: %w", err)
	}
	return cfg, nil
}

// envReader overlays environment values and collects parse errors
type envReader struct {
	prefix string
	lookup func(key string) (string, bool)
	errs   []error
}

func (r *envReader) value(name string) (string, string, bool) {
	key := r.prefix + name
	v, ok := r.lookup(key)
	return key, strings.TrimSpace(v), ok
}

func (r *envReader) stringVar(p *string, name string) {
	if _, v, ok := r.value(name); ok && v != "" {
		*p = v
	}
}

func (r *envReader) intVar(p *int, name string) {
	key, v, ok := r.value(name)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*p = n
}

func (r *envReader) itemVar(p *models.ItemID, name string) {
	n := int(*p)
	r.intVar(&n, name)
	*p = models.ItemID(n)
}

func (r *envReader) boolVar(p *bool, name string) {
	key, v, ok := r.value(name)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return
	}
	*p = b
}

func (r *envReader) blocksVar(p *models.BlockSet, name string) {
	key, v, ok := r.value(name)
	if !ok {
		return
	}
	set := models.NewBlockSet()
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %q is not a block code", key, part))
			continue
		}
		set[models.BlockID(n)] = struct{}{}
	}
	*p = set
}
