// Package config loads the settings of an operator run from YAML, the
// environment and built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/notargets/MGKernel/bc"
	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/partitions"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override
const EnvPrefix = "MGK_"

// Config contains everything needed to build and relax an operator
type Config struct {
	Operator OperatorConfig `yaml:"operator"`
	Mesh     MeshConfig     `yaml:"mesh"`
	Boundary BoundaryConfig `yaml:"boundary"`
	Smoother SmootherConfig `yaml:"smoother"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
}

// OperatorConfig holds the scalars and the constant coefficients the run starts from
type OperatorConfig struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
	A     float64 `yaml:"a" validate:"gte=0"`
	B     float64 `yaml:"b" validate:"gt=0"`
}

type MeshConfig struct {
	Dim         int     `yaml:"dim" validate:"oneof=2 3"`
	Cells       int     `yaml:"cells" validate:"gte=2"`
	MaxGridSize int     `yaml:"max_grid_size" validate:"gte=1"`
	Length      float64 `yaml:"length" validate:"gt=0"`
	Levels      int     `yaml:"levels" validate:"gte=1,lte=16"`
	Periodic    []bool  `yaml:"periodic" validate:"max=3"`
	Ranks       int     `yaml:"ranks" validate:"gte=1"`
	Partition   string  `yaml:"partition" validate:"partition"`
}

// BoundaryConfig names the condition on the low and high face of each direction
type BoundaryConfig struct {
	Lo     []string `yaml:"lo" validate:"max=3,dive,bckind"`
	Hi     []string `yaml:"hi" validate:"max=3,dive,bckind"`
	RobinA float64  `yaml:"robin_a"`
	RobinB float64  `yaml:"robin_b"`
}

type SmootherConfig struct {
	Kind         string  `yaml:"kind" validate:"oneof=gsrb jacobi"`
	Sweeps       int     `yaml:"sweeps" validate:"gte=1"`
	JacobiWeight float64 `yaml:"jacobi_weight" validate:"gt=0,lte=1"`
	ExtrapOrder  int     `yaml:"extrap_order" validate:"oneof=0 1"`
}

type RuntimeConfig struct {
	Workers  int    `yaml:"workers" validate:"gte=0"`
	Device   string `yaml:"device"`
	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	mustRegister("bckind", func(fl validator.FieldLevel) bool {
		_, err := bc.ParseKind(fl.Field().String())
		return err == nil
	})
	mustRegister("partition", func(fl validator.FieldLevel) bool {
		_, err := partitions.ParsePartitionStrategy(fl.Field().String())
		return err == nil
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("config: register validator %s: %v", tag, err))
	}
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Operator: OperatorConfig{Alpha: 1, Beta: 1, A: 0, B: 1},
		Mesh: MeshConfig{
			Dim:         2,
			Cells:       32,
			MaxGridSize: 16,
			Length:      1,
			Levels:      3,
			Ranks:       1,
			Partition:   partitions.BlockPartition.String(),
		},
		Boundary: BoundaryConfig{RobinA: 1, RobinB: 1},
		Smoother: SmootherConfig{Kind: "gsrb", Sweeps: 10, JacobiWeight: 2.0 / 3.0, ExtrapOrder: 1},
		Runtime:  RuntimeConfig{Device: "auto", LogLevel: "info"},
	}
}

// Load builds the configuration in the order defaults, file, environment and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, fmt.Errorf("environment override: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	floats := map[string]*float64{
		"ALPHA":         &c.Operator.Alpha,
		"BETA":          &c.Operator.Beta,
		"JACOBI_WEIGHT": &c.Smoother.JacobiWeight,
	}
	ints := map[string]*int{
		"DIM":           &c.Mesh.Dim,
		"CELLS":         &c.Mesh.Cells,
		"MAX_GRID_SIZE": &c.Mesh.MaxGridSize,
		"LEVELS":        &c.Mesh.Levels,
		"RANKS":         &c.Mesh.Ranks,
		"SWEEPS":        &c.Smoother.Sweeps,
		"EXTRAP_ORDER":  &c.Smoother.ExtrapOrder,
		"WORKERS":       &c.Runtime.Workers,
	}
	strs := map[string]*string{
		"PARTITION": &c.Mesh.Partition,
		"SMOOTHER":  &c.Smoother.Kind,
		"DEVICE":    &c.Runtime.Device,
		"LOG_LEVEL": &c.Runtime.LogLevel,
	}
	for name, dst := range floats {
		if v, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = f
		}
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = i
		}
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvPrefix + "BC"); ok {
		// one kind for every face
		kinds := make([]string, 3)
		for d := range kinds {
			kinds[d] = strings.ToLower(v)
		}
		c.Boundary.Lo, c.Boundary.Hi = kinds, append([]string(nil), kinds...)
	}
	return nil
}

// Validate checks field constraints and the relations between fields
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Mesh.MaxGridSize > c.Mesh.Cells {
		return fmt.Errorf("max_grid_size %d exceeds cells %d", c.Mesh.MaxGridSize, c.Mesh.Cells)
	}
	// every level must be coarsenable by two, including the boxes
	ratio := 1 << (c.Mesh.Levels - 1)
	if c.Mesh.Cells%ratio != 0 || c.Mesh.MaxGridSize%ratio != 0 {
		return fmt.Errorf("cells %d and max_grid_size %d must be multiples of %d for %d levels",
			c.Mesh.Cells, c.Mesh.MaxGridSize, ratio, c.Mesh.Levels)
	}
	return nil
}

// Strategy returns the parsed partition strategy
func (c MeshConfig) Strategy() partitions.PartitionStrategy {
	s, _ := partitions.ParsePartitionStrategy(c.Partition)
	return s
}

// IsPeriodic reports whether direction d wraps around
func (c MeshConfig) IsPeriodic(d int) bool {
	return d < len(c.Periodic) && c.Periodic[d]
}

// Condition returns the condition on one face, homogeneous Dirichlet when the
// face is not listed. g supplies the boundary values.
func (c BoundaryConfig) Condition(face bc.Face, g bc.ValueFunc) bc.Condition {
	names := c.Lo
	if face.Side == box.High {
		names = c.Hi
	}
	if face.Dir >= len(names) {
		return bc.DirichletCondition(g)
	}
	kind, _ := bc.ParseKind(names[face.Dir])
	switch kind {
	case bc.Neumann:
		return bc.NeumannCondition(g)
	case bc.Robin:
		return bc.RobinCondition(c.RobinA, c.RobinB, g)
	default:
		return bc.DirichletCondition(g)
	}
}

// Level parses the log level
func (c RuntimeConfig) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
