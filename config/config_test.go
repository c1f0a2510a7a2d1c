package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/MGKernel/bc"
	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/partitions"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "mgk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.InDelta(t, 2.0/3.0, cfg.Smoother.JacobiWeight, 1e-15)
	assert.Equal(t, partitions.BlockPartition, cfg.Mesh.Strategy())
	assert.Equal(t, logrus.InfoLevel, cfg.Runtime.Level())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
operator:
  alpha: 0.5
  beta: 2
  a: 1
  b: 3
mesh:
  dim: 3
  cells: 16
  max_grid_size: 8
  levels: 2
  periodic: [true, false, false]
  partition: cells
boundary:
  lo: [neumann, dirichlet, robin]
  hi: [neumann]
  robin_a: 2
  robin_b: 0.5
smoother:
  kind: jacobi
runtime:
  log_level: debug
`)
	t.Setenv("MGK_BETA", "4")
	t.Setenv("MGK_WORKERS", "3")
	t.Setenv("MGK_DEVICE", "Serial")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Operator.Alpha)
	assert.Equal(t, 4.0, cfg.Operator.Beta, "environment wins over the file")
	assert.Equal(t, 3, cfg.Mesh.Dim)
	assert.Equal(t, 1.0, cfg.Mesh.Length, "defaults survive a partial file")
	assert.Equal(t, partitions.CellBalanced, cfg.Mesh.Strategy())
	assert.True(t, cfg.Mesh.IsPeriodic(0))
	assert.False(t, cfg.Mesh.IsPeriodic(2))
	assert.Equal(t, "jacobi", cfg.Smoother.Kind)
	assert.Equal(t, 10, cfg.Smoother.Sweeps)
	assert.Equal(t, 3, cfg.Runtime.Workers)
	assert.Equal(t, "Serial", cfg.Runtime.Device)
	assert.Equal(t, logrus.DebugLevel, cfg.Runtime.Level())

	cases := []struct {
		face box.Side
		dir  int
		kind bc.Kind
	}{
		{box.Low, 0, bc.Neumann},
		{box.Low, 1, bc.Dirichlet},
		{box.Low, 2, bc.Robin},
		{box.High, 0, bc.Neumann},
		{box.High, 2, bc.Dirichlet},
	}
	for _, tc := range cases {
		cond := cfg.Boundary.Condition(bc.Face{Dir: tc.dir, Side: tc.face}, nil)
		assert.Equal(t, tc.kind, cond.Kind, "%v %d", tc.face, tc.dir)
	}
	a, b := cfg.Boundary.Condition(bc.Face{Dir: 2, Side: box.Low}, nil).Coefficients()
	assert.Equal(t, 2.0, a)
	assert.Equal(t, 0.5, b)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "load config file")
	})
	t.Run("bad_yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "mesh: [unclosed"))
		assert.ErrorContains(t, err, "parse config file")
	})
	t.Run("bad_env", func(t *testing.T) {
		t.Setenv("MGK_LEVELS", "three")
		_, err := Load("")
		assert.ErrorContains(t, err, "MGK_LEVELS")
	})

	invalid := map[string]string{
		"dim":           "mesh:\n  dim: 4\n",
		"bc_kind":       "boundary:\n  lo: [periodic]\n",
		"partition":     "mesh:\n  partition: metis\n",
		"jacobi_weight": "smoother:\n  jacobi_weight: 1.5\n",
		"extrap_order":  "smoother:\n  extrap_order: 2\n",
		"log_level":     "runtime:\n  log_level: loud\n",
		"b_positive":    "operator:\n  b: 0\n",
		"coarsenable":   "mesh:\n  cells: 24\n  max_grid_size: 12\n  levels: 4\n",
		"grid_size":     "mesh:\n  cells: 16\n  max_grid_size: 32\n",
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestApplyEnv_BoundaryKind(t *testing.T) {
	cfg := Default()
	env := map[string]string{"MGK_BC": "Neumann", "MGK_SMOOTHER": "jacobi"}
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, []string{"neumann", "neumann", "neumann"}, cfg.Boundary.Hi)
	assert.Equal(t, "jacobi", cfg.Smoother.Kind)
	assert.NoError(t, cfg.Validate())
}
