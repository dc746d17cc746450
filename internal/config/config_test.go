package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/mvtypes-go/internal/analysis"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, analysis.DefaultOptions(), cfg.Options())
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "fixes", cfg.DBTable)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MVTYPES_THRESHOLD", "5")
	t.Setenv("MVTYPES_OUT_EPSG", "900913")
	t.Setenv("MVTYPES_CLASSIFY_NUM", "3")
	t.Setenv("MVTYPES_JWT_SECRET", "s3cret")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.Threshold)
	assert.Equal(t, 900913, cfg.OutEPSG)
	assert.Equal(t, 3, cfg.ClassifyNum)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoad_Invalid(t *testing.T) {
	v := New()
	v.Set("in_epsg", 2154)
	v.Set("workers", 0)
	v.Set("log_format", "xml")
	v.Set("threshold", -3)

	_, err := Load(v)
	require.Error(t, err)
	for _, want := range []string{"in_epsg 2154", "workers", "log_format", "threshold"} {
		assert.Contains(t, err.Error(), want)
	}
}
