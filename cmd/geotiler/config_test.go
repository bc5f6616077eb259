package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestApplyConfig(t *testing.T) {
	fs := pflag.NewFlagSet("resample", pflag.ContinueOnError)
	scale := fs.Float64("scale", 2, "")
	algorithm := fs.String("algorithm", "average", "")
	workers := fs.Int("workers", 0, "")
	cog := fs.Bool("cog", false, "")
	splits := fs.StringSlice("splits", []string{"train", "val", "test"}, "")
	gdalConfig := fs.StringArray("gdal-config", nil, "")
	fs.String("config", "", "")
	require.NoError(t, fs.Parse([]string{"--workers", "3"}))

	values := map[string]interface{}{}
	require.NoError(t, yaml.Unmarshal([]byte(`
scale: 2.5
algorithm: lanczos
workers: 8
cog: true
splits: [train, val]
gdal-config:
  - GDAL_CACHEMAX=512
  - GDAL_NUM_THREADS=2
config: other.yaml
tilesize: 512
`), &values))
	ignored, err := applyConfig(fs, values)
	require.NoError(t, err)
	assert.Equal(t, []string{"tilesize"}, ignored)
	assert.Equal(t, 2.5, *scale)
	assert.Equal(t, "lanczos", *algorithm)
	assert.Equal(t, 3, *workers)
	assert.True(t, *cog)
	assert.Equal(t, []string{"train", "val"}, *splits)
	assert.Equal(t, []string{"GDAL_CACHEMAX=512", "GDAL_NUM_THREADS=2"}, *gdalConfig)
	assert.Equal(t, "", fs.Lookup("config").Value.String())

	_, err = applyConfig(fs, map[string]interface{}{"cog": "maybe"})
	assert.Error(t, err)
}

func TestConfigString(t *testing.T) {
	assert.Equal(t, "1000000", configString(float64(1e6)))
	assert.Equal(t, "0.25", configString(0.25))
	assert.Equal(t, "true", configString(true))
	assert.Equal(t, "gs://bucket/a.tif", configString("gs://bucket/a.tif"))
}
