package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := Load(fs, "moli.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
	assert.Equal(t, 5, c.CrossVal.Splits)
	assert.Equal(t, uint64(42), c.CrossVal.Seed)
	assert.Equal(t, "TCGA", c.Drugs.External["Cisplatin"])
	assert.True(t, c.Drugs.IsExcluded("EGFR"))
	assert.True(t, c.Drugs.IsExcluded("ensemble"))
	assert.False(t, c.Drugs.IsExcluded("Docetaxel"))
}

func TestLoadOverridesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := `
[crossval]
seed = 7

[loader]
workers = 2

[drugs.external]
Vorinostat = "TCGA"

[log]
level = "debug"
`
	require.NoError(t, afero.WriteFile(fs, "moli.toml", []byte(src), 0o644))

	c, err := Load(fs, "moli.toml")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), c.CrossVal.Seed)
	assert.Equal(t, 5, c.CrossVal.Splits, "unset keys keep defaults")
	assert.Equal(t, 2, c.Loader.Workers)
	assert.Equal(t, "TCGA", c.Drugs.External["Vorinostat"])
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"single split":     "[crossval]\nsplits = 1\n",
		"unknown level":    "[log]\nlevel = \"loud\"\n",
		"negative workers": "[loader]\nworkers = -1\n",
		"malformed toml":   "[crossval\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "moli.toml", []byte(src), 0o644))
			_, err := Load(fs, "moli.toml")
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := DefaultConfig()
	c.Output.Plot = false
	require.NoError(t, c.Save(fs, "out.toml"))

	loaded, err := Load(fs, "out.toml")
	require.NoError(t, err)
	assert.False(t, loaded.Output.Plot)
	assert.Equal(t, c.Drugs.Names(), loaded.Drugs.Names())
}
