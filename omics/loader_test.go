package omics

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tsawler/go-moli/dataset"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func drugFixture(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"data/Cisplatin/expression.tsv": "gene\ts1\ts2\ts3\ts4\n" +
			"g1\t0\t4\t0\t4\n" +
			"g2\t1\t1\t1\t1\n",
		"data/Cisplatin/mutation.tsv": "gene\ts1\ts2\ts3\ts4\n" +
			"m1\t0\t1\t0\t1\n" +
			"m2\t0\t0\t0\t0\n",
		"data/Cisplatin/cna.tsv": "gene\ts1\ts2\ts3\ts4\n" +
			"c1\t-1\t1\t-1\t1\n" +
			"c2\t0\t0,1\t0\t0,1\n",
		"data/Cisplatin/response.tsv": "sample\tresponse\n" +
			"s4\tS\n" +
			"s3\tR\n" +
			"s2\t1\n" +
			"s1\t0\n",
		"data/Cisplatin/TCGA/expression.tsv": "gene\te1\te2\n" +
			"g2\t5\t5\n" +
			"g1\t2,5\t3,5\n",
		"data/Cisplatin/TCGA/mutation.tsv": "gene\te1\te2\n" +
			"m1\t1\t0\n",
		"data/Cisplatin/TCGA/cna.tsv": "gene\te1\te2\n" +
			"c1\t0\t1\n" +
			"c9\t0\t1\n",
		"data/Cisplatin/TCGA/response.tsv": "sample\tresponse\n" +
			"e2\t0\n" +
			"e1\t1\n",
	})
	return fs
}

func TestTSVLoader(t *testing.T) {
	loader := NewTSVLoader(drugFixture(t), "data", zaptest.NewLogger(t))
	internal, external, err := loader.LoadDrugData("Cisplatin", "TCGA")
	require.NoError(t, err)

	t.Run("internal cohort follows the response order", func(t *testing.T) {
		assert.Equal(t, []int{1, 0, 1, 0}, internal.Response)
		assert.Equal(t, 1, internal.Features(dataset.Expression))
		assert.Equal(t, []float64{4, 0, 4, 0}, internal.Expression.RawMatrix().Data)
		assert.Equal(t, []float64{1, 0, 1, 0}, internal.Mutation.RawMatrix().Data)
		assert.Equal(t, []float64{1, -1, 1, -1}, internal.CNA.RawMatrix().Data)
	})

	t.Run("external cohort keeps the internal features", func(t *testing.T) {
		assert.Equal(t, []int{0, 1}, external.Response)
		assert.Equal(t, []float64{3.5, 2.5}, external.Expression.RawMatrix().Data)
		assert.Equal(t, []float64{0, 1}, external.Mutation.RawMatrix().Data)
		assert.Equal(t, []float64{1, 0}, external.CNA.RawMatrix().Data)
	})
}

func TestTSVLoaderErrors(t *testing.T) {
	t.Run("missing external cohort", func(t *testing.T) {
		_, _, err := NewTSVLoader(drugFixture(t), "data", nil).LoadDrugData("Cisplatin", "PDX")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PDX")
	})

	t.Run("external cohort lacks a selected feature", func(t *testing.T) {
		fs := drugFixture(t)
		writeFiles(t, fs, map[string]string{
			"data/Cisplatin/TCGA/mutation.tsv": "gene\te1\te2\nm7\t1\t0\n",
		})
		_, _, err := NewTSVLoader(fs, "data", nil).LoadDrugData("Cisplatin", "TCGA")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `feature "m1" is missing`)
	})

	t.Run("response without matrix sample", func(t *testing.T) {
		fs := drugFixture(t)
		writeFiles(t, fs, map[string]string{
			"data/Cisplatin/response.tsv": "sample\tresponse\ns5\t1\n",
		})
		_, _, err := NewTSVLoader(fs, "data", nil).LoadDrugData("Cisplatin", "TCGA")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `sample "s5" is missing`)
	})
}

func TestReadTable(t *testing.T) {
	table, err := ReadTable(strings.NewReader("gene\ta\tb\nx\t1,5\t-2\ny\t3\t4e-1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Samples)
	assert.Equal(t, []string{"x", "y"}, table.Features)
	assert.Equal(t, []float64{1.5, 3, -2, 0.4}, table.Data.RawMatrix().Data)

	_, err = ReadTable(strings.NewReader("gene\ta\tb\nx\t1\n"))
	assert.Error(t, err)

	_, err = ReadTable(strings.NewReader("gene\ta\nx\tnan-ish\n"))
	assert.Error(t, err)
}

func TestReadResponseRejectsNonBinary(t *testing.T) {
	_, _, err := ReadResponse(strings.NewReader("sample\tresponse\na\t2\n"))
	assert.Error(t, err)
}
