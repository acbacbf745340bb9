package hyperparams

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const record = `{'mini_batch': 16, 'h_dim1': 32, 'h_dim2': 16.0, 'h_dim3': 8, ` +
	`'lr_e': 0.001, 'lr_m': 1e-3, 'lr_c': 0.01, 'lr_cl': 0.005, ` +
	`'dropout_rate_e': 0.1, 'dropout_rate_m': 0.2, 'dropout_rate_c': 0.3, 'dropout_rate_clf': 0.4, ` +
	`'weight_decay': 0.0001, 'gamma': 0.5, 'margin': 1.0, 'epochs': 10, 'epochs_cl': 5, ` +
	`"semi_hard_triplet": True}`

func TestParseMapping(t *testing.T) {
	t.Run("accepts both quote styles and a trailing comma", func(t *testing.T) {
		m, err := ParseMapping(`{'a': 1, "b": 'x', 'c': -2.5e-1, 'd': None, 'e': False,}`)
		require.NoError(t, err)
		require.Len(t, m, 5)
		assert.Equal(t, Entry{"a", Value{Kind: NumberValue, Num: 1}}, m[0])
		assert.Equal(t, Value{Kind: StringValue, Str: "x"}, m[1].Value)
		assert.Equal(t, -0.25, m[2].Value.Num)
		assert.Equal(t, NoneValue, m[3].Value.Kind)
		assert.Equal(t, Value{Kind: BoolValue}, m[4].Value)
	})

	t.Run("strips one pair of wrapping quotes", func(t *testing.T) {
		m, err := ParseMapping(`'{"a": 1}'`)
		require.NoError(t, err)
		assert.Len(t, m, 1)
	})

	t.Run("empty mapping", func(t *testing.T) {
		m, err := ParseMapping(`{}`)
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	bad := map[string]string{
		"code":           `__import__('os').system('true')`,
		"call in value":  `{'a': print(1)}`,
		"unquoted key":   `{a: 1}`,
		"unterminated":   `{'a': 1`,
		"nested mapping": `{'a': {'b': 1}}`,
		"list value":     `{'a': [1, 2]}`,
		"trailing text":  `{'a': 1} and more`,
		"bad number":     `{'a': 1.2.3}`,
		"open string":    `{'a: 1}`,
	}
	for name, src := range bad {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := ParseMapping(src)
			var syntaxErr *SyntaxError
			assert.True(t, errors.As(err, &syntaxErr), "got %v", err)
		})
	}
}

func TestFromMapping(t *testing.T) {
	m, err := ParseMapping(record)
	require.NoError(t, err)
	p, err := FromMapping(m)
	require.NoError(t, err)

	assert.Equal(t, 16, p.MiniBatch)
	assert.Equal(t, 16, p.HDim2, "integral floats are accepted for integer keys")
	assert.Equal(t, 0.001, p.LRMutation)
	assert.Equal(t, 0.4, p.DropoutClassifier)
	assert.Equal(t, 0.0001, p.WeightDecayClassifier, "classifier weight decay defaults to weight_decay")
	assert.True(t, p.SemiHardTriplet)
	assert.True(t, p.ScaleExpression)

	t.Run("unknown key", func(t *testing.T) {
		m, _ := ParseMapping(strings.Replace(record, "{", "{'surprise': 1, ", 1))
		_, err := FromMapping(m)
		assert.ErrorContains(t, err, `unknown key "surprise"`)
	})

	t.Run("missing key", func(t *testing.T) {
		m, _ := ParseMapping(strings.Replace(record, "'epochs': 10, ", "", 1))
		_, err := FromMapping(m)
		assert.ErrorContains(t, err, "missing keys: epochs")
	})

	t.Run("wrong type", func(t *testing.T) {
		m, _ := ParseMapping(strings.Replace(record, "'mini_batch': 16", "'mini_batch': '16'", 1))
		_, err := FromMapping(m)
		assert.ErrorContains(t, err, "mini_batch")
	})

	t.Run("fractional integer", func(t *testing.T) {
		m, _ := ParseMapping(strings.Replace(record, "'epochs': 10", "'epochs': 10.5", 1))
		_, err := FromMapping(m)
		assert.Error(t, err)
	})

	t.Run("out of range dropout", func(t *testing.T) {
		m, _ := ParseMapping(strings.Replace(record, "'dropout_rate_e': 0.1", "'dropout_rate_e': 1.0", 1))
		_, err := FromMapping(m)
		assert.ErrorContains(t, err, "dropout_rate_e must be in [0, 1)")
	})
}

func TestReadLog(t *testing.T) {
	log := strings.Join([]string{
		"INFO starting search",
		"best_parameters = '" + record + "'",
		"test auroc 0.7",
		"best_parameters=" + record,
		"",
	}, "\n")

	records, err := ReadLog(strings.NewReader(log), "logs.txt")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	t.Run("malformed record is a ConfigParseError", func(t *testing.T) {
		broken := log + "best_parameters = '{'mini_batch': }'\n"
		_, err := ReadLog(strings.NewReader(broken), "logs.txt")
		var parseErr *ConfigParseError
		require.True(t, errors.As(err, &parseErr), "got %v", err)
		assert.Equal(t, 5, parseErr.Line)
		assert.Equal(t, "logs.txt", parseErr.File)
		assert.Contains(t, err.Error(), "logs.txt:5")
	})

	t.Run("missing equals sign", func(t *testing.T) {
		_, err := ReadLog(strings.NewReader("best_parameters " + record), "x")
		var parseErr *ConfigParseError
		assert.True(t, errors.As(err, &parseErr))
	})

	t.Run("load from filesystem", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/r/logs.txt", []byte(log), 0o644))
		records, err := LoadLog(fs, "/r/logs.txt")
		require.NoError(t, err)
		assert.Len(t, records, 2)

		_, err = LoadLog(fs, "/r/missing.txt")
		assert.Error(t, err)
	})
}
