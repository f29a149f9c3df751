package coder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsFromSettings(t *testing.T) {
	opts := OptionsFromSettings(map[string]string{
		SettingCharset:   "iso-8859-15",
		SettingAllowNone: "true",
	})

	assert.Equal(t, Options{AllowNone: true, Encoding: "iso-8859-15"}, opts)
	assert.Equal(t, "iso-8859-15", opts.Charset())
	assert.NoError(t, opts.Validate())
}

func TestOptionsFromSettings_empty(t *testing.T) {
	opts := OptionsFromSettings(nil)

	assert.Equal(t, Options{}, opts)
	assert.Equal(t, DefaultEncoding, opts.Charset())
	assert.NoError(t, opts.Validate())
}

func TestOptions_Charset(t *testing.T) {
	tests := map[string]string{
		"":             DefaultEncoding,
		"  ":           DefaultEncoding,
		"\t\n":         DefaultEncoding,
		" iso-8859-1 ": "iso-8859-1",
		"windows-1252": "windows-1252",
	}

	for enc, want := range tests {
		assert.Equal(t, want, Options{Encoding: enc}.Charset(), "%q", enc)
	}
}

func TestAsBool(t *testing.T) {
	for _, s := range []string{"t", "true", "y", "yes", "on", "1", "TRUE", " Yes "} {
		assert.True(t, AsBool(s), s)
	}
	for _, s := range []string{"", "f", "false", "no", "off", "0", "2", "enabled"} {
		assert.False(t, AsBool(s), s)
	}
}

func TestLookupEncoding(t *testing.T) {
	for _, name := range []string{"", "utf-8", "UTF-8", "utf8", "utf_8"} {
		enc, err := LookupEncoding(name)
		assert.NoError(t, err, name)
		assert.Nil(t, enc, name)
	}

	for _, name := range []string{"us-ascii", "iso-8859-1", "ISO-8859-15", "windows-1252", "ascii", "ASCII", "latin1", "latin_1", "iso8859_15", "cp1252"} {
		enc, err := LookupEncoding(name)
		assert.NoError(t, err, name)
		assert.NotNil(t, enc, name)
	}

	_, err := LookupEncoding("no-such-charset")
	var eerr *EncodingError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "no-such-charset", eerr.Charset)
}

func TestDateTime(t *testing.T) {
	tm := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	dt := NewDateTime(tm)

	assert.Equal(t, "20240102T03:04:05", dt.Value)
	assert.Equal(t, "20240102T03:04:05", dt.String())

	got, err := dt.Time()
	require.NoError(t, err)
	assert.True(t, tm.Equal(got))

	for _, s := range []string{"2024-01-02T03:04:05", "20240102T03:04:05Z", "20240102T030405"} {
		got, err := DateTime{Value: s}.Time()
		require.NoError(t, err, s)
		assert.True(t, tm.Equal(got), s)
	}

	_, err = DateTime{Value: "yesterday"}.Time()
	assert.Error(t, err)
}

func TestNewDateTime_zone(t *testing.T) {
	tm := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("CEST", 2*60*60))
	dt := NewDateTime(tm)

	assert.Equal(t, "20240102T01:04:05", dt.Value)

	got, err := dt.Time()
	require.NoError(t, err)
	assert.True(t, tm.Equal(got), "got %s", got)
}

func TestNewResult(t *testing.T) {
	resp := NewResult("what")
	assert.Equal(t, "what", resp.Result)
	assert.Nil(t, resp.Fault)
}
