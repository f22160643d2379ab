package tool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ValidateAll ---

func TestValidateAll_AllNil(t *testing.T) {
	assert.NoError(t, ValidateAll(nil, nil, nil))
}

func TestValidateAll_Empty(t *testing.T) {
	assert.NoError(t, ValidateAll())
}

func TestValidateAll_ReturnsFirst(t *testing.T) {
	first := fmt.Errorf("first")
	second := fmt.Errorf("second")
	err := ValidateAll(nil, first, second)
	assert.Equal(t, first, err)
}

func TestValidateAll_IntegrationWithRequireField(t *testing.T) {
	err := ValidateAll(
		RequireField("query", "ok"),
		RequireField("url", ""),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'url' is required")
}

// --- RequireField ---

func TestRequireField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantMsg string
	}{
		{"present", "query", "golang", ""},
		{"whitespace-only passes (not trimmed)", "query", "   ", ""},
		{"missing names the field", "url", "", "'url' is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireField(tt.field, tt.value)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

// --- ValidateURL ---

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr string
	}{
		{"valid https", "https://example.com/path", ""},
		{"valid http", "http://localhost:8080", ""},
		{"missing scheme", "example.com", "scheme must be http or https"},
		{"ftp scheme", "ftp://example.com", "scheme must be http or https"},
		{"missing host", "http://", "missing host"},
		{"not a url", "://broken", "invalid url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL("url", tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

// --- ValidateRange ---

func TestValidateRange(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		min     int
		max     int
		wantErr bool
	}{
		{"at min", 1, 1, 20, false},
		{"at max", 20, 1, 20, false},
		{"below min", 0, 1, 20, true},
		{"above max", 30, 1, 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRange("count", tt.value, tt.min, tt.max)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "count must be 1-20")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- ValidateEnum ---

func TestValidateEnum(t *testing.T) {
	t.Run("empty value is allowed", func(t *testing.T) {
		assert.NoError(t, ValidateEnum("format", "", "text", "markdown"))
	})

	t.Run("listed value passes", func(t *testing.T) {
		assert.NoError(t, ValidateEnum("format", "markdown", "text", "markdown"))
	})

	t.Run("case sensitivity", func(t *testing.T) {
		err := ValidateEnum("format", "TEXT", "text", "markdown")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"TEXT"`)
	})

	t.Run("error lists allowed values", func(t *testing.T) {
		err := ValidateEnum("format", "pdf", "text", "markdown")
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "text")
		assert.Contains(t, msg, "markdown")
		assert.Contains(t, msg, `"pdf"`)
	})
}
