package rules_test

import (
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"testing"
)

func TestTimeOfDay_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    rules.TimeOfDay
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "long",
			input:   "23:30:15",
			want:    rules.TimeOfDay{Hour: 23, Minutes: 30, Seconds: 15},
			wantErr: assert.NoError,
		},
		{
			name:    "short",
			input:   "06:00",
			want:    rules.TimeOfDay{Hour: 6},
			wantErr: assert.NoError,
		},
		{
			name:    "invalid",
			input:   "aa:30:00",
			wantErr: assert.Error,
		},
		{
			name:    "too long",
			input:   "123:30:00",
			wantErr: assert.Error,
		},
		{
			name:    "too short",
			input:   "23",
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var output rules.TimeOfDay
			tt.wantErr(t, yaml.Unmarshal([]byte(tt.input), &output))
			assert.Equal(t, tt.want, output)
		})
	}
}

func TestTimeOfDay_MarshalYAML(t *testing.T) {
	ts := rules.TimeOfDay{Hour: 22, Minutes: 30}
	output, err := yaml.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, "\"22:30:00\"\n", string(output))
}
