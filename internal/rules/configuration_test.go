package rules_test

import (
	"bytes"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	c, err := rules.Load(bytes.NewBufferString(`
domains:
  - name: climate
    deviceGroups: [ fans, waterWall ]
    defaultRunTime: 5m
    thresholds:
      max_temp: 28
      max_humidity: 80
    rules:
      - id: high-temp
        name: High Temp
        logic: AND
        conditions:
          - parameter: indoor_temp
            operator: ">"
            ref: max_temp
        actions:
          - group: fans
            state: ON
        advanced:
          stopCondition:
            type: HYSTERESIS
            value: 2
          constraints:
            minRunTime: 3m
          cycle:
            enabled: true
            run: 3m
            pause: 5m
          schedules:
            - start: "22:00"
              end: "06:00"
              thresholds:
                max_temp: 24
      - id: humid
        name: Humid
        logic: or
        active: false
        conditions:
          - parameter: indoor_humidity
            operator: ">="
            value: 85
        actions:
          - group: waterWall
            state: OFF
`))
	require.NoError(t, err)
	require.Len(t, c.Domains, 1)

	d := c.Domains[0]
	assert.Equal(t, "climate", d.Name)
	assert.Equal(t, []string{"fans", "waterWall"}, d.DeviceGroups)
	assert.Equal(t, 5*time.Minute, d.DefaultRunTime)
	assert.Equal(t, rules.Thresholds{"max_temp": 28, "max_humidity": 80}, d.Thresholds)
	require.Len(t, d.Rules, 2)

	want := rules.Rule{
		ID:         "high-temp",
		Name:       "High Temp",
		Logic:      rules.And,
		Conditions: []rules.Condition{{Parameter: "indoor_temp", Operator: rules.GreaterThan, CompareTo: rules.Reference{Parameter: "max_temp"}}},
		Actions:    []rules.Action{{Group: "fans", State: rules.On}},
		Active:     true,
		Advanced: &rules.AdvancedSettings{
			StopCondition: rules.StopCondition{Type: rules.Hysteresis, Value: 2},
			Constraints:   rules.Constraints{MinRunTime: 3 * time.Minute},
			Cycle:         rules.Cycle{Enabled: true, Run: 3 * time.Minute, Pause: 5 * time.Minute},
			Schedules: []rules.ScheduleWindow{{
				Start:      rules.TimeOfDay{Hour: 22},
				End:        rules.TimeOfDay{Hour: 6},
				Thresholds: rules.Thresholds{"max_temp": 24},
			}},
		},
	}
	assert.Equal(t, want, d.Rules[0])

	assert.Equal(t, rules.Or, d.Rules[1].Logic)
	assert.False(t, d.Rules[1].Active)
	assert.Equal(t, rules.Action{Group: "waterWall", State: rules.Off}, d.Rules[1].Actions[0])
	assert.Nil(t, d.Rules[1].Advanced)

	s, errs := d.NewStore()
	assert.Empty(t, errs)
	assert.Equal(t, 2, s.Snapshot().Len())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "invalid yaml", input: `domains: [`},
		{name: "missing name", input: `domains: [ { deviceGroups: [fans] } ]`},
		{name: "duplicate domain", input: `domains: [ { name: climate }, { name: climate } ]`},
		{name: "negative run time", input: `domains: [ { name: climate, defaultRunTime: -1m } ]`},
		{name: "invalid state", input: `domains: [ { name: climate, rules: [ { id: a, actions: [ { group: fans, state: MAYBE } ] } ] } ]`},
		{name: "invalid logic", input: `domains: [ { name: climate, rules: [ { id: a, logic: XOR } ] } ]`},
		{name: "invalid stop condition", input: `domains: [ { name: climate, rules: [ { id: a, advanced: { stopCondition: { type: SOMETIMES } } } ] } ]`},
		{name: "invalid time of day", input: `domains: [ { name: climate, rules: [ { id: a, advanced: { schedules: [ { start: "25:00", end: "06:00" } ] } } ] } ]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := rules.Load(bytes.NewBufferString(tt.input))
			assert.Error(t, err)
		})
	}
}
