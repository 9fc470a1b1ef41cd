package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAccessors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		ctx     *Context
		version string
		date    string
		system  string
	}{
		{name: "nil context", ctx: nil, version: UnknownValue, date: UnknownValue, system: UnknownValue},
		{name: "empty fields", ctx: NewContext("", "", ""), version: UnknownValue, date: UnknownValue, system: UnknownValue},
		{name: "populated", ctx: NewContext("1.2.0", "2024-05-17", "rig-01"), version: "1.2.0", date: "2024-05-17", system: "rig-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.date, tt.ctx.GetBuildDate())
			assert.Equal(t, tt.system, tt.ctx.GetSystemID())
		})
	}
}

func TestContextString(t *testing.T) {
	t.Parallel()
	s := NewContext("1.2.0", "2024-05-17", "").String()
	assert.Contains(t, s, "eventrec 1.2.0")
	assert.Contains(t, s, "built 2024-05-17")
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}
