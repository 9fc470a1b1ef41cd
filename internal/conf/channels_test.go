package conf

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonitorChannels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    []int
		wantErr string
	}{
		{"8,10", []int{8, 10}, ""},
		{" 8 , 10 ", []int{8, 10}, ""},
		{"0", []int{0}, ""},
		{"15,3,7", []int{15, 3, 7}, ""},
		{"", nil, "empty"},
		{"   ", nil, "empty"},
		{"8,", nil, "empty entry"},
		{"8,x", nil, "not an integer"},
		{"1.5", nil, "not an integer"},
		{"-1", nil, "negative"},
		{"8,8", nil, "more than once"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMonitorChannels(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonitorChannelsRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "8,10", FormatMonitorChannels([]int{8, 10}))
	got, err := ParseMonitorChannels(FormatMonitorChannels([]int{8, 10}))
	require.NoError(t, err)
	assert.Equal(t, []int{8, 10}, got)
	assert.Empty(t, FormatMonitorChannels(nil))
}

func TestChannelListHook(t *testing.T) {
	t.Parallel()
	hook := ChannelListHookFunc()
	intSlice := reflect.TypeOf([]int{})
	str := reflect.TypeOf("")

	got, err := hook(str, intSlice, "3,4")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, got)

	// Other conversions pass through untouched.
	got, err = hook(str, str, "3,4")
	require.NoError(t, err)
	assert.Equal(t, "3,4", got)

	list := []any{1, 2}
	got, err = hook(reflect.TypeOf(list), intSlice, list)
	require.NoError(t, err)
	assert.Equal(t, list, got)

	_, err = hook(str, intSlice, "a")
	assert.Error(t, err)
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateBool("true"))
	assert.Error(t, validateBool("yes"))
	assert.NoError(t, validatePositiveInt("48000"))
	assert.Error(t, validatePositiveInt("0"))
	assert.Error(t, validatePositiveInt("many"))
	assert.NoError(t, validatePositiveFloat("0.05"))
	assert.Error(t, validatePositiveFloat("-0.1"))
	assert.NoError(t, validateChannelList("8,10"))
	assert.Error(t, validateChannelList("8;10"))
	assert.NoError(t, validateBrokerURL("tcp://broker.local:1883"))
	assert.Error(t, validateBrokerURL("http://broker.local"))
	assert.Error(t, validateBrokerURL("tcp://"))
}
