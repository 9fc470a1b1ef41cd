package conf

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ParseMonitorChannels parses a comma separated channel list such as "8,10".
// Blank entries, non-integers, negatives and duplicates are rejected.
func ParseMonitorChannels(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("monitor channel list is empty")
	}

	parts := strings.Split(s, ",")
	channels := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("monitor channel list %q has an empty entry", s)
		}
		ch, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("monitor channel %q is not an integer", part)
		}
		if ch < 0 {
			return nil, fmt.Errorf("monitor channel %d is negative", ch)
		}
		if seen[ch] {
			return nil, fmt.Errorf("monitor channel %d listed more than once", ch)
		}
		seen[ch] = true
		channels = append(channels, ch)
	}
	return channels, nil
}

// FormatMonitorChannels renders channels in the form ParseMonitorChannels
// accepts.
func FormatMonitorChannels(channels []int) string {
	parts := make([]string, len(channels))
	for i, ch := range channels {
		parts[i] = strconv.Itoa(ch)
	}
	return strings.Join(parts, ",")
}

// ChannelListHookFunc decodes "8,10" style strings into []int so the channel
// list can be given the same way in YAML, environment and flags.
func ChannelListHookFunc() mapstructure.DecodeHookFuncType {
	intSlice := reflect.TypeOf([]int{})
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != intSlice {
			return data, nil
		}
		return ParseMonitorChannels(data.(string))
	}
}
