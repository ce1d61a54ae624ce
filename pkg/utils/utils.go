package utils

import (
	"fmt"
	"strconv"
	"strings"
)

var unitArray = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// ConvertShellOutputs splits shell output string into a slice of strings, one per line
func ConvertShellOutputs(outputs string) []string {
	var result []string
	if len(outputs) == 0 {
		return result
	}

	start := 0
	for _, index := range GetAllIndex(outputs, "\n") {
		result = append(result, outputs[start:index])
		start = index + 1
	}

	if !strings.HasSuffix(outputs, "\n") {
		result = append(result, outputs[strings.LastIndex(outputs, "\n")+1:])
	}

	return result
}

// GetAllIndex returns all indices of the substr in the given string
func GetAllIndex(s string, substr string) []int {
	var indexes []int

	start := 0
	end := len(s)

	for start < end {
		if index := strings.Index(s[start:end], substr); index > -1 {
			indexes = append(indexes, start+index)
			start = start + index + len(substr)
		} else {
			break
		}
	}

	return indexes
}

// ParseKeyValueLines converts shell style KEY=value lines into a map.
// example content of `NAME="Ubuntu"\nID=ubuntu\n# comment` is returned as:
// map[string]string{"NAME":"Ubuntu", "ID":"ubuntu"}
func ParseKeyValueLines(content string) map[string]string {
	props := make(map[string]string)
	for _, line := range ConvertShellOutputs(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		props[strings.TrimSpace(kv[0])] = unquote(strings.TrimSpace(kv[1]))
	}

	return props
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	switch value[0] {
	case '"':
		if unquoted, err := strconv.Unquote(value); err == nil {
			return unquoted
		}
		return strings.Trim(value, `"`)
	case '\'':
		return strings.Trim(value, "'")
	}
	return value
}

// ConvertBytesToStr convert size into a human readable string, e.g. 536870912 => 512MB
func ConvertBytesToStr(size uint64) string {
	unitIndex := 0
	value := float64(size)
	for value >= 1024 && unitIndex < len(unitArray)-1 {
		value /= 1024
		unitIndex++
	}
	if value == float64(uint64(value)) {
		return fmt.Sprintf("%d%s", uint64(value), unitArray[unitIndex])
	}
	return fmt.Sprintf("%.1f%s", value, unitArray[unitIndex])
}
