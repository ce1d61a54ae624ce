package utils

import (
	"fmt"
	"path/filepath"
	"strconv"
	"unicode"
)

// PartitionPath returns the node of partition n on disk,
// e.g. /dev/sda + 1 => /dev/sda1, /dev/nvme0n1 + 1 => /dev/nvme0n1p1
func PartitionPath(disk string, n int) string {
	if disk != "" && unicode.IsDigit(rune(disk[len(disk)-1])) {
		return fmt.Sprintf("%sp%d", disk, n)
	}
	return fmt.Sprintf("%s%d", disk, n)
}

// PartitionNumber parses the trailing partition index of a partition node,
// returning 0 when the name has none
func PartitionNumber(partition string) int {
	name := filepath.Base(partition)
	i := len(name)
	for i > 0 && unicode.IsDigit(rune(name[i-1])) {
		i--
	}
	if i == len(name) {
		return 0
	}
	n, _ := strconv.Atoi(name[i:])
	return n
}
