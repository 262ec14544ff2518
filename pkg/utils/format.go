package utils

import (
	"fmt"
	"strconv"
)

const bytesPerMB = 1024 * 1024

// FormatSizeLabel renders a byte count as megabytes with two decimals, e.g. "1.50 MB"
func FormatSizeLabel(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/bytesPerMB)
}

// FormatINR renders whole rupees with Indian digit grouping, e.g. 1234567 -> "₹12,34,567"
func FormatINR(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	if len(digits) <= 3 {
		return sign + "₹" + digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	grouped := ""
	for len(head) > 2 {
		grouped = "," + head[len(head)-2:] + grouped
		head = head[:len(head)-2]
	}

	return sign + "₹" + head + grouped + "," + tail
}
