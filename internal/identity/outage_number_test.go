package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutageNumber_Deterministic(t *testing.T) {
	a := OutageNumber(3, 1, 42, "2025-09-01", "08:00:00")
	b := OutageNumber(3, 1, 42, "2025-09-01", "08:00:00")
	assert.Equal(t, a, b)
	assert.Positive(t, a)
}

func TestOutageNumber_DiffersPerComponent(t *testing.T) {
	base := OutageNumber(3, 1, 42, "2025-09-01", "08:00:00")

	variants := map[string]int64{
		"area":    OutageNumber(4, 1, 42, "2025-09-01", "08:00:00"),
		"city":    OutageNumber(3, 2, 42, "2025-09-01", "08:00:00"),
		"address": OutageNumber(3, 1, 43, "2025-09-01", "08:00:00"),
		"date":    OutageNumber(3, 1, 42, "2025-09-02", "08:00:00"),
		"start":   OutageNumber(3, 1, 42, "2025-09-01", "10:00:00"),
		"nostart": OutageNumber(3, 1, 42, "2025-09-01", ""),
	}
	for name, n := range variants {
		assert.NotEqual(t, base, n, name)
	}
}

func TestKey_NormalizesDigitsAndSentinel(t *testing.T) {
	assert.Equal(t, "3|1|42|20250901|080000", Key(3, 1, 42, "2025-09-01", "08:00:00"))
	assert.Equal(t, "3|1|42|0|0", Key(3, 1, 42, "", ""))
	assert.Equal(t, Key(3, 1, 42, "2025/09/01", "08.00.00"), Key(3, 1, 42, "2025-09-01", "08:00:00"))
}

func TestFromKey_ZeroDigestFallsBackToSalt(t *testing.T) {
	var seen []string
	digest := func(key string) string {
		seen = append(seen, key)
		if strings.HasSuffix(key, salt) {
			return "00000000000000abcdef"
		}
		return strings.Repeat("0", 40)
	}

	n := fromKey("k", digest)
	require.Equal(t, []string{"k", "k!"}, seen)
	assert.Equal(t, int64(0xa), n)
}

func TestFromKey_NeverZero(t *testing.T) {
	zero := func(string) string { return strings.Repeat("0", 40) }
	assert.Equal(t, int64(1), fromKey("k", zero))
}

func TestPrefixValue_FitsInt64(t *testing.T) {
	n := prefixValue(strings.Repeat("f", 40))
	assert.Equal(t, int64(0xfffffffffffffff), n)
}
