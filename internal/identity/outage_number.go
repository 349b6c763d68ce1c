// Package identity derives the deterministic outage number used as the
// idempotency key of stored outage records
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

const (
	// prefixLen is the number of hex digits kept from the digest (60 bits)
	prefixLen = 15
	delimiter = "|"
	sentinel  = "0"
	salt      = "!"
)

// digestFunc returns the hexadecimal digest of a key
type digestFunc func(key string) string

func sha1Hex(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// OutageNumber returns a stable positive identifier for the tuple
// (area, city, address, date, start time). Date and start time may be
// in any punctuation; only their digits participate. An empty value is
// keyed with a fixed sentinel.
func OutageNumber(areaID, cityID, addressID int64, date, startTime string) int64 {
	return fromKey(Key(areaID, cityID, addressID, date, startTime), sha1Hex)
}

// Key builds the canonical key string hashed by OutageNumber
func Key(areaID, cityID, addressID int64, date, startTime string) string {
	return strings.Join([]string{
		strconv.FormatInt(areaID, 10),
		strconv.FormatInt(cityID, 10),
		strconv.FormatInt(addressID, 10),
		digitsOrSentinel(date),
		digitsOrSentinel(startTime),
	}, delimiter)
}

func fromKey(key string, digest digestFunc) int64 {
	if n := prefixValue(digest(key)); n != 0 {
		return n
	}
	if n := prefixValue(digest(key + salt)); n != 0 {
		return n
	}
	return 1
}

// prefixValue parses the leading hex digits of a digest. 15 hex digits
// never overflow an int64, so the result is never negative.
func prefixValue(hexDigest string) int64 {
	if len(hexDigest) > prefixLen {
		hexDigest = hexDigest[:prefixLen]
	}
	n, err := strconv.ParseInt(hexDigest, 16, 64)
	if err != nil {
		return 0
	}
	return n
}

func digitsOrSentinel(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return sentinel
	}
	return b.String()
}
