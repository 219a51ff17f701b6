package util

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewCaseID returns an externally visible case identifier. The millisecond
// timestamp keeps identifiers sortable by creation time; the random suffix
// disambiguates cases created within the same millisecond.
func NewCaseID() string {
	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)
	return "CASE_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + hex.EncodeToString(suffix)
}
