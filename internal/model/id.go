package model

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed short id such as VIO-3FA85F64 or SCAN-1B2C3D4E.
func NewID(prefix string) string {
	u := uuid.New()
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(u[:4]))
}
