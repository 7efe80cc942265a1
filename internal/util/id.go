package util

import (
	"strings"

	"github.com/google/uuid"
)

func newID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + raw[:12]
}

func NewCampaignID() string { return newID("cmp_") }
