package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Record carries the fields common to every persisted entity.
type Record struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Scope     Scope
}

// Resource represents an ingested artifact.
type Resource struct {
	Record
	URL              string
	Modality         Modality
	LocalPath        string
	Caption          string
	CaptionEmbedding []float32
}

// MemoryItem is a single atomic memory extracted from a resource.
type MemoryItem struct {
	Record
	ResourceID string // empty means no owning resource
	MemoryType MemoryType
	Summary    string
	Embedding  []float32
	HappenedAt *time.Time
	Extra      map[string]any
}

const (
	extraContentHash        = "content_hash"
	extraReinforcementCount = "reinforcement_count"
	extraLastReinforcedAt   = "last_reinforced_at"
	extraRefID              = "ref_id"
	refIDHexLength          = 6
	contentHashTruncatedHex = 16
)

// ContentHash returns the extra.content_hash value, if present.
func (m *MemoryItem) ContentHash() string {
	return stringExtra(m.Extra, extraContentHash)
}

// ReinforcementCount returns extra.reinforcement_count, defaulting to 1 when
// absent (a freshly created item has never been reinforced beyond its first
// write).
func (m *MemoryItem) ReinforcementCount() int {
	if m.Extra == nil {
		return 1
	}
	switch v := m.Extra[extraReinforcementCount].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 1
	}
}

// LastReinforcedAt parses extra.last_reinforced_at as RFC3339, returning the
// zero time and false when absent or unparsable.
func (m *MemoryItem) LastReinforcedAt() (time.Time, bool) {
	raw := stringExtra(m.Extra, extraLastReinforcedAt)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

// RefID returns extra.ref_id, if this item has ever been cited in a
// category summary.
func (m *MemoryItem) RefID() string {
	return stringExtra(m.Extra, extraRefID)
}

// SetRefID annotates the item with the short id it was cited under.
func (m *MemoryItem) SetRefID(id string) {
	if m.Extra == nil {
		m.Extra = map[string]any{}
	}
	m.Extra[extraRefID] = id
}

func stringExtra(extra map[string]any, key string) string {
	if extra == nil {
		return ""
	}
	s, _ := extra[key].(string)
	return s
}

// ShortID derives the [ref:...] citation id from an item's UUID: the
// dash-stripped first six hex characters.
func ShortID(itemID string) string {
	stripped := strings.ReplaceAll(itemID, "-", "")
	if len(stripped) < refIDHexLength {
		return stripped
	}
	return stripped[:refIDHexLength]
}

// ComputeContentHash implements the dedup key: a 16-hex-char truncated
// SHA-256 over "memory_type:" + whitespace-collapsed lowercase summary.
func ComputeContentHash(memoryType MemoryType, summary string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(summary)), " ")
	sum := sha256.Sum256([]byte(string(memoryType) + ":" + normalized))
	return hex.EncodeToString(sum[:])[:contentHashTruncatedHex]
}

// MemoryCategory is a semantic bucket with a running, model-maintained
// summary narrative.
type MemoryCategory struct {
	Record
	Name        string
	Description string
	Embedding   []float32
	Summary     string
}

// EmbeddingText is the canonical text embedded for a category: "name:
// description".
func (c *MemoryCategory) EmbeddingText() string {
	return c.Name + ": " + c.Description
}

// CategoryItem links a category to a memory item (many-to-many).
type CategoryItem struct {
	Record
	ItemID     string
	CategoryID string
}
