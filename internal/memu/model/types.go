package model

import "errors"

// ErrUnknownScopeField is returned when a scope filter names a field the
// backend was not configured to index or recognize.
var ErrUnknownScopeField = errors.New("memu: unknown scope filter field")

// MemoryType is the closed five-variant set of memory kinds.
type MemoryType string

const (
	MemoryTypeProfile   MemoryType = "profile"
	MemoryTypeEvent     MemoryType = "event"
	MemoryTypeKnowledge MemoryType = "knowledge"
	MemoryTypeBehavior  MemoryType = "behavior"
	MemoryTypeSkill     MemoryType = "skill"
)

// IsValid reports whether m is one of the five configured memory types.
func (m MemoryType) IsValid() bool {
	switch m {
	case MemoryTypeProfile, MemoryTypeEvent, MemoryTypeKnowledge, MemoryTypeBehavior, MemoryTypeSkill:
		return true
	default:
		return false
	}
}

// RootTag returns the XML root tag extraction prompts are expected to use
// for this memory type (spec.md §4.5 step 3).
func (m MemoryType) RootTag() string {
	switch m {
	case MemoryTypeProfile:
		return "profile"
	case MemoryTypeBehavior:
		return "behaviors"
	case MemoryTypeEvent:
		return "events"
	case MemoryTypeKnowledge:
		return "knowledge"
	case MemoryTypeSkill:
		return "skills"
	default:
		return "item"
	}
}

// AllMemoryTypes is the default whitelist when configuration omits one.
func AllMemoryTypes() []MemoryType {
	return []MemoryType{
		MemoryTypeProfile, MemoryTypeEvent, MemoryTypeKnowledge, MemoryTypeBehavior, MemoryTypeSkill,
	}
}

// Modality is the closed six-variant set of resource kinds, with a graceful
// fallback for unrecognized values (unlike MemoryType).
type Modality string

const (
	ModalityConversation Modality = "conversation"
	ModalityDocument     Modality = "document"
	ModalityImage        Modality = "image"
	ModalityAudio        Modality = "audio"
	ModalityVideo        Modality = "video"
	ModalityText         Modality = "text"
)

// Recognized reports whether m is one of the six known modalities. Unknown
// modalities are not an error; preprocessing falls back to a pass-through.
func (m Modality) Recognized() bool {
	switch m {
	case ModalityConversation, ModalityDocument, ModalityImage, ModalityAudio, ModalityVideo, ModalityText:
		return true
	default:
		return false
	}
}

// RankingStrategy is the two-variant tag selecting item vector-search
// behavior.
type RankingStrategy string

const (
	RankingSimilarity RankingStrategy = "similarity"
	RankingSalience   RankingStrategy = "salience"
)

// RetrieveMethod selects between RAG (vector) and LLM-driven ranking.
type RetrieveMethod string

const (
	RetrieveMethodRAG RetrieveMethod = "rag"
	RetrieveMethodLLM RetrieveMethod = "llm"
)
