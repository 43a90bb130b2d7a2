package domain

import (
	"slices"
	"strings"
)

// Phase is a type-specific lifecycle stage of a work item.
type Phase string

// ItemType classifies a work item and selects its phase vocabulary.
type ItemType string

// Supported work item types.
const (
	ItemTypeFeature     ItemType = "feature"
	ItemTypeConcept     ItemType = "concept"
	ItemTypeBug         ItemType = "bug"
	ItemTypeEnhancement ItemType = "enhancement"
)

// Feature and enhancement phases.
const (
	PhaseDesign Phase = "design"
	PhaseBuild  Phase = "build"
	PhaseRefine Phase = "refine"
	PhaseLaunch Phase = "launch"
)

// Concept phases.
const (
	PhaseIdeation  Phase = "ideation"
	PhaseResearch  Phase = "research"
	PhaseValidated Phase = "validated"
	PhaseRejected  Phase = "rejected"
)

// Bug phases.
const (
	PhaseTriage        Phase = "triage"
	PhaseInvestigating Phase = "investigating"
	PhaseFixing        Phase = "fixing"
	PhaseVerified      Phase = "verified"
)

// phaseVocabulary maps each item type to its closed, ordered phase set.
// The first phase in each set is the canonical initial phase.
var phaseVocabulary = map[ItemType][]Phase{
	ItemTypeFeature:     {PhaseDesign, PhaseBuild, PhaseRefine, PhaseLaunch},
	ItemTypeEnhancement: {PhaseDesign, PhaseBuild, PhaseRefine, PhaseLaunch},
	ItemTypeConcept:     {PhaseIdeation, PhaseResearch, PhaseValidated, PhaseRejected},
	ItemTypeBug:         {PhaseTriage, PhaseInvestigating, PhaseFixing, PhaseVerified},
}

// NormalizeItemType canonicalizes an item type value.
func NormalizeItemType(t ItemType) ItemType {
	return ItemType(strings.TrimSpace(strings.ToLower(string(t))))
}

// IsValidItemType reports whether the item type has a phase vocabulary.
func IsValidItemType(t ItemType) bool {
	_, ok := phaseVocabulary[NormalizeItemType(t)]
	return ok
}

// NormalizePhase canonicalizes a phase value.
func NormalizePhase(p Phase) Phase {
	return Phase(strings.TrimSpace(strings.ToLower(string(p))))
}

// VocabularyFor returns the closed phase set for an item type.
func VocabularyFor(t ItemType) []Phase {
	phases, ok := phaseVocabulary[NormalizeItemType(t)]
	if !ok {
		return nil
	}
	return slices.Clone(phases)
}

// InitialPhaseFor returns the canonical first phase for an item type.
func InitialPhaseFor(t ItemType) (Phase, bool) {
	phases, ok := phaseVocabulary[NormalizeItemType(t)]
	if !ok || len(phases) == 0 {
		return "", false
	}
	return phases[0], true
}

// PhaseInVocabulary reports whether a phase belongs to the item type's set.
func PhaseInVocabulary(t ItemType, p Phase) bool {
	phases, ok := phaseVocabulary[NormalizeItemType(t)]
	if !ok {
		return false
	}
	return slices.Contains(phases, NormalizePhase(p))
}
