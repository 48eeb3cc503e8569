package prompts

import "memu/internal/memu/model"

// Set holds the user-configured overrides for every prompt family this
// system composes, keyed the way config.Config exposes them. A zero Set
// composes every prompt from its built-in default catalogue.
type Set struct {
	Extraction      map[model.MemoryType]Spec
	Preprocess      map[model.Modality]Spec
	CategorySummary Spec
	RouteIntention  Spec
	RouteCategory   Spec
	RecallItems     Spec
	RecallResources Spec
	enableItemRefs  bool
}

// NewSet builds a Set; enableItemRefs selects between the cited and
// uncited category-summary default catalogue.
func NewSet(enableItemRefs bool) *Set {
	return &Set{
		Extraction:     map[model.MemoryType]Spec{},
		Preprocess:     map[model.Modality]Spec{},
		enableItemRefs: enableItemRefs,
	}
}

func (s *Set) Extract(memoryType model.MemoryType, vars map[string]string) string {
	return Compose(s.Extraction[memoryType], ExtractionBlocks(memoryType), vars)
}

func (s *Set) PreprocessPrompt(modality model.Modality, vars map[string]string) string {
	return Compose(s.Preprocess[modality], PreprocessBlocks(modality), vars)
}

func (s *Set) Summarize(vars map[string]string) string {
	return s.SummarizeCategory(Spec{}, vars)
}

// SummarizeCategory composes the category-summary prompt, preferring
// override (a per-category custom prompt, spec.md §6.4) over the Set's
// shared CategorySummary spec when override names any content.
func (s *Set) SummarizeCategory(override Spec, vars map[string]string) string {
	spec := s.CategorySummary
	if override.Literal != "" || len(override.Blocks) > 0 {
		spec = override
	}
	return Compose(spec, CategorySummaryBlocks(s.enableItemRefs), vars)
}

func (s *Set) RouteIntentionPrompt(vars map[string]string) string {
	return Compose(s.RouteIntention, RouteIntentionBlocks(), vars)
}

func (s *Set) RouteCategoryPrompt(vars map[string]string) string {
	return Compose(s.RouteCategory, RouteCategoryBlocks(), vars)
}

func (s *Set) RecallItemsPrompt(vars map[string]string) string {
	return Compose(s.RecallItems, RecallItemsBlocks(), vars)
}

func (s *Set) RecallResourcesPrompt(vars map[string]string) string {
	return Compose(s.RecallResources, RecallResourcesBlocks(), vars)
}
