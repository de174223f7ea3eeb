package llmopt

// PreferredModels maps a request kind to its initial preferred model.
type PreferredModels map[Kind]string

// Availability is the narrow surface the selector needs from the
// model-availability checker.
type Availability interface {
	IsRateLimited(model string) bool
}

// Selector picks the model to try first for a kind and the ordered
// fallback chain behind it.
type Selector struct {
	preferred    PreferredModels
	fallbacks    []string
	availability Availability
}

// NewSelector creates a selector. A nil availability checker disables
// rate-limit-aware fallback; the preferred model is always tried first.
func NewSelector(preferred PreferredModels, fallbacks []string, availability Availability) *Selector {
	return &Selector{preferred: preferred, fallbacks: fallbacks, availability: availability}
}

// Select returns the model to try first for kind, plus the remainder of
// the fallback chain to try if it fails.
func (s *Selector) Select(kind Kind) (model string, remaining []string) {
	preferred := s.preferred[kind]

	if preferred == "" {
		if len(s.fallbacks) == 0 {
			return "", nil
		}
		return s.fallbacks[0], s.fallbacks[1:]
	}

	if s.availability == nil || !s.availability.IsRateLimited(preferred) {
		return preferred, s.fallbacks
	}

	for i, candidate := range s.fallbacks {
		if s.availability.IsRateLimited(candidate) {
			continue
		}
		return candidate, s.fallbacks[i+1:]
	}

	return preferred, nil
}
