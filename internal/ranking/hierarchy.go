// Package ranking orders normalized documents by legal authority, then relevance.
package ranking

import (
	"fmt"

	"github.com/hyperjump/nexus/internal/models"
)

// Hierarchy maps each authority class to its priority. Higher outranks lower;
// an unset or unknown doc type has priority 0.
type Hierarchy map[models.DocType]int

// DefaultHierarchy returns Law > Collective agreement > Local protocol.
func DefaultHierarchy() Hierarchy {
	return Hierarchy{
		models.DocTypeLaw:                 3,
		models.DocTypeCollectiveAgreement: 2,
		models.DocTypeLocalProtocol:       1,
	}
}

// ParseHierarchy builds a hierarchy from config labels ("LAW", "CCT", ...),
// starting from the default table. Unknown labels are rejected.
func ParseHierarchy(labels map[string]int) (Hierarchy, error) {
	h := DefaultHierarchy()
	for label, priority := range labels {
		dt := models.ParseDocType(label)
		if dt == models.DocTypeUnset {
			return nil, fmt.Errorf("unknown doc type %q in hierarchy", label)
		}
		h[dt] = priority
	}
	return h, nil
}

// Priority returns the priority of dt.
func (h Hierarchy) Priority(dt models.DocType) int {
	if dt == models.DocTypeUnset {
		return 0
	}
	return h[dt]
}
