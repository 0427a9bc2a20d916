package planningapplication

import (
	"fmt"
	"strings"
	"time"
)

// ApplicationType determines statutory handling and the reference suffix.
type ApplicationType string

const (
	TypeLawfulnessCertificate ApplicationType = "lawfulness_certificate"
	TypePriorApproval         ApplicationType = "prior_approval"
	TypePlanningPermission    ApplicationType = "planning_permission"
)

func (t ApplicationType) Suffix() string {
	switch t {
	case TypeLawfulnessCertificate:
		return "LDCP"
	case TypePriorApproval:
		return "PA"
	case TypePlanningPermission:
		return "HAPP"
	default:
		return "OTHR"
	}
}

func (t ApplicationType) IsValid() bool {
	switch t {
	case TypeLawfulnessCertificate, TypePriorApproval, TypePlanningPermission:
		return true
	}
	return false
}

// NewReference builds the immutable case reference, format YY-NNNNN-<suffix>.
// The numeric part is a per-authority counter, zero-padded to five digits.
func NewReference(createdAt time.Time, counter int64, appType ApplicationType) string {
	return fmt.Sprintf("%02d-%05d-%s", createdAt.Year()%100, counter, appType.Suffix())
}

// ResuffixReference swaps the type suffix while preserving the YY-NNNNN
// prefix. Changing the application type is the only event that touches an
// assigned reference.
func ResuffixReference(reference string, newType ApplicationType) (string, error) {
	parts := strings.SplitN(reference, "-", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed reference %q", reference)
	}
	return fmt.Sprintf("%s-%s-%s", parts[0], parts[1], newType.Suffix()), nil
}
