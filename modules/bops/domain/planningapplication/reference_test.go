package planningapplication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewReference_Format(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	require.Equal(t, "26-00042-LDCP", NewReference(createdAt, 42, TypeLawfulnessCertificate))
	require.Equal(t, "26-12345-PA", NewReference(createdAt, 12345, TypePriorApproval))
	require.Equal(t, "26-00001-HAPP", NewReference(createdAt, 1, TypePlanningPermission))
}

func TestNewReference_UnknownTypeGetsGenericSuffix(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "26-00007-OTHR", NewReference(createdAt, 7, ApplicationType("something_else")))
}

func TestResuffixReference_PreservesPrefix(t *testing.T) {
	ref, err := ResuffixReference("26-00042-LDCP", TypePriorApproval)
	require.NoError(t, err)
	require.Equal(t, "26-00042-PA", ref)

	// Round trip back keeps the same prefix too.
	ref, err = ResuffixReference(ref, TypeLawfulnessCertificate)
	require.NoError(t, err)
	require.Equal(t, "26-00042-LDCP", ref)
}

func TestResuffixReference_Malformed(t *testing.T) {
	_, err := ResuffixReference("not-a-reference-at", TypePriorApproval)
	require.NoError(t, err) // SplitN(3) tolerates extra dashes in the suffix

	_, err = ResuffixReference("26/00042/LDCP", TypePriorApproval)
	require.Error(t, err)
}
