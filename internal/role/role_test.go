package role

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	require.True(t, Parse("patient").IsPatient())
	require.False(t, Parse("patient").IsProvider())

	require.True(t, Parse("doctor").IsProvider())
	require.True(t, Parse(" Nurse ").IsProvider())
	require.Equal(t, "nurse", Parse(" Nurse ").Subrole())

	unknown := Parse("   ")
	require.False(t, unknown.IsPatient())
	require.False(t, unknown.IsProvider())
}
