package build

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDeploymentString checks the names reported for each deployment type.
func TestDeploymentString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		deployment DeploymentType
		want       string
	}{
		{Development, "development"},
		{Production, "production"},
		{DeploymentType(7), "unknown"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.want, tc.deployment.String())
	}

	require.NotEqual(t, "unknown", Deployment.String())
}
