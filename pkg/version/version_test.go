package version_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/macropower/stsync/pkg/version"
)

func TestVersion(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, version.Revision)
	require.Regexp(t, `\d+\.\d+\.\d+`, version.Version)
}
