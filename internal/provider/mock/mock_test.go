package mock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomID_HasMockPrefix(t *testing.T) {
	id := randomID()
	require.Contains(t, id, "mock_")
	require.Len(t, id, len("mock_")+8)
}
