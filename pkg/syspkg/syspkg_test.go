package syspkg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArgvBoxesEachElement(t *testing.T) {
	elems := Argv([]string{"a", "b"})
	require.Equal(t, []interface{}{"a", "b"}, elems)
}

func TestArgvEmpty(t *testing.T) {
	elems := Argv(nil)
	require.Empty(t, elems)
}
