package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	prevV, prevC := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = prevV, prevC })

	Version, GitCommit = "v1.2.0", "0123456789abcdef"
	assert.Equal(t, "v1.2.0 (0123456, "+runtime.Version()+")", String())

	GitCommit = "abc"
	assert.Equal(t, "v1.2.0 (abc, "+runtime.Version()+")", String())
}
