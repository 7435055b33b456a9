package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	v, c, d := Info()
	assert.Equal(t, Version, v)
	assert.Equal(t, GitCommit, c)
	assert.Equal(t, BuildDate, d)
}

func TestString(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "1.2.3"
	s := String()
	assert.Contains(t, s, "1.2.3")
	assert.Contains(t, s, "commit: "+GitCommit)
}
