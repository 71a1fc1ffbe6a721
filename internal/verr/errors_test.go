package verr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, 2, Usagef("bad flag %s", "--foo").Kind().ExitCode())
	assert.Equal(t, 1, Domainf("nothing to commit").Kind().ExitCode())
	assert.Equal(t, 3, IOf("disk full").Kind().ExitCode())
	assert.Equal(t, 4, ConcurrentWriter(errors.New("locked")).Kind().ExitCode())
}

func TestKindOfOpaqueAndDirectErrors(t *testing.T) {
	err := Domainf("branch %q already exists", "feature")
	wrapped := errors.New("outer: " + err.Error())
	assert.Equal(t, KindIO, KindOf(wrapped), "an opaque error defaults to KindIO")
	assert.Equal(t, KindDomain, KindOf(err))
}

func TestAbortable(t *testing.T) {
	assert.True(t, Domainf("x").Abortable())
	assert.True(t, IOf("x").Abortable())
	assert.True(t, CorruptObjectf("x").Abortable())
	assert.False(t, Usagef("x").Abortable())
	assert.False(t, ConcurrentWriter(errors.New("x")).Abortable())
}
