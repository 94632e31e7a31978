package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv(EnvID, "till-2")
	assert.Equal(t, "till-2", GetID())
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv(EnvID, "")
	assert.NotEmpty(t, GetID())
}
