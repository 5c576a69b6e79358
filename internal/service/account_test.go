package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTournamentNameShape(t *testing.T) {
	name, err := GenerateTournamentName(func(int) int { return 42 },
		func(string) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, "noob000042", name)
}

func TestGenerateTournamentNameRedrawsOnCollision(t *testing.T) {
	draws := []int{7, 7, 13}
	i := 0
	intn := func(int) int {
		n := draws[i]
		i++
		return n
	}

	taken := map[string]bool{"noob000007": true}
	name, err := GenerateTournamentName(intn, func(name string) (bool, error) {
		return taken[name], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "noob000013", name)
}

func TestGenerateTournamentNamePropagatesExistsError(t *testing.T) {
	_, err := GenerateTournamentName(func(int) int { return 1 },
		func(string) (bool, error) { return false, fmt.Errorf("db down") })
	assert.EqualError(t, err, "db down")
}

func TestGenerateTournamentNameGivesUpEventually(t *testing.T) {
	_, err := GenerateTournamentName(func(int) int { return 1 },
		func(string) (bool, error) { return true, nil })
	assert.Error(t, err)
}
