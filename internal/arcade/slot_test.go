package arcade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextPosition(t *testing.T) {
	tests := []struct {
		name      string
		positions []int
		want      int
	}{
		{name: "empty", positions: nil, want: 1},
		{name: "contiguous", positions: []int{1, 2, 3}, want: 4},
		{name: "gap at start", positions: []int{2, 3}, want: 1},
		{name: "gap in middle", positions: []int{1, 2, 4, 5}, want: 3},
		{name: "first gap wins", positions: []int{1, 3, 5}, want: 2},
		{name: "unsorted", positions: []int{3, 1, 2}, want: 4},
		{name: "duplicates", positions: []int{1, 1, 2}, want: 3},
		{name: "non-positive ignored", positions: []int{-1, 0, 1}, want: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NextPosition(tc.positions))
		})
	}
}

func TestNextPositionLeavesInputAlone(t *testing.T) {
	in := []int{3, 1, 2}
	NextPosition(in)
	require.Equal(t, []int{3, 1, 2}, in)
}
