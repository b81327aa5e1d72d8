package bt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type board struct {
	visited []string
}

func leaf(name string, status Status) Node[*board] {
	return Do(func(b *board) Status {
		b.visited = append(b.visited, name)
		return status
	})
}

func TestSelectorStopsAtFirstNonFailure(t *testing.T) {
	tests := []struct {
		name    string
		second  Status
		want    Status
		visited []string
	}{
		{"success", StatusSuccess, StatusSuccess, []string{"a", "b"}},
		{"running", StatusRunning, StatusRunning, []string{"a", "b"}},
		{"all fail", StatusFailure, StatusFailure, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &board{}
			third := StatusFailure
			root := Select(leaf("a", StatusFailure), leaf("b", tt.second), leaf("c", third))
			assert.Equal(t, tt.want, root.Tick(b))
			assert.Equal(t, tt.visited, b.visited)
		})
	}
}

func TestSequenceStopsAtFirstNonSuccess(t *testing.T) {
	b := &board{}
	root := Seq(leaf("a", StatusSuccess), leaf("b", StatusRunning), leaf("c", StatusSuccess))
	assert.Equal(t, StatusRunning, root.Tick(b))
	assert.Equal(t, []string{"a", "b"}, b.visited)

	b = &board{}
	assert.Equal(t, StatusSuccess, Seq(leaf("a", StatusSuccess)).Tick(b))
}

func TestConditionAndInverter(t *testing.T) {
	yes := If(func(*board) bool { return true })
	assert.Equal(t, StatusSuccess, yes.Tick(&board{}))
	assert.Equal(t, StatusFailure, Not[*board](yes).Tick(&board{}))
	assert.Equal(t, StatusRunning, Not(leaf("r", StatusRunning)).Tick(&board{}))

	var empty Condition[*board]
	assert.Equal(t, StatusFailure, empty.Tick(&board{}))
	var noop Action[*board]
	assert.Equal(t, StatusFailure, noop.Tick(&board{}))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "unknown", Status(9).String())
}
