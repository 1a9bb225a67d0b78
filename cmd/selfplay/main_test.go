package main

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

func TestPlayAgain(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"\n", true},
		{"y\n", true},
		{"Yes\n", true},
		{"n\n", false},
		{"N\n", false},
		{"no\n", false},
		{"  Nope\n", false},
		{"", false},
	}
	for _, tt := range tests {
		in := bufio.NewScanner(strings.NewReader(tt.input))
		if got := playAgain(in, io.Discard); got != tt.want {
			t.Errorf("playAgain(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
