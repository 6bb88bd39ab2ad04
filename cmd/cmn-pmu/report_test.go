package main

import (
	"sort"
	"testing"
)

func TestSampleIndices(t *testing.T) {
	tests := []struct {
		size, max int
		sample    string
		want      []int
	}{
		{3, 10, "tail", []int{0, 1, 2}}, // fewer packets than requested: take all
		{5, 3, "header", []int{0, 1, 2}},
		{10, 3, "tail", []int{7, 8, 9}},
		{10, 3, "evenly", []int{0, 3, 6}},
	}
	for _, tt := range tests {
		got := sampleIndices(tt.size, tt.max, tt.sample, 1)
		if len(got) != len(tt.want) {
			t.Errorf("sampleIndices(%d, %d, %q) = %v, want %v",
				tt.size, tt.max, tt.sample, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("sampleIndices(%d, %d, %q) = %v, want %v",
					tt.size, tt.max, tt.sample, got, tt.want)
				break
			}
		}
	}
}

func TestSampleIndicesRandom(t *testing.T) {
	got := sampleIndices(100, 10, "random", 42)
	if len(got) != 10 {
		t.Fatalf("got %d indices, want 10", len(got))
	}
	if !sort.IntsAreSorted(got) {
		t.Errorf("random sample not sorted: %v", got)
	}
	seen := map[int]bool{}
	for _, i := range got {
		if i < 0 || i >= 100 {
			t.Errorf("index %d out of range", i)
		}
		if seen[i] {
			t.Errorf("duplicate index %d", i)
		}
		seen[i] = true
	}
}

func TestGroupDigits(t *testing.T) {
	tests := []struct {
		v    uint64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{0x123400AB, "305,397,931"},
	}
	for _, tt := range tests {
		if got := groupDigits(tt.v); got != tt.want {
			t.Errorf("groupDigits(%d) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
