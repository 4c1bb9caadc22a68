package api

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"", "[]", false},
		{"company", "[company]", false},
		{" company , items.item ,", "[company items.item]", false},
		{`["company","items"]`, "[company items]", false},
		{`["company",1]`, "", true},
		{`[company`, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseList("include", tc.raw)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}

			if !tc.wantErr && fmt.Sprint(got) != tc.want {
				t.Errorf("parseList(%q) = %v, want %s", tc.raw, got, tc.want)
			}
		})
	}
}

func TestValidatePathID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"c1", false},
		{"", true},
		{"   ", true},
		{strings.Repeat("a", maxPathIDLength), false},
		{strings.Repeat("a", maxPathIDLength+1), true},
	}

	for _, tc := range tests {
		if err := validatePathID(tc.id); (err != nil) != tc.wantErr {
			t.Errorf("validatePathID(len %d) err = %v, wantErr %v", len(tc.id), err, tc.wantErr)
		}
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, fallback, want int }{
		{0, 50, 50},
		{10, 50, 10},
		{5000, 50, maxPaginationLimit},
	}

	for _, tc := range tests {
		if got := clampLimit(tc.in, tc.fallback); got != tc.want {
			t.Errorf("clampLimit(%d, %d) = %d, want %d", tc.in, tc.fallback, got, tc.want)
		}
	}
}
