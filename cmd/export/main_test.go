package main

import "testing"

func TestCheckDateFlags(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{"both empty", "", "", false},
		{"valid bounds", "2024-07-01", "2024-07-31", false},
		{"from only", "2024-07-01", "", false},
		{"non-padded from", "2024-6-1", "", true},
		{"slashes", "2024/07/01", "", true},
		{"bad to", "", "July 1", true},
		{"impossible date", "2024-02-31", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDateFlags(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkDateFlags(%q, %q) = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}
