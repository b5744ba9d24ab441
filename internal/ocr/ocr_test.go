package ocr

import (
	"errors"
	"testing"
)

func TestValidateLength(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		min     int
		max     int
		wantErr bool
	}{
		{"within bounds", "配料：水", 1, 5000, false},
		{"exactly min", "水", 1, 5000, false},
		{"empty below min", "", 1, 5000, true},
		{"above max", "水水水水水水", 1, 5, true},
		{"exactly max", "水水水水水", 1, 5, false},
		{"runes not bytes", "白砂糖", 3, 3, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateLength(tc.text, tc.min, tc.max)
			if tc.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err != nil {
				var lenErr LengthError
				if !errors.As(err, &lenErr) {
					t.Fatalf("expected LengthError, got %T", err)
				}
			}
		})
	}
}

func TestLengthErrorMessage(t *testing.T) {
	short := LengthError{Length: 0, Min: 1, Max: 5000}
	if got := short.Error(); got != "recognized text too short (0 chars, minimum 1)" {
		t.Fatalf("unexpected message: %s", got)
	}
	long := LengthError{Length: 6000, Min: 1, Max: 5000}
	if got := long.Error(); got != "recognized text too long (6000 chars, maximum 5000)" {
		t.Fatalf("unexpected message: %s", got)
	}
}
