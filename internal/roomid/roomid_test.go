package roomid

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := Generate()
		if len(id) != Length {
			t.Fatalf("generated ID %q has length %d, want %d", id, len(id), Length)
		}
		for _, r := range id {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("generated ID %q contains %q outside the alphabet", id, r)
			}
		}
	}
}

func TestGenerateIsNormalized(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := Generate()
		if Normalize(id) != id {
			t.Fatalf("generated ID %q is not normalized", id)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ab12cd", "AB12CD"},
		{"  AB12CD  ", "AB12CD"},
		{"\tab12cd\n", "AB12CD"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"ab12cd", " XY98ZW ", "a1b2c3", "ZZZZZZ", "  "}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"valid lowercase", "ab23cd", "AB23CD", false},
		{"valid with spaces", "  XY98ZW ", "XY98ZW", false},
		{"shared token with untrimmed lowercase input", "  ab12cd ", "AB12CD", false},
		{"zero and one accepted", "AB10CD", "AB10CD", false},
		{"letters outside the generation alphabet accepted", "ABOOCD", "ABOOCD", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too short", "AB2", "", true},
		{"too long", "AB23CD9", "", true},
		{"punctuation", "AB-2CD", "", true},
		{"non-ascii", "AB1ÇC", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRoomID) {
					t.Fatalf("Validate(%q) error = %v, want ErrInvalidRoomID", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("Validate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
