package symbols

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Apple, Inc.", "apple inc"},
		{"AT&T Inc.", "at t inc"},
		{"  The Walt Disney Company ", "the walt disney company"},
		{"S&P 500", "s p 500"},
		{"NVIDIA", "nvidia"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"apple inc", "apple"},
		{"the walt disney company", "walt disney"},
		{"bank of america corporation", "bank of america"},
		{"ford motor company", "ford motor"},
		{"spdr s p 500 etf trust", "spdr s p 500"},
		{"inc", "inc"},
		{"tesla", "tesla"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := stripName(tt.in); got != tt.want {
			t.Errorf("stripName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAliasSet(t *testing.T) {
	t.Run("ticker, name, stripped name, joined forms", func(t *testing.T) {
		got := aliasSet("AAPL", "Apple, Inc.")
		want := map[string]bool{
			"aapl":      true,
			"apple inc": true,
			"apple":     true,
			"appleinc":  true,
		}
		if len(got) != len(want) {
			t.Fatalf("aliasSet = %v, want keys %v", got, want)
		}
		for _, a := range got {
			if !want[a] {
				t.Errorf("unexpected alias %q", a)
			}
		}
	})

	t.Run("stopword ticker never becomes an alias", func(t *testing.T) {
		got := aliasSet("ALL", "The Allstate Corporation")
		for _, a := range got {
			if a == "all" {
				t.Error("stopword ticker leaked into aliases")
			}
		}
		if !containsAlias(got, "allstate") {
			t.Errorf("aliases %v missing stripped name", got)
		}
	})

	t.Run("one-letter ticker is dropped", func(t *testing.T) {
		got := aliasSet("F", "Ford Motor Company")
		for _, a := range got {
			if a == "f" {
				t.Error("one-character alias kept")
			}
		}
		if !containsAlias(got, "ford motor") {
			t.Errorf("aliases %v missing stripped name", got)
		}
	})
}

func TestIsStopword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"US", true},
		{"us", true},
		{"CEO", true},
		{"SEC", true},
		{"AAPL", false},
		{"TSLA", false},
		{"apple", false},
	}
	for _, tt := range tests {
		if got := IsStopword(tt.in); got != tt.want {
			t.Errorf("IsStopword(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func containsAlias(aliases []string, want string) bool {
	for _, a := range aliases {
		if a == want {
			return true
		}
	}
	return false
}
