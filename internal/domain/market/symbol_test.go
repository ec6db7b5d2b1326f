package market

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		" aapl ":           "AAPL",
		"TICKER:msft":      "MSFT",
		"stock: reliance ": "RELIANCE",
	}
	for in, want := range cases {
		if got := NormalizeSymbol(in); got != want {
			t.Fatalf("NormalizeSymbol(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestRegionalSuffixes(t *testing.T) {
	if !HasRegionalSuffix("tcs.ns") || HasRegionalSuffix("AAPL") {
		t.Fatal("unexpected suffix detection")
	}
	if !IsRegional("INFY.BO") || IsRegional("BRK.B") {
		t.Fatal("unexpected regional classification")
	}
}

func TestCurrencySymbol(t *testing.T) {
	if CurrencySymbol("inr") != "₹" || CurrencySymbol("") != "$" || CurrencySymbol("CHF") != "CHF " {
		t.Fatal("unexpected currency symbols")
	}
}
