package models

import "testing"

func TestParseTransactionSource(t *testing.T) {
	cases := []struct {
		in   string
		want TransactionSource
		ok   bool
	}{
		{"APP", SourceApp, true},
		{"bank", SourceBank, true},
		{" gateway ", SourceGateway, true},
		{"ATM", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseTransactionSource(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseTransactionSource(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizeTransactionStatus(t *testing.T) {
	cases := []struct {
		in   string
		want TransactionStatus
	}{
		{"SUCCESS", TxStatusSuccess},
		{"success", TxStatusSuccess},
		{" Failed ", TxStatusFailed},
		{"pending", TxStatusPending},
		{"SETTLED", TxStatusPending},
		{"", TxStatusPending},
	}
	for _, tc := range cases {
		if got := NormalizeTransactionStatus(tc.in); got != tc.want {
			t.Errorf("NormalizeTransactionStatus(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestReconciliationStatusTerminal(t *testing.T) {
	if ReconStatusIncomplete.Terminal() {
		t.Error("INCOMPLETE reported terminal")
	}
	if ReconciliationStatus("").Terminal() {
		t.Error("empty status reported terminal")
	}
	for _, s := range []ReconciliationStatus{ReconStatusMatched, ReconStatusAmountMismatch, ReconStatusStatusMismatch, ReconStatusTimeoutMissing} {
		if !s.Terminal() {
			t.Errorf("%s not reported terminal", s)
		}
	}
}

func TestSourcesRoundTrip(t *testing.T) {
	in := []TransactionSource{SourceApp, SourceBank}
	state := TransactionState{ReceivedSources: JoinSources(in)}
	if state.ReceivedSources != "APP,BANK" {
		t.Fatalf("joined = %q", state.ReceivedSources)
	}
	out := state.Sources()
	if len(out) != 2 || out[0] != SourceApp || out[1] != SourceBank {
		t.Fatalf("sources = %v", out)
	}

	empty := TransactionState{}
	if empty.Sources() != nil {
		t.Fatal("empty received_sources should yield nil")
	}
}
