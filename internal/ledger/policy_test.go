package ledger

import (
	"errors"
	"testing"
)

func TestParsePolicyKind(t *testing.T) {
	cases := []struct {
		in      string
		want    PolicyKind
		wantErr bool
	}{
		{"checklist_strict", PolicyChecklistStrict, false},
		{"  Cash_Received_Inclusive ", PolicyCashReceivedInclusive, false},
		{"", "", true},
		{"accrual", "", true},
	}
	for _, tc := range cases {
		got, err := ParsePolicyKind(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrPolicyMisconfigured) {
				t.Fatalf("ParsePolicyKind(%q): err = %v, want ErrPolicyMisconfigured", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParsePolicyKind(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePolicyKind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRegistryRejectsInvalidPolicy(t *testing.T) {
	if _, err := NewRegistry(PolicyKind("")); !errors.Is(err, ErrPolicyMisconfigured) {
		t.Fatalf("NewRegistry(empty): err = %v, want ErrPolicyMisconfigured", err)
	}
	if _, err := NewRegistry(PolicyKind("float_accounting")); !errors.Is(err, ErrPolicyMisconfigured) {
		t.Fatalf("NewRegistry(unknown): err = %v, want ErrPolicyMisconfigured", err)
	}
}

func TestRegistrySwitch(t *testing.T) {
	reg, err := NewRegistry(PolicyChecklistStrict)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := reg.Active(); got != PolicyChecklistStrict {
		t.Fatalf("Active = %q, want checklist_strict", got)
	}

	if err := reg.Set(PolicyCashReceivedInclusive); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := reg.Active(); got != PolicyCashReceivedInclusive {
		t.Fatalf("Active = %q, want cash_received_inclusive", got)
	}

	if err := reg.Set(PolicyKind("bogus")); !errors.Is(err, ErrPolicyMisconfigured) {
		t.Fatalf("Set(bogus): err = %v, want ErrPolicyMisconfigured", err)
	}
	if got := reg.Active(); got != PolicyCashReceivedInclusive {
		t.Fatalf("failed Set must not change the active policy, got %q", got)
	}
}

func TestPolicyPredicates(t *testing.T) {
	checked := paymentOn(t, "2024-01-01", "10", true)
	unchecked := paymentOn(t, "2024-01-01", "10", false)

	if !PolicyChecklistStrict.Counts(checked) {
		t.Fatal("checklist_strict must count received records")
	}
	if PolicyChecklistStrict.Counts(unchecked) {
		t.Fatal("checklist_strict must not count unreceived records")
	}
	if !PolicyCashReceivedInclusive.Counts(checked) || !PolicyCashReceivedInclusive.Counts(unchecked) {
		t.Fatal("cash_received_inclusive must count every record")
	}
}
