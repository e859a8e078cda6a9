package ledger

import (
	"fmt"
	"strings"
	"sync"

	types "github.com/yungbote/loanbook-backend/internal/domain"
)

// PolicyKind selects which payment records count toward a loan's
// total_amount_received. Exactly one policy is active per deployment; it is
// configuration, not a per-request parameter, because changing it reclassifies
// every existing loan and must be followed by a full repair pass.
type PolicyKind string

const (
	// PolicyChecklistStrict counts a record only once a human has checked it
	// off as received. Uncommitted or partial cash is ignored until then.
	PolicyChecklistStrict PolicyKind = "checklist_strict"

	// PolicyCashReceivedInclusive counts every recorded amount immediately,
	// including partial amounts on records not yet marked received.
	PolicyCashReceivedInclusive PolicyKind = "cash_received_inclusive"
)

func ParsePolicyKind(s string) (PolicyKind, error) {
	switch PolicyKind(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyChecklistStrict:
		return PolicyChecklistStrict, nil
	case PolicyCashReceivedInclusive:
		return PolicyCashReceivedInclusive, nil
	}
	return "", fmt.Errorf("%w: unknown policy %q", ErrPolicyMisconfigured, s)
}

func (k PolicyKind) Valid() bool {
	return k == PolicyChecklistStrict || k == PolicyCashReceivedInclusive
}

// Counts reports whether the record's received_amount contributes to the loan
// total under this policy. Policy only affects the money total; the two date
// aggregates use the same formula under every policy.
func (k PolicyKind) Counts(record *types.PaymentRecord) bool {
	switch k {
	case PolicyChecklistStrict:
		return record.IsReceived
	case PolicyCashReceivedInclusive:
		return true
	}
	return false
}

// Registry holds the single active policy. Construction fails on an invalid
// kind so a misconfigured deployment refuses to process any mutation at all.
type Registry struct {
	mu     sync.RWMutex
	active PolicyKind
}

func NewRegistry(kind PolicyKind) (*Registry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrPolicyMisconfigured, string(kind))
	}
	return &Registry{active: kind}, nil
}

func (r *Registry) Active() PolicyKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Set switches the active policy. Callers must follow a successful switch with
// a full repair pass; Repairer.SetPolicy does both together.
func (r *Registry) Set(kind PolicyKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrPolicyMisconfigured, string(kind))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = kind
	return nil
}
