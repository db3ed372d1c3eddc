package auth

import "fmt"

var protectedClaimTypes = []string{
	ClaimTypeAccountID,
	ClaimTypeUsername,
	ClaimTypeSecurityStamp,
	ClaimTypePersistent,
}

// IsProtectedClaimType reports whether claimType is written only by the
// principal builder. Collaborators and decorators may not supply it.
func IsProtectedClaimType(claimType string) bool {
	for _, t := range protectedClaimTypes {
		if t == claimType {
			return true
		}
	}
	return false
}

type protectedClaimsSnapshot map[string][]string

func captureProtectedClaims(identity *ClaimsIdentity) protectedClaimsSnapshot {
	snap := protectedClaimsSnapshot{}
	for _, claimType := range protectedClaimTypes {
		for _, c := range identity.FindAll(claimType) {
			snap[claimType] = append(snap[claimType], c.Value)
		}
	}
	return snap
}

func (snap protectedClaimsSnapshot) validate(identity *ClaimsIdentity) error {
	for _, claimType := range protectedClaimTypes {
		current := identity.FindAll(claimType)
		expected := snap[claimType]
		if len(current) != len(expected) {
			return immutableClaimViolation(claimType)
		}
		for i := range current {
			if current[i].Value != expected[i] {
				return immutableClaimViolation(claimType)
			}
		}
	}
	return nil
}

func immutableClaimViolation(claimType string) error {
	clone := ErrImmutableClaimMutation.Clone()
	if clone == nil {
		return ErrImmutableClaimMutation
	}
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", claimType)
	clone.Source = ErrImmutableClaimMutation
	return clone.WithMetadata(map[string]any{"claim": claimType})
}
