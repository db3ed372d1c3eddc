package auth

import (
	"strconv"
	"sync"
)

// Claim types written by this package
const (
	ClaimTypeAccountID     = "auth/account_id"
	ClaimTypeUsername      = "auth/username"
	ClaimTypeSecurityStamp = "auth/security_stamp"
	ClaimTypePersistent    = "auth/is_persistent"
	ClaimTypeRole          = "auth/role"
)

// ClaimsIdentity is an ordered claim set issued under one authentication
// scheme. Reads and writes are safe for concurrent use. Identities decoded
// from external sources may be read only.
type ClaimsIdentity struct {
	mu       sync.RWMutex
	scheme   string
	claims   []Claim
	readOnly bool
}

// NewClaimsIdentity returns a mutable identity
func NewClaimsIdentity(scheme string, claims ...Claim) *ClaimsIdentity {
	id := &ClaimsIdentity{scheme: scheme}
	id.claims = append(id.claims, claims...)
	return id
}

// AuthenticationScheme returns the scheme the identity was issued under
func (i *ClaimsIdentity) AuthenticationScheme() string {
	if i == nil {
		return ""
	}
	return i.scheme
}

// IsAuthenticated reports whether the identity carries a scheme
func (i *ClaimsIdentity) IsAuthenticated() bool {
	return i != nil && i.scheme != ""
}

// IsReadOnly reports whether in place updates are refused
func (i *ClaimsIdentity) IsReadOnly() bool {
	if i == nil {
		return true
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.readOnly
}

// ReadOnly returns a frozen copy of the identity
func (i *ClaimsIdentity) ReadOnly() *ClaimsIdentity {
	clone := NewClaimsIdentity(i.AuthenticationScheme(), i.Claims()...)
	clone.readOnly = true
	return clone
}

// Claims returns a copy of the claims in issue order
func (i *ClaimsIdentity) Claims() []Claim {
	if i == nil {
		return nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Claim, len(i.claims))
	copy(out, i.claims)
	return out
}

// FindFirst returns the first claim of the given type
func (i *ClaimsIdentity) FindFirst(claimType string) (Claim, bool) {
	if i == nil {
		return Claim{}, false
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, c := range i.claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// FindAll returns every claim of the given type
func (i *ClaimsIdentity) FindAll(claimType string) []Claim {
	if i == nil {
		return nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []Claim
	for _, c := range i.claims {
		if c.Type == claimType {
			out = append(out, c)
		}
	}
	return out
}

// HasClaim reports whether an exact claim is present
func (i *ClaimsIdentity) HasClaim(claimType, value string) bool {
	for _, c := range i.FindAll(claimType) {
		if c.Value == value {
			return true
		}
	}
	return false
}

// AddClaim appends a claim
func (i *ClaimsIdentity) AddClaim(c Claim) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.readOnly {
		return false
	}
	i.claims = append(i.claims, c)
	return true
}

// RemoveClaim removes the first exact match
func (i *ClaimsIdentity) RemoveClaim(c Claim) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.readOnly {
		return false
	}
	return i.removeLocked(c)
}

func (i *ClaimsIdentity) removeLocked(c Claim) bool {
	for idx, existing := range i.claims {
		if existing == c {
			i.claims = append(i.claims[:idx], i.claims[idx+1:]...)
			return true
		}
	}
	return false
}

// ClaimReplacement pairs a stale claim with the claim that supersedes it
type ClaimReplacement struct {
	Stale Claim
	Fresh Claim
}

// ReplaceClaims applies every replacement under a single write lock, so
// readers observe either all of the old claims or all of the new ones. Each
// fresh claim takes the position of its stale claim. Nothing changes and
// false is returned when the identity is read only or a stale claim is no
// longer present.
func (i *ClaimsIdentity) ReplaceClaims(replacements ...ClaimReplacement) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.readOnly {
		return false
	}

	positions := make([]int, len(replacements))
	for n, r := range replacements {
		positions[n] = -1
		for idx, existing := range i.claims {
			if existing == r.Stale && !containsIndex(positions[:n], idx) {
				positions[n] = idx
				break
			}
		}
		if positions[n] < 0 {
			return false
		}
	}

	for n, r := range replacements {
		i.claims[positions[n]] = r.Fresh
	}
	return true
}

func containsIndex(indexes []int, idx int) bool {
	for _, v := range indexes {
		if v == idx {
			return true
		}
	}
	return false
}

// ClaimsPrincipal is the authenticated subject of a request
type ClaimsPrincipal struct {
	identity *ClaimsIdentity
}

// NewClaimsPrincipal wraps identity. A nil identity is an anonymous principal.
func NewClaimsPrincipal(identity *ClaimsIdentity) *ClaimsPrincipal {
	return &ClaimsPrincipal{identity: identity}
}

// Identity returns the primary identity, possibly nil
func (p *ClaimsPrincipal) Identity() *ClaimsIdentity {
	if p == nil {
		return nil
	}
	return p.identity
}

// AuthenticationScheme returns the scheme of the primary identity
func (p *ClaimsPrincipal) AuthenticationScheme() string {
	return p.Identity().AuthenticationScheme()
}

// IsAuthenticated reports whether the principal carries an identity
func (p *ClaimsPrincipal) IsAuthenticated() bool {
	return p.Identity().IsAuthenticated()
}

// AccountID parses the account-id claim
func (p *ClaimsPrincipal) AccountID() (int64, bool) {
	c, ok := p.Identity().FindFirst(ClaimTypeAccountID)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(c.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Username returns the username claim
func (p *ClaimsPrincipal) Username() string {
	c, _ := p.Identity().FindFirst(ClaimTypeUsername)
	return c.Value
}

// SecurityStamp parses the security-stamp claim
func (p *ClaimsPrincipal) SecurityStamp() (SecurityStamp, bool) {
	c, ok := p.Identity().FindFirst(ClaimTypeSecurityStamp)
	if !ok {
		return ZeroStamp, false
	}
	stamp, err := ParseSecurityStamp(c.Value)
	if err != nil {
		return ZeroStamp, false
	}
	return stamp, true
}

// IsPersistent reports the persistence flag
func (p *ClaimsPrincipal) IsPersistent() bool {
	c, ok := p.Identity().FindFirst(ClaimTypePersistent)
	if !ok {
		return false
	}
	v, _ := strconv.ParseBool(c.Value)
	return v
}

// IsInRole checks for a role claim
func (p *ClaimsPrincipal) IsInRole(role string) bool {
	return p.Identity().HasClaim(ClaimTypeRole, role)
}

// Roles returns the role names in issue order
func (p *ClaimsPrincipal) Roles() []string {
	var roles []string
	for _, c := range p.Identity().FindAll(ClaimTypeRole) {
		roles = append(roles, c.Value)
	}
	return roles
}
