package auth

// TicketValidator turns a cookie ticket back into a principal without tying
// callers to a specific signing implementation.
type TicketValidator interface {
	Validate(ticket string) (*ClaimsPrincipal, error)
}

// TicketValidatorFunc adapts a function into a TicketValidator.
type TicketValidatorFunc func(ticket string) (*ClaimsPrincipal, error)

// Validate satisfies the TicketValidator interface.
func (f TicketValidatorFunc) Validate(ticket string) (*ClaimsPrincipal, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(ticket)
}

// MultiTicketValidator tries validators in order until one succeeds, which
// lets tickets signed under a retired key ring keep working during rotation.
// Decode failures move on to the next validator, any other error stops.
type MultiTicketValidator struct {
	validators []TicketValidator
}

// NewMultiTicketValidator filters nil validators and returns a composite validator.
func NewMultiTicketValidator(validators ...TicketValidator) *MultiTicketValidator {
	filtered := make([]TicketValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTicketValidator{validators: filtered}
}

// Validate satisfies the TicketValidator interface.
func (m *MultiTicketValidator) Validate(ticket string) (*ClaimsPrincipal, error) {
	var lastErr error
	for _, v := range m.validators {
		p, err := v.Validate(ticket)
		if err == nil {
			return p, nil
		}
		if IsSessionDecodeError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrUnableToDecodeSession
}
