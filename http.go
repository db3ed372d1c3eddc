package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// CookieAuthenticator keeps principals in signed cookie tickets, one cookie
// per scheme, and revalidates the primary cookie on every request.
type CookieAuthenticator struct {
	tickets      *TicketService
	validator    TicketValidator
	guard        *SecurityStampGuard
	secure       bool
	path         string
	localsKey    string
	Logger       Logger
	ErrorHandler func(c *fiber.Ctx, err error) error
}

// CookieOption configures a CookieAuthenticator
type CookieOption func(*CookieAuthenticator)

// WithCookieSecure toggles the Secure attribute
func WithCookieSecure(secure bool) CookieOption {
	return func(a *CookieAuthenticator) {
		a.secure = secure
	}
}

// WithCookiePath sets the cookie path
func WithCookiePath(path string) CookieOption {
	return func(a *CookieAuthenticator) {
		a.path = path
	}
}

// WithTicketValidator accepts tickets from validators other than the
// issuing service, for example a previous key ring
func WithTicketValidator(v TicketValidator) CookieOption {
	return func(a *CookieAuthenticator) {
		a.validator = v
	}
}

// WithPrincipalLocalsKey sets the fiber locals key for the principal
func WithPrincipalLocalsKey(key string) CookieOption {
	return func(a *CookieAuthenticator) {
		a.localsKey = key
	}
}

// WithCookieLogger sets the logger
func WithCookieLogger(l Logger) CookieOption {
	return func(a *CookieAuthenticator) {
		a.Logger = l
	}
}

func NewCookieAuthenticator(tickets *TicketService, guard *SecurityStampGuard, opts ...CookieOption) (*CookieAuthenticator, error) {
	if tickets == nil {
		return nil, configurationError("ticket service is required")
	}
	if guard == nil {
		return nil, configurationError("security stamp guard is required")
	}

	a := &CookieAuthenticator{
		tickets:   tickets,
		validator: tickets,
		guard:     guard,
		secure:    true,
		path:      "/",
		localsKey: DefaultPrincipalLocalsKey,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.validator == nil {
		a.validator = tickets
	}

	_, a.Logger = ResolveLogger("auth.cookie", nil, a.Logger)
	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// SignIn writes p to the cookie named after its scheme. Persistent
// principals get an expiring cookie, others a browser session cookie.
func (a *CookieAuthenticator) SignIn(c *fiber.Ctx, p *ClaimsPrincipal) error {
	ticket, expires, err := a.tickets.Issue(p)
	if err != nil {
		a.Logger.Error("failed to issue session ticket", "error", err)
		return err
	}

	cookie := a.cookie(p.AuthenticationScheme(), ticket)
	if p.IsPersistent() {
		cookie.Expires = expires
	} else {
		cookie.SessionOnly = true
	}
	c.Cookie(cookie)
	return nil
}

// SignOut clears the cookie of scheme
func (a *CookieAuthenticator) SignOut(c *fiber.Ctx, scheme string) error {
	if scheme == "" {
		return invalidArgument("scheme")
	}
	a.cookieDel(c, scheme)
	return nil
}

// SignOutAll clears both the primary and the secondary cookie
func (a *CookieAuthenticator) SignOutAll(c *fiber.Ctx) {
	a.cookieDel(c, a.guard.PrimaryScheme())
	a.cookieDel(c, a.guard.SecondaryScheme())
}

// Middleware decodes and revalidates the primary cookie. Accepted
// principals are stored in fiber locals and in the user context. Missing,
// undecodable or rejected cookies leave the request anonymous.
func (a *CookieAuthenticator) Middleware() fiber.Handler {
	primary := a.guard.PrimaryScheme()
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(primary)
		if raw == "" {
			return c.Next()
		}

		p, err := a.validator.Validate(raw)
		if err != nil {
			a.Logger.Debug("session cookie discarded", "error", err)
			a.cookieDel(c, primary)
			return c.Next()
		}

		if p.AuthenticationScheme() != primary {
			a.cookieDel(c, primary)
			return c.Next()
		}

		decision := a.guard.Enforce(c.UserContext(), p, func(scheme string) error {
			return a.SignOut(c, scheme)
		})

		if decision == DecisionContinue {
			c.Locals(a.localsKey, p)
			c.SetUserContext(WithPrincipal(c.UserContext(), p))
		}

		return c.Next()
	}
}

// RequireAuthenticated rejects requests that the middleware left anonymous
func (a *CookieAuthenticator) RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p, ok := PrincipalFromLocals(c, a.localsKey); ok && p.IsAuthenticated() {
			return c.Next()
		}
		return a.ErrorHandler(c, ErrUnableToFindSession)
	}
}

// PendingPrincipal decodes the secondary cookie left by a sign in that
// requires a second factor
func (a *CookieAuthenticator) PendingPrincipal(c *fiber.Ctx) (*ClaimsPrincipal, error) {
	secondary := a.guard.SecondaryScheme()
	raw := c.Cookies(secondary)
	if raw == "" {
		return nil, ErrUnableToFindSession
	}

	p, err := a.validator.Validate(raw)
	if err != nil {
		a.cookieDel(c, secondary)
		return nil, err
	}

	if p.AuthenticationScheme() != secondary {
		a.cookieDel(c, secondary)
		return nil, ErrUnableToDecodeSession
	}
	return p, nil
}

// Principal returns the principal accepted by the middleware
func (a *CookieAuthenticator) Principal(c *fiber.Ctx) (*ClaimsPrincipal, bool) {
	return PrincipalFromLocals(c, a.localsKey)
}

func (a *CookieAuthenticator) cookie(name, value string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     a.path,
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

func (a *CookieAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	cookie := a.cookie(name, "")
	cookie.Expires = time.Now().Add(-time.Hour * (24 * 365))
	c.Cookie(cookie)
}

func (a *CookieAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Authentication error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
		"path", c.OriginalURL(),
	)

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return c.Status(status).JSON(fiber.Map{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
