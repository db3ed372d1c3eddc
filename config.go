package auth

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

const (
	DefaultIterationCount  = 10000
	MaxIterationCount      = 10000000
	DefaultSaltSize        = 16
	DefaultSubkeySize      = 32
	DefaultTotpStep        = 3 * time.Minute
	DefaultTokenLifespan   = 24 * time.Hour
	DefaultPrimaryScheme   = "Identity.Application"
	DefaultSecondaryScheme = "Identity.TwoFactorUserId"
	DefaultCookieLifetime  = 14 * 24 * time.Hour
	DefaultLookupTimeout   = 5 * time.Second
)

// Options holds every tunable of the package. Zero values are not defaults,
// start from DefaultOptions.
type Options struct {
	IterationCount  int           `mapstructure:"iteration_count"`
	SaltSize        int           `mapstructure:"salt_size"`
	SubkeySize      int           `mapstructure:"subkey_size"`
	TotpStep        time.Duration `mapstructure:"totp_step"`
	TokenLifespan   time.Duration `mapstructure:"token_lifespan"`
	PrimaryScheme   string        `mapstructure:"primary_scheme"`
	SecondaryScheme string        `mapstructure:"secondary_scheme"`
	CookieLifetime  time.Duration `mapstructure:"cookie_lifetime"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
	LookupTimeout   time.Duration `mapstructure:"lookup_timeout"`
	Issuer          string        `mapstructure:"issuer"`
}

// DefaultOptions returns the documented defaults
func DefaultOptions() Options {
	return Options{
		IterationCount:  DefaultIterationCount,
		SaltSize:        DefaultSaltSize,
		SubkeySize:      DefaultSubkeySize,
		TotpStep:        DefaultTotpStep,
		TokenLifespan:   DefaultTokenLifespan,
		PrimaryScheme:   DefaultPrimaryScheme,
		SecondaryScheme: DefaultSecondaryScheme,
		CookieLifetime:  DefaultCookieLifetime,
		CookieSecure:    true,
		LookupTimeout:   DefaultLookupTimeout,
		Issuer:          "go-auth-stamp",
	}
}

// Validate checks the options, returning an ErrConfiguration on failure
func (o Options) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.IterationCount, validation.Required, validation.Min(1), validation.Max(MaxIterationCount)),
		validation.Field(&o.SaltSize, validation.Required, validation.Min(minSaltSize)),
		validation.Field(&o.SubkeySize, validation.Required, validation.Min(minSubkeySize)),
		validation.Field(&o.TotpStep, validation.Required, validation.Min(time.Second)),
		validation.Field(&o.TokenLifespan, validation.Required, validation.Min(time.Second)),
		validation.Field(&o.PrimaryScheme, validation.Required),
		validation.Field(&o.SecondaryScheme, validation.Required, validation.By(differsFrom(o.PrimaryScheme))),
		validation.Field(&o.CookieLifetime, validation.Required, validation.Min(time.Minute)),
		validation.Field(&o.LookupTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "invalid configuration").
			WithTextCode(TextCodeConfiguration).
			WithCode(errors.CodeInternal)
	}
	return nil
}

func differsFrom(other string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s == other {
			return errors.New("must differ from the primary scheme", errors.CategoryValidation)
		}
		return nil
	}
}

// LoadOptions reads options from v, falling back to DefaultOptions for
// anything unset. Environment variables use the AUTH_ prefix, for example
// AUTH_ITERATION_COUNT or AUTH_TOKEN_LIFESPAN=48h. A nil v uses a fresh viper.
func LoadOptions(v *viper.Viper) (Options, error) {
	if v == nil {
		v = viper.New()
	}

	def := DefaultOptions()
	v.SetDefault("iteration_count", def.IterationCount)
	v.SetDefault("salt_size", def.SaltSize)
	v.SetDefault("subkey_size", def.SubkeySize)
	v.SetDefault("totp_step", def.TotpStep)
	v.SetDefault("token_lifespan", def.TokenLifespan)
	v.SetDefault("primary_scheme", def.PrimaryScheme)
	v.SetDefault("secondary_scheme", def.SecondaryScheme)
	v.SetDefault("cookie_lifetime", def.CookieLifetime)
	v.SetDefault("cookie_secure", def.CookieSecure)
	v.SetDefault("lookup_timeout", def.LookupTimeout)
	v.SetDefault("issuer", def.Issuer)

	v.SetEnvPrefix("AUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return Options{}, errors.Wrap(err, errors.CategoryInternal, "failed to read configuration").
			WithTextCode(TextCodeConfiguration)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}

	return opts, nil
}
