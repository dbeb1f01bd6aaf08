package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/veriden/authcore/devicetrust"
	"github.com/veriden/authcore/event"
	"github.com/veriden/authcore/internal/rate"
	"github.com/veriden/authcore/internal/stores"
	"github.com/veriden/authcore/keys"
	"github.com/veriden/authcore/password"
	"github.com/veriden/authcore/session"
	"github.com/veriden/authcore/sms"
	"github.com/veriden/authcore/token"
	"github.com/veriden/authcore/totp"
)

// Builder assembles an Authenticator. Redis and a UserStore are required;
// everything else has defaults.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	smsSender sms.Sender

	eventLog       event.Log
	eventPublisher event.Publisher

	built bool
}

func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithSMSSender enables the SMS method. Without a sender, SMS challenges
// are refused with ErrSMSNotConfigured.
func (b *Builder) WithSMSSender(sender sms.Sender) *Builder {
	b.smsSender = sender
	return b
}

// WithEventLog sets the durable append-only event store. Defaults to a
// no-op log.
func (b *Builder) WithEventLog(log event.Log) *Builder {
	b.eventLog = log
	return b
}

// WithEventPublisher sets the bus delivery target, e.g. a
// event.StreamPublisher. Defaults to a no-op publisher.
func (b *Builder) WithEventPublisher(publisher event.Publisher) *Builder {
	b.eventPublisher = publisher
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) Build() (*Authenticator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.users == nil {
		return nil, errors.New("user store is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      b.config.Password.Memory,
		Iterations:  b.config.Password.Iterations,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	keyStore, err := keys.NewStore(b.config.Keys.Retirement)
	if err != nil {
		return nil, err
	}

	b.built = true

	a := &Authenticator{
		config: b.config,
		users:  b.users,
		hasher: hasher,
		keys:   keyStore,
		tokens: token.NewIssuer(
			keyStore,
			b.config.Token.Issuer,
			b.config.Token.Audience,
			b.config.Token.AccessTTL,
			b.config.Token.RefreshTTL,
		),
		totp:      totp.NewVerifier(b.config.TOTP.Period, b.config.TOTP.Skew),
		smsSender: b.smsSender,
		smsLimiter: rate.NewSMSLimiter(
			b.redis,
			"",
			b.config.SMS.ResendCooldown,
			b.config.SMS.HourlyWindow,
			b.config.SMS.MaxPerWindow,
		),
		ghostFailures: rate.NewFailureCounter(b.redis, "", b.config.Lockout.LockDuration),
		challenges: stores.NewChallengeStore(b.redis, ""),
		usedCodes:  stores.NewUsedCodeStore(b.redis, ""),
		sessions: session.NewStore(
			b.redis,
			b.config.Session.RedisPrefix,
			b.config.Session.TTL,
			b.config.Session.MaxPerUser,
		),
		trusts: devicetrust.NewStore(
			b.redis,
			b.config.DeviceTrust.RedisPrefix,
			b.config.DeviceTrust.TTL,
			b.config.DeviceTrust.MaxPerUser,
		),
		dispatcher: event.NewDispatcher(b.eventLog, b.eventPublisher, b.config.Events.Buffer),
		metrics:    NewMetrics(b.config.Metrics.Enabled),
	}
	return a, nil
}
