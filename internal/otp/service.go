// Package otp issues and verifies one-time codes. Codes are stored as bcrypt
// hashes in Redis next to a per-subject send counter and attempt counter.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrRateLimited     = errors.New("too many codes requested, try again later")
	ErrCodeExpired     = errors.New("code expired or was never issued")
	ErrInvalidCode     = errors.New("invalid code")
	ErrTooManyAttempts = errors.New("too many failed attempts, request a new code")
	ErrInvalidSubject  = errors.New("subject is required")
)

// Sender delivers a freshly issued code to its subject (SMS, e-mail, ...).
type Sender interface {
	SendCode(ctx context.Context, subject, code string) error
}

type Config struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
	SendLimit   int
	SendWindow  time.Duration
	HashCost    int
}

func (c Config) withDefaults() Config {
	if c.CodeLength <= 0 {
		c.CodeLength = 6
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.SendLimit <= 0 {
		c.SendLimit = 3
	}
	if c.SendWindow <= 0 {
		c.SendWindow = 15 * time.Minute
	}
	if c.HashCost == 0 {
		c.HashCost = bcrypt.DefaultCost
	}
	return c
}

type Service struct {
	client *redis.Client
	sender Sender
	cfg    Config
}

func NewService(client *redis.Client, sender Sender, cfg Config) *Service {
	return &Service{
		client: client,
		sender: sender,
		cfg:    cfg.withDefaults(),
	}
}

// incrWindow bumps a counter and starts its expiry on the first hit, in one
// atomic step so a counter can never be left without a TTL.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

func (s *Service) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrWindow.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
}

func codeKey(subject string) string     { return "otp:code:" + subject }
func attemptsKey(subject string) string { return "otp:attempts:" + subject }
func sendsKey(subject string) string    { return "otp:sends:" + subject }

func normalize(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// Send issues a new code for subject, replacing any previous one.
func (s *Service) Send(ctx context.Context, subject string) error {
	subject = normalize(subject)
	if subject == "" {
		return ErrInvalidSubject
	}

	sends, err := s.incr(ctx, sendsKey(subject), s.cfg.SendWindow)
	if err != nil {
		return fmt.Errorf("otp: failed to count sends: %w", err)
	}
	if sends > int64(s.cfg.SendLimit) {
		log.Warn().Str("subject", subject).Int64("sends", sends).Msg("otp: send rate limit hit")
		return ErrRateLimited
	}

	code, err := generateCode(s.cfg.CodeLength)
	if err != nil {
		return fmt.Errorf("otp: failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.HashCost)
	if err != nil {
		return fmt.Errorf("otp: failed to hash code: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, codeKey(subject), hash, s.cfg.TTL)
		pipe.Del(ctx, attemptsKey(subject))
		return nil
	})
	if err != nil {
		return fmt.Errorf("otp: failed to store code: %w", err)
	}

	if err := s.sender.SendCode(ctx, subject, code); err != nil {
		return fmt.Errorf("otp: failed to deliver code: %w", err)
	}

	log.Info().Str("subject", subject).Msg("otp: code issued")
	return nil
}

// Verify checks code against the one issued for subject. Every call uses up
// one of MaxAttempts before the code is compared. A matching code is consumed.
func (s *Service) Verify(ctx context.Context, subject, code string) error {
	subject = normalize(subject)
	if subject == "" {
		return ErrInvalidSubject
	}

	hash, err := s.client.Get(ctx, codeKey(subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeExpired
		}
		return fmt.Errorf("otp: failed to load code: %w", err)
	}

	attempt, err := s.incr(ctx, attemptsKey(subject), s.cfg.TTL)
	if err != nil {
		return fmt.Errorf("otp: failed to count attempt: %w", err)
	}
	if attempt > int64(s.cfg.MaxAttempts) {
		return ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(code)) != nil {
		log.Warn().Str("subject", subject).Int64("attempts", attempt).Msg("otp: wrong code")
		if attempt >= int64(s.cfg.MaxAttempts) {
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}

	// Only the caller that actually removes the code wins.
	deleted, err := s.client.Del(ctx, codeKey(subject)).Result()
	if err != nil {
		return fmt.Errorf("otp: failed to consume code: %w", err)
	}
	if deleted == 0 {
		return ErrCodeExpired
	}
	if err := s.client.Del(ctx, attemptsKey(subject)).Err(); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("otp: failed to reset attempts")
	}

	log.Info().Str("subject", subject).Msg("otp: code verified")
	return nil
}

func generateCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// LogSender writes codes to the service log. Meant for local development.
type LogSender struct{}

func (LogSender) SendCode(_ context.Context, subject, code string) error {
	log.Debug().Str("subject", subject).Str("code", code).Msg("otp: delivering code")
	return nil
}
