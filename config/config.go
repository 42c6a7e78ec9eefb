package config

import (
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const envPrefix = "TLSPROBE_"

type Config struct {
	// Address the HTTP front end listens on.
	HTTPAddr string

	// Base URL used in the links handed out when a probe is allocated. Empty
	// means derive it from the request.
	BaseURL string

	// Host probe listeners bind to. Each probe gets an ephemeral port on it.
	ProbeHost string

	// Longest wait for the client to send its ClientHello once connected.
	ReadTimeout time.Duration

	// Longest wait for a client to connect to an allocated probe when the
	// report is requested.
	AcceptTimeout time.Duration

	// How long an allocated probe stays claimable.
	SessionTTL time.Duration

	// Cap on the bytes buffered from one probe connection.
	MaxBufferedBytes int

	// Cap on the declared length of the ClientHello.
	MaxHandshakeLength int64

	// Memory shared by all probe buffers, and the size of each chunk drawn from
	// it.
	PoolSize_bytes      int64
	PoolChunkSize_bytes int64

	Development bool

	// A zap level name overriding the one Development implies. Empty means no
	// override.
	LogLevel string
}

func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		ProbeHost:           "0.0.0.0",
		ReadTimeout:         10 * time.Second,
		AcceptTimeout:       60 * time.Second,
		SessionTTL:          5 * time.Minute,
		MaxBufferedBytes:    64 * 1024,
		MaxHandshakeLength:  64 * 1024,
		PoolSize_bytes:      16 * 1024 * 1024,
		PoolChunkSize_bytes: 4 * 1024,
	}
}

// Loads configuration from the given .env files (".env" if none), then from
// TLSPROBE_* environment variables, on top of Default(). Variables already set
// in the environment take precedence over .env files. Missing .env files are
// not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Wrap(err, "failed to load .env file")
	}
	return FromEnv(os.LookupEnv)
}

// Builds a Config from Default() and the TLSPROBE_* variables found by lookup.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	e := envReader{lookup: lookup}

	e.string("HTTP_ADDR", &c.HTTPAddr)
	e.string("BASE_URL", &c.BaseURL)
	e.string("PROBE_HOST", &c.ProbeHost)
	e.duration("READ_TIMEOUT", &c.ReadTimeout)
	e.duration("ACCEPT_TIMEOUT", &c.AcceptTimeout)
	e.duration("SESSION_TTL", &c.SessionTTL)
	e.int("MAX_BUFFERED_BYTES", &c.MaxBufferedBytes)
	e.int64("MAX_HANDSHAKE_LENGTH", &c.MaxHandshakeLength)
	e.int64("POOL_BYTES", &c.PoolSize_bytes)
	e.int64("POOL_CHUNK_BYTES", &c.PoolChunkSize_bytes)
	e.bool("DEVELOPMENT", &c.Development)
	e.string("LOG_LEVEL", &c.LogLevel)

	if e.err != nil {
		return Config{}, e.err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.ReadTimeout <= 0:
		return errors.New("read timeout must be positive")
	case c.AcceptTimeout <= 0:
		return errors.New("accept timeout must be positive")
	case c.SessionTTL <= 0:
		return errors.New("session TTL must be positive")
	case c.MaxBufferedBytes <= 0:
		return errors.New("max buffered bytes must be positive")
	case c.MaxHandshakeLength <= 0:
		return errors.New("max handshake length must be positive")
	case c.PoolChunkSize_bytes <= 0 || c.PoolSize_bytes < c.PoolChunkSize_bytes:
		return errors.Errorf("pool of %d bytes cannot hold chunks of %d bytes", c.PoolSize_bytes, c.PoolChunkSize_bytes)
	}
	return nil
}

// Reads prefixed variables, keeping the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(envPrefix + name)
	return v, ok && v != ""
}

func (e *envReader) fail(name string, err error) {
	e.err = errors.Wrapf(err, "invalid %s%s", envPrefix, name)
}

func (e *envReader) string(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = d
	}
}

func (e *envReader) int(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(name string, dst *int64) {
	if v, ok := e.get(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) bool(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = b
	}
}
