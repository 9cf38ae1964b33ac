package params

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
)

// DefaultDatadirRoot is where trekd keeps its database and images, unless told otherwise.
var DefaultDatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		slog.Warn("No home directory, using working directory for data", "error", err)
		return ".trekd"
	}
	return filepath.Join(home, ".trekd")
}()

const (
	StoreDBName  = "trekd.db"
	ImagesSubdir = "images"
)

var (
	BucketUsers     = []byte("users")
	BucketUsernames = []byte("usernames")
	BucketEmails    = []byte("emails")
	BucketTokens    = []byte("tokens")
	BucketRoutes    = []byte("routes")
	BucketShares    = []byte("shares")
	BucketRatings   = []byte("ratings")
	BucketComments  = []byte("comments")
)

// StoreConfig configures the bbolt store and the caches sitting in front of it.
type StoreConfig struct {
	DataDir string

	// RouteCacheSize is the number of decoded routes kept in the LRU cache.
	RouteCacheSize int

	// TokenCacheTTL is how long an auth token lookup is trusted before going back to disk.
	TokenCacheTTL time.Duration

	// OpenTimeout bounds the wait for the bbolt file lock.
	OpenTimeout time.Duration
}

func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		DataDir:        DefaultDatadirRoot,
		RouteCacheSize: 1_000,
		TokenCacheTTL:  15 * time.Minute,
		OpenTimeout:    5 * time.Second,
	}
}

// ConfirmEmailMaxAge is how long an email confirmation link stays valid.
var ConfirmEmailMaxAge = 24 * time.Hour

// SearchMinChars is the minimum number of non-space characters in a user search.
var SearchMinChars = 3

// Route defaults, applied on creation when the client leaves a field blank.
var (
	DefaultRouteDescription      = "No description provided"
	DefaultRouteDistanceKm       = 1.0
	DefaultRouteEstimatedMinutes = 60
)
