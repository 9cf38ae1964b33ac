package params

import "time"

type WebDaemonConfig struct {
	ListenerConfig
	DataDir string

	// AllowedOrigin is echoed in Access-Control-Allow-Origin.
	AllowedOrigin string

	// PublicURL is the externally visible base URL, used to build links in emails.
	PublicURL string

	ShutdownTimeout time.Duration

	Reduce *ReduceConfig
	Store  *StoreConfig
	Mail   *MailConfig
	Image  *ImageConfig
	Levels LevelTable

	// TokenSecret signs email confirmation tokens.
	// If empty, a random one is generated at startup and outstanding links die with the process.
	TokenSecret string
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:8000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig:  DefaultWebListenerConfig(),
		DataDir:         DefaultDatadirRoot,
		AllowedOrigin:   "*",
		PublicURL:       "http://localhost:8000",
		ShutdownTimeout: 10 * time.Second,
		Reduce:          DefaultReduceConfig(),
		Store:           DefaultStoreConfig(),
		Mail:            DefaultMailConfig(),
		Image:           DefaultImageConfig(),
		Levels:          DefaultLevelTable(),
	}
}

// DefaultTestWebDaemonConfig returns a config for tests.
// Callers must set DataDir (and Store.DataDir) to a temp dir.
func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	d := DefaultWebDaemonConfig()
	d.DataDir = ""
	d.Address = "localhost:8333"
	d.Store.DataDir = ""
	d.Mail.Workers = 1
	d.Image.S3Bucket = ""
	d.TokenSecret = "test-secret"
	return d
}
