package legacy

// Options exposes configurable attributes of the handler.
type Options struct {
	// URI of the legacy stateless JSON-RPC endpoint (default: /rpc).
	URI string
}

// Option mutates Options.
type Option func(*Options)

// WithURI sets a custom URI.
func WithURI(uri string) Option {
	return func(o *Options) { o.URI = uri }
}
