package parse

// Config bounds a parse's resource usage and lets a caller cooperate
// on cancellation, per spec.md §5's safety caps and cancellation
// model. The zero value is not useful; use NewConfig.
type Config struct {
	// MaxFieldBytes caps any single bytes/string field's length
	// (spec.md §3's "configurable safety cap, default one million").
	MaxFieldBytes int64

	// MaxDepth caps struct/array nesting to guard against pathological
	// or malicious grammars.
	MaxDepth int

	// MaxRecords caps the number of records a record-stream parse will
	// emit, independent of any grammar-level framing count.
	MaxRecords int64

	// Cancel, if non-nil, is checked between top-level fields (schema
	// mode) or between records (record-stream mode). Returning true
	// stops the parse; already-emitted nodes/records are kept.
	Cancel func() bool
}

// Option mutates a Config during construction.
type Option func(*Config)

func WithMaxFieldBytes(n int64) Option { return func(c *Config) { c.MaxFieldBytes = n } }
func WithMaxDepth(n int) Option        { return func(c *Config) { c.MaxDepth = n } }
func WithMaxRecords(n int64) Option    { return func(c *Config) { c.MaxRecords = n } }
func WithCancel(fn func() bool) Option { return func(c *Config) { c.Cancel = fn } }

const (
	defaultMaxFieldBytes = 1_000_000
	defaultMaxDepth      = 64
	defaultMaxRecords    = 10_000_000
)

// NewConfig builds a Config from the defaults, applying opts in
// order.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		MaxFieldBytes: defaultMaxFieldBytes,
		MaxDepth:      defaultMaxDepth,
		MaxRecords:    defaultMaxRecords,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Config) cancelled() bool {
	return c.Cancel != nil && c.Cancel()
}
