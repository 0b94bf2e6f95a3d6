package agency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	chromemdb "github.com/philippgille/chromem-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	backend "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ravituringworks/agency/internal/adapters/file"
	redisstore "github.com/ravituringworks/agency/internal/adapters/redis"
	"github.com/ravituringworks/agency/internal/config"
	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/adapters/chromem"
	agencyhttp "github.com/ravituringworks/agency/pkg/adapters/http"
	"github.com/ravituringworks/agency/pkg/adapters/mcp"
	"github.com/ravituringworks/agency/pkg/adapters/memory"
	"github.com/ravituringworks/agency/pkg/adapters/openai"
	"github.com/ravituringworks/agency/pkg/adapters/process"
	"github.com/ravituringworks/agency/pkg/adapters/rabbitmq"
	redislock "github.com/ravituringworks/agency/pkg/adapters/redis"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/observability"
	"github.com/ravituringworks/agency/pkg/orchestrator"
	"github.com/ravituringworks/agency/pkg/persistence/middleware"
	"github.com/ravituringworks/agency/pkg/ports"
	"github.com/ravituringworks/agency/pkg/registry"
	"github.com/ravituringworks/agency/pkg/runner"
	"github.com/ravituringworks/agency/pkg/saga"
	"github.com/ravituringworks/agency/pkg/session"
)

// Config is the agent configuration document.
type Config = config.Config

// LoadConfig reads a YAML file (optional) and AGENCY_ environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the configuration with every default applied.
func DefaultConfig() *Config {
	cfg, err := config.Parse(nil)
	if err != nil {
		// Defaults always validate; an error means a broken struct tag.
		panic(err)
	}
	return cfg
}

// Agent is a fully wired agent runtime.
type Agent struct {
	Config   *Config
	Runner   *runner.Runner
	Registry *registry.Registry
	Ledgers  ports.LedgerStore
	Metrics  *observability.Metrics
	Streams  *agencyhttp.StreamManager
	Logger   *slog.Logger

	hooks    domain.LifecycleHooks
	alerter  ports.Alerter
	gatherer prometheus.Gatherer
	closers  []func() error
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	registerer  prometheus.Registerer
	gatherer    prometheus.Gatherer
	redis       *backend.Client
	generator   ports.TextGenerator
	memory      ports.MemoryStore
	alerter     ports.Alerter
	interceptor runner.ToolInterceptor
	tracer      trace.Tracer
	tools       []ports.ToolExecutor
}

// WithLogger overrides the logger built from the log section.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHooks adds lifecycle hooks next to metrics, logging and streams.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) { o.hooks = hooks }
}

// WithRegistry registers metrics on reg instead of the default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registerer = reg
		o.gatherer = reg
	}
}

// WithRedisClient uses client instead of dialing store.redis_addr.
func WithRedisClient(client *backend.Client) Option {
	return func(o *options) { o.redis = client }
}

// WithGenerator overrides the LLM client built from the llm section.
func WithGenerator(gen ports.TextGenerator) Option {
	return func(o *options) { o.generator = gen }
}

// WithMemory overrides the chromem memory store.
func WithMemory(store ports.MemoryStore) Option {
	return func(o *options) { o.memory = store }
}

// WithAlerter overrides the RabbitMQ alerter built from the alerts section.
func WithAlerter(alerter ports.Alerter) Option {
	return func(o *options) { o.alerter = alerter }
}

// WithInterceptor adds a tool interceptor after the allow list and rate limit,
// e.g. an interactive confirmation.
func WithInterceptor(interceptor runner.ToolInterceptor) Option {
	return func(o *options) { o.interceptor = interceptor }
}

// WithTracer overrides the global otel tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithToolExecutor adds an executor behind the built-in registry.
func WithToolExecutor(exec ports.ToolExecutor) Option {
	return func(o *options) { o.tools = append(o.tools, exec) }
}

// New builds an Agent from cfg. Close releases the connections it opened.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Agent, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	o := &options{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(o)
	}

	a := &Agent{Config: cfg, gatherer: o.gatherer}
	if err := a.build(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Agent) build(ctx context.Context, o *options) error {
	cfg := a.Config

	a.Logger = o.logger
	if a.Logger == nil {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		a.Logger = logging.NewWith(os.Stderr, level, logging.Format(cfg.Log.Format))
	}
	a.Logger = a.Logger.With("agent", cfg.Agent.Name)

	metrics, err := observability.NewMetrics(o.registerer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	a.Metrics = metrics
	a.Streams = agencyhttp.NewStreamManager(a.Logger)

	hooks := []domain.LifecycleHooks{metrics.Hooks(), observability.LoggingHooks(a.Logger), a.Streams.Hooks(), o.hooks}
	if err := a.buildAlerter(o); err != nil {
		return err
	}
	if mq, ok := a.alerter.(*rabbitmq.Alerter); ok {
		hooks = append(hooks, mq.Hooks())
	}
	a.hooks = domain.MergeHooks(hooks...)

	conversations, locker, err := a.buildStores(ctx, o)
	if err != nil {
		return err
	}

	sessionOpts := []session.Option{session.WithLogger(a.Logger), session.WithLockTTL(cfg.Store.LockTTL)}
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}
	sessions := session.NewManager(conversations, sessionOpts...)

	tools, err := a.buildTools(ctx, o)
	if err != nil {
		return err
	}

	generator := o.generator
	var llm *openai.Client
	if cfg.LLM.BaseURL != "" {
		llm = openai.New(openai.Config{
			BaseURL:        cfg.LLM.BaseURL,
			APIKey:         cfg.LLM.APIKey,
			Model:          cfg.LLM.Model,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			Timeout:        cfg.LLM.Timeout,
			MaxRetries:     cfg.LLM.Retries,
		})
		if generator == nil {
			generator = llm
		}
	}

	mem := o.memory
	if mem == nil && cfg.Memory.Enabled {
		if mem, err = a.buildMemory(llm, o); err != nil {
			return err
		}
	}

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(a.Logger), orchestrator.WithHooks(a.hooks)}
	runnerOpts := []runner.Option{
		runner.WithConfig(cfg.Runner()),
		runner.WithTools(tools),
		runner.WithSessions(sessions),
		runner.WithInterceptor(a.interceptor(o)),
		runner.WithLogger(a.Logger),
		runner.WithHooks(a.hooks),
	}
	if o.tracer != nil {
		orchOpts = append(orchOpts, orchestrator.WithTracer(o.tracer))
		runnerOpts = append(runnerOpts, runner.WithTracer(o.tracer))
	}
	if generator != nil {
		runnerOpts = append(runnerOpts, runner.WithGenerator(generator))
	}
	if mem != nil {
		runnerOpts = append(runnerOpts, runner.WithMemory(mem))
	}

	a.Runner = runner.New(orchestrator.New(orchestrator.DefaultSteps(), orchOpts...), runnerOpts...)
	return nil
}

func (a *Agent) buildAlerter(o *options) error {
	if o.alerter != nil {
		a.alerter = o.alerter
		return nil
	}
	if a.Config.Alerts.AMQPURL == "" {
		return nil
	}
	mq, err := rabbitmq.Dial(rabbitmq.Config{
		URL:     a.Config.Alerts.AMQPURL,
		Queue:   a.Config.Alerts.Queue,
		Durable: true,
	}, rabbitmq.WithLogger(a.Logger))
	if err != nil {
		return err
	}
	a.closers = append(a.closers, mq.Close)
	a.alerter = mq
	return nil
}

// buildStores selects the ledger and conversation backends and decorates the
// ledger store with redaction, encryption and logging.
func (a *Agent) buildStores(ctx context.Context, o *options) (ports.ConversationStore, ports.DistributedLocker, error) {
	cfg := a.Config.Store

	var (
		ledgers       ports.LedgerStore
		conversations ports.ConversationStore
		locker        ports.DistributedLocker
	)
	switch cfg.Kind {
	case "file":
		ledgers = file.New(filepath.Join(cfg.Dir, "ledgers"))
		conversations = file.NewConversationStore(filepath.Join(cfg.Dir, "sessions"))
	case "redis":
		client := o.redis
		if client == nil {
			client = redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			a.closers = append(a.closers, client.Close)
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		storeOpts := []redisstore.Option{}
		if cfg.TTL > 0 {
			storeOpts = append(storeOpts, redisstore.WithTTL(cfg.TTL))
		}
		ledgers = redisstore.NewLedgerStore(client, storeOpts...)
		conversations = redisstore.NewConversationStore(client, storeOpts...)
		locker = redislock.NewLocker(client, "agency:")
	default:
		ledgers = memory.NewLedgerStore()
		conversations = memory.NewConversationStore()
	}

	// Applied outermost first: logging sees the caller's ledger, PII masking
	// runs before encryption.
	mws := []middleware.Middleware{middleware.NewLoggingMiddleware(a.Logger)}
	if len(cfg.RedactKeys) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.RedactKeys)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, pii)
	}
	key, err := a.Config.EncryptionKeyBytes()
	if err != nil {
		return nil, nil, err
	}
	if key != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, enc)
	}
	a.Ledgers = middleware.Chain(ledgers, mws...)
	return conversations, locker, nil
}

func (a *Agent) buildTools(ctx context.Context, o *options) (ports.ToolExecutor, error) {
	a.Registry = registry.NewBuiltin()
	executors := []ports.ToolExecutor{a.Registry}
	executors = append(executors, o.tools...)

	if path := a.Config.Tools.ProcessFile; path != "" {
		defs, err := process.LoadTools(path)
		if err != nil {
			return nil, err
		}
		executors = append(executors, process.NewExecutor(
			process.WithTools(defs),
			process.WithBaseDir(filepath.Dir(path)),
			process.WithLogger(a.Logger),
		))
	}

	if cmd := a.Config.Tools.MCPCommand; cmd != "" {
		exec, client, err := mcp.NewStdioExecutor(ctx, cmd, os.Environ(), a.Config.Tools.MCPArgs, strings.TrimSpace(Version))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		executors = append(executors, exec)
	}

	if len(executors) == 1 {
		return a.Registry, nil
	}
	return registry.NewChain(executors...), nil
}

func (a *Agent) buildMemory(llm *openai.Client, o *options) (ports.MemoryStore, error) {
	cfg := a.Config.Memory

	var embed chromemdb.EmbeddingFunc
	switch cfg.Embedder {
	case "llm":
		if llm == nil {
			return nil, errors.New("memory.embedder llm requires llm.base_url")
		}
		embed = llm.Embed
	default:
		embed = chromem.HashEmbedding(chromem.DefaultDimensions)
	}

	storeOpts := []chromem.Option{
		chromem.WithLogger(a.Logger),
		chromem.WithMinSimilarity(cfg.MinSimilarity),
	}
	if o.tracer != nil {
		storeOpts = append(storeOpts, chromem.WithTracer(o.tracer))
	}
	if cfg.PersistPath != "" {
		return chromem.NewPersistent(cfg.PersistPath, true, cfg.Collection, embed, storeOpts...)
	}
	return chromem.NewInMemory(cfg.Collection, embed, storeOpts...)
}

func (a *Agent) interceptor(o *options) runner.ToolInterceptor {
	var chain []runner.ToolInterceptor
	if allow := a.Config.Tools.Allow; len(allow) > 0 {
		chain = append(chain, runner.AllowListMiddleware(allow...))
	}
	if r := a.Config.Tools.Rate; r > 0 {
		chain = append(chain, runner.RateLimitMiddleware(rate.NewLimiter(rate.Limit(r), a.Config.Tools.Burst)))
	}
	if o.interceptor != nil {
		chain = append(chain, o.interceptor)
	}
	if len(chain) == 0 {
		return runner.AutoApproveMiddleware()
	}
	return runner.MultiInterceptor(chain...)
}

// NewSaga creates a coordinator sharing the agent's ledger store, hooks,
// alerter and retry base delay.
func (a *Agent) NewSaga(name string, steps []saga.TransactionStep) *saga.Coordinator {
	opts := []saga.Option{
		saga.WithBaseDelay(a.Config.Saga.BaseDelay),
		saga.WithStore(a.Ledgers),
		saga.WithHooks(a.hooks),
		saga.WithLogger(a.Logger),
	}
	if a.alerter != nil {
		opts = append(opts, saga.WithAlerter(a.alerter))
	}
	return saga.NewCoordinator(name, steps, opts...)
}

// HTTPHandler serves the chat, session, ledger, event and metrics endpoints.
func (a *Agent) HTTPHandler() http.Handler {
	return agencyhttp.NewHandler(a.Runner,
		agencyhttp.WithLedgers(a.Ledgers),
		agencyhttp.WithStreams(a.Streams),
		agencyhttp.WithMetrics(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})),
		agencyhttp.WithLogger(a.Logger),
		agencyhttp.WithVersion(Version),
	)
}

// MCPServer exposes the runner and the registry's tools over MCP.
func (a *Agent) MCPServer() *mcp.Server {
	return mcp.NewServer(a.Runner, strings.TrimSpace(Version),
		mcp.WithRegistry(a.Registry),
		mcp.WithLogger(a.Logger),
	)
}

// Close releases connections opened by New, in reverse order.
func (a *Agent) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
