package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joshua-takyi/eventify/internal/auth"
	"github.com/joshua-takyi/eventify/internal/cache"
	"github.com/joshua-takyi/eventify/internal/config"
	"github.com/joshua-takyi/eventify/internal/gateway"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/monitoring"
	"github.com/joshua-takyi/eventify/internal/notify"
	"github.com/joshua-takyi/eventify/internal/services"
	"github.com/joshua-takyi/eventify/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

const jwksRefreshInterval = time.Hour

// Clients are the external connections opened by main. Redis, Cloudinary and
// Supabase may be nil; the features that need them are disabled.
type Clients struct {
	MongoDB    *mongo.Client
	Redis      *redis.Client
	Cloudinary *cloudinary.Cloudinary
	Supabase   *supabase.Client
}

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Monitor *monitoring.Monitor
	Repo    *models.MongodbRepo

	Gateways *gateway.Registry
	Notifier *notify.Dispatcher

	UserService    *services.UserService
	EventService   *services.EventService
	TicketRegistry *services.TicketRegistry
	PaymentService *services.PaymentService
	BookingService *services.BookingService

	// Listener is nil unless PubNub notifications are configured.
	Listener *gateway.NotificationListener
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, clients Clients) (*Container, error) {
	monitor := monitoring.NewMonitor(logger)
	repo := models.MongodbNewRepo(clients.MongoDB, cfg.MongoDBDatabase)

	provider, google, err := identity(ctx, cfg, logger, clients.Supabase)
	if err != nil {
		return nil, err
	}

	var blobs storage.BlobStore
	if clients.Cloudinary != nil {
		blobs = storage.NewCloudinaryStore(clients.Cloudinary)
	} else {
		logger.Warn("Cloudinary is not configured, image uploads are disabled")
	}

	var mailer notify.Notifier
	if cfg.MailEnabled() {
		mailer = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
		})
	} else {
		logger.Warn("SMTP is not configured, notifications are only logged")
		mailer = notify.NewLogNotifier(logger)
	}
	dispatcher := notify.NewDispatcher(mailer, notify.DispatcherConfig{
		Timeout: cfg.NotifyTimeout,
		Retries: cfg.NotifyRetries,
	}, monitor, logger)

	var (
		otps    services.OTPStore
		lockers services.Locker
	)
	if clients.Redis != nil {
		otps = cache.NewOTPStore(clients.Redis, cfg.OTPTTL)
		lockers = cache.NewLocker(clients.Redis, cfg.ConfirmLockTTL)
	} else {
		logger.Warn("Redis is unavailable, password reset and confirmation locks are disabled")
	}

	gateways := Gateways(cfg)
	if len(gateways.Providers()) == 0 {
		logger.Warn("No payment provider is configured, paid bookings are disabled")
	}

	ledger := services.NewInventoryLedger(repo, logger)
	registry := services.NewTicketRegistry(repo, repo, ledger, cfg.TicketVerifyBaseURL, logger)
	payments := services.NewPaymentService(repo, repo, repo, ledger, registry, gateways, monitor, logger, services.PaymentConfig{
		GatewayTimeout: cfg.GatewayTimeout,
		ClaimTTL:       cfg.ConfirmClaimTTL,
	})
	if lockers != nil {
		payments.WithLocker(lockers)
	}
	booking := services.NewBookingService(ledger, registry, payments, repo, repo, dispatcher, monitor, logger)

	c := &Container{
		Config:         cfg,
		Logger:         logger,
		Monitor:        monitor,
		Repo:           repo,
		Gateways:       gateways,
		Notifier:       dispatcher,
		UserService:    services.NewUserService(repo, provider, google, otps, dispatcher, blobs, logger),
		EventService:   services.NewEventService(repo, blobs, logger),
		TicketRegistry: registry,
		PaymentService: payments,
		BookingService: booking,
	}

	if cfg.PubNubEnabled() {
		c.Listener = gateway.NewNotificationListener(gateway.ListenerConfig{
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			CipherKey:    cfg.PubNubCipherKey,
			UserID:       cfg.PubNubUserID,
			Channel:      cfg.PubNubChannel,
		}, c.confirmJazzCash, logger)
	}
	return c, nil
}

// Gateways registers the payment providers whose credentials are configured.
func Gateways(cfg *config.Config) *gateway.Registry {
	registry := gateway.NewRegistry()
	if cfg.StripeEnabled() {
		registry.Register(gateway.NewStripeGateway(cfg.StripeSecretKey, cfg.FrontendURL))
	}
	if cfg.JazzCashEnabled() {
		registry.Register(gateway.NewJazzCashGateway(gateway.JazzCashConfig{
			MerchantID:    cfg.JazzCashMerchantID,
			Password:      cfg.JazzCashPassword,
			IntegritySalt: cfg.JazzCashIntegritySalt,
			CheckoutURL:   cfg.JazzCashCheckoutURL,
			ReturnURL:     cfg.JazzCashReturnURL,
			Currency:      cfg.JazzCashCurrency,
		}))
	}
	return registry
}

// confirmJazzCash feeds a pushed notification into the same path as the callback.
func (c *Container) confirmJazzCash(ctx context.Context, fields map[string]string) error {
	res, err := c.BookingService.ConfirmPayment(ctx, services.ConfirmRequest{
		Provider: models.PaymentMethodJazzCash,
		Report:   gateway.Report{Fields: fields},
	})
	if err != nil {
		return err
	}
	if res.Warning != "" {
		c.Logger.Warn("Payment confirmed with warning", "payment_id", res.Payment.ID.Hex(), "warning", res.Warning)
	}
	return nil
}

func identity(ctx context.Context, cfg *config.Config, logger *slog.Logger, client *supabase.Client) (auth.IdentityProvider, services.GoogleTokenVerifier, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderSupabase:
		if client == nil {
			return nil, nil, fmt.Errorf("supabase client is required for the supabase auth provider")
		}
		verifier, err := auth.NewJWKSVerifier(ctx, auth.SupabaseJWKSURL(cfg.SupabaseURL), jwksRefreshInterval, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load Supabase signing keys: %w", err)
		}
		return auth.NewSupabaseProvider(client, cfg.SupabaseServiceRoleKey, verifier, cfg.RefreshTokenTTL), nil, nil

	default:
		provider := auth.NewLocalProvider(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
		if cfg.GoogleClientID == "" {
			return provider, nil, nil
		}
		verifier, err := auth.NewJWKSVerifier(ctx, cfg.GoogleJWKSURL, jwksRefreshInterval, logger)
		if err != nil {
			logger.Warn("Google sign-in disabled, signing keys unavailable", "error", err)
			return provider, nil, nil
		}
		return provider, auth.NewGoogleVerifier(verifier, cfg.GoogleClientID), nil
	}
}
