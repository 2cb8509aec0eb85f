package pricedrop

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/model"
	appredis "storefront/internal/redis"
	"storefront/internal/repository"
	"storefront/pkg/lock"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// Trigger names the path that started an evaluation
const (
	TriggerManual      = "manual"
	TriggerPriceChange = "price_change"
)

var tracer = otel.Tracer("storefront/pricedrop")

// BatchResult outcome of one evaluation
type BatchResult struct {
	Evaluated int `json:"evaluated"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (r *BatchResult) add(o BatchResult) {
	r.Evaluated += o.Evaluated
	r.Created += o.Created
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}

func (r BatchResult) details() map[string]interface{} {
	return map[string]interface{}{
		"evaluated": r.Evaluated,
		"created":   r.Created,
		"skipped":   r.Skipped,
		"failed":    r.Failed,
	}
}

// Recorder receives evaluation outcomes, typically for metrics
type Recorder interface {
	RecordPriceCheck(trigger string, evaluated, created, skipped, failed int)
}

// Detector compares favorites against current prices and writes the
// notifications users are owed
type Detector interface {
	// CheckUser evaluates every favorite of userID
	CheckUser(ctx context.Context, userID uint64) (BatchResult, error)

	// NotifyFavoriters evaluates every favorite of productID, each against
	// its own snapshot
	NotifyFavoriters(ctx context.Context, productID uint64) (BatchResult, error)
}

// Options tunes a detector. Zero values fall back to defaults.
type Options struct {
	MaxFavoritesPerCheck int
	Formatter            *utils.CurrencyFormatter
	// Redis serializes CheckUser per user when set
	Redis    redis.Cmdable
	LockTTL  time.Duration
	Recorder Recorder
}

type detector struct {
	favorites     repository.FavoriteRepository
	products      repository.ProductRepository
	notifications repository.NotificationRepository
	opts          Options
}

// NewDetector creates a price-drop detector
func NewDetector(
	favorites repository.FavoriteRepository,
	products repository.ProductRepository,
	notifications repository.NotificationRepository,
	opts Options,
) Detector {
	if opts.MaxFavoritesPerCheck <= 0 {
		opts.MaxFavoritesPerCheck = 500
	}
	if opts.Formatter == nil {
		opts.Formatter = utils.NewCurrencyFormatter("en", "$")
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	return &detector{
		favorites:     favorites,
		products:      products,
		notifications: notifications,
		opts:          opts,
	}
}

func (d *detector) CheckUser(ctx context.Context, userID uint64) (BatchResult, error) {
	if d.opts.Redis == nil {
		return d.checkUser(ctx, userID)
	}

	var result BatchResult
	err := lock.WithLock(ctx, d.opts.Redis, appredis.PriceCheckLockKey(userID), d.opts.LockTTL,
		func(ctx context.Context) error {
			var err error
			result, err = d.checkUser(ctx, userID)
			return err
		})
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return result, utils.NewError(utils.CodeRateLimit, "a price check is already running for this user")
	}
	return result, err
}

func (d *detector) checkUser(ctx context.Context, userID uint64) (BatchResult, error) {
	ctx, span := tracer.Start(ctx, "pricedrop.CheckUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", int64(userID)))

	favorites, err := d.favorites.ListByUser(ctx, userID, d.opts.MaxFavoritesPerCheck)
	if err != nil {
		return BatchResult{}, utils.Internal(err, "failed to load favorites")
	}
	if len(favorites) == 0 {
		return d.finish(ctx, TriggerManual, BatchResult{}, nil)
	}

	ids := make([]uint64, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.ProductID)
	}
	products, err := d.products.GetByIDs(ctx, ids)
	if err != nil {
		return BatchResult{}, utils.Internal(err, "failed to load favorite products")
	}
	notified, err := d.notifications.LowestNotifiedByUser(ctx, userID, ids)
	if err != nil {
		return BatchResult{}, utils.Internal(err, "failed to load notification history")
	}

	pending := make([]*model.Notification, 0)
	for _, f := range favorites {
		product, ok := products[f.ProductID]
		if !ok {
			continue
		}
		if n := d.evaluate(f, product, lookup(notified, f.ProductID)); n != nil {
			pending = append(pending, n)
		}
	}

	return d.persist(ctx, TriggerManual, len(favorites), pending)
}

// NotifyFavoriters walks the product's favorites in id order, one page of
// MaxFavoritesPerCheck at a time, so every favoriter is evaluated however
// many there are. Each page is written in its own transaction; a failed page
// is counted and the walk goes on.
func (d *detector) NotifyFavoriters(ctx context.Context, productID uint64) (BatchResult, error) {
	ctx, span := tracer.Start(ctx, "pricedrop.NotifyFavoriters")
	defer span.End()
	span.SetAttributes(attribute.Int64("product_id", int64(productID)))

	product, err := d.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return BatchResult{}, utils.NotFound("product %d not found", productID)
		}
		return BatchResult{}, utils.Internal(err, "failed to load product")
	}

	var (
		total    BatchResult
		firstErr error
		afterID  uint64
	)
	for {
		favorites, err := d.favorites.ListByProduct(ctx, productID, afterID, d.opts.MaxFavoritesPerCheck)
		if err != nil {
			appErr := utils.Internal(err, "failed to load favorites").WithDetails(total.details())
			return d.finish(ctx, TriggerPriceChange, total, appErr)
		}
		if len(favorites) == 0 {
			break
		}
		afterID = favorites[len(favorites)-1].ID

		userIDs := make([]uint64, 0, len(favorites))
		for _, f := range favorites {
			userIDs = append(userIDs, f.UserID)
		}
		notified, err := d.notifications.LowestNotifiedByProduct(ctx, productID, userIDs)
		if err != nil {
			appErr := utils.Internal(err, "failed to load notification history").WithDetails(total.details())
			return d.finish(ctx, TriggerPriceChange, total, appErr)
		}

		pending := make([]*model.Notification, 0)
		for _, f := range favorites {
			if n := d.evaluate(f, product, lookup(notified, f.UserID)); n != nil {
				pending = append(pending, n)
			}
		}

		page, err := d.write(ctx, len(favorites), pending)
		total.add(page)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if len(favorites) < d.opts.MaxFavoritesPerCheck {
			break
		}
	}

	if firstErr != nil {
		appErr := utils.Internal(firstErr, "failed to persist price-drop notifications").WithDetails(total.details())
		return d.finish(ctx, TriggerPriceChange, total, appErr)
	}
	return d.finish(ctx, TriggerPriceChange, total, nil)
}

func lookup(prices map[uint64]decimal.Decimal, key uint64) *decimal.Decimal {
	if p, ok := prices[key]; ok {
		return &p
	}
	return nil
}

func (d *detector) evaluate(f *model.Favorite, product *model.Product, lastNotified *decimal.Decimal) *model.Notification {
	if !owed(f.PriceAtFavorite, product.Price, lastNotified) {
		return nil
	}
	return &model.Notification{
		UserID:        f.UserID,
		ProductID:     product.ID,
		Message:       Message(d.opts.Formatter, product.Name, f.PriceAtFavorite, product.Price),
		NotifiedPrice: decimal.NewNullDecimal(product.Price),
	}
}

// persist writes the batch in one transaction
func (d *detector) persist(ctx context.Context, trigger string, evaluated int, pending []*model.Notification) (BatchResult, error) {
	result, err := d.write(ctx, evaluated, pending)
	if err != nil {
		appErr := utils.Internal(err, "failed to persist price-drop notifications").WithDetails(result.details())
		return d.finish(ctx, trigger, result, appErr)
	}
	return d.finish(ctx, trigger, result, nil)
}

func (d *detector) write(ctx context.Context, evaluated int, pending []*model.Notification) (BatchResult, error) {
	result := BatchResult{Evaluated: evaluated}
	if len(pending) == 0 {
		result.Skipped = evaluated
		return result, nil
	}

	created, err := d.notifications.CreateBatch(ctx, pending)
	if err != nil {
		result.Failed = len(pending)
		result.Skipped = evaluated - len(pending)
		return result, err
	}

	result.Created = int(created)
	result.Skipped = evaluated - result.Created
	return result, nil
}

func (d *detector) finish(ctx context.Context, trigger string, result BatchResult, err error) (BatchResult, error) {
	if d.opts.Recorder != nil {
		d.opts.Recorder.RecordPriceCheck(trigger, result.Evaluated, result.Created, result.Skipped, result.Failed)
	}

	fields := map[string]interface{}{
		"trigger":   trigger,
		"evaluated": result.Evaluated,
		"created":   result.Created,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("evaluated", result.Evaluated),
		attribute.Int("created", result.Created),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notification write failed")
		log.WithFields(fields).WithError(err).Error("Price-drop evaluation failed")
		return result, err
	}
	if result.Created > 0 {
		log.WithFields(fields).Info("Price-drop notifications created")
	} else {
		log.WithFields(fields).Debug("Price-drop evaluation finished")
	}
	return result, nil
}
