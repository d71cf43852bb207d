package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/m4-gestao/m4-pdv/internal/platform/db"
	"github.com/m4-gestao/m4-pdv/internal/pos"
	"github.com/m4-gestao/m4-pdv/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSalePostProcess runs after a sale is finalized: it folds the
	// sale into the daily aggregates the dashboard reads.
	TaskSalePostProcess = "vendas:pos_processar"
	// TaskSearchWarmup primes the product search cache with the hottest
	// terms, typically on a cron before opening hours.
	TaskSearchWarmup = "vendas:busca_warmup"
	// TaskMaintenanceCleanup prunes expired idempotency keys.
	TaskMaintenanceCleanup = "manutencao:limpeza"
)

// SalePostProcessPayload identifies the finalized sale.
type SalePostProcessPayload struct {
	SaleID int64 `json:"sale_id"`
}

// NewSalePostProcessTask constructs the Asynq task for a finalized sale.
func NewSalePostProcessTask(saleID int64) (*asynq.Task, error) {
	data, err := json.Marshal(SalePostProcessPayload{SaleID: saleID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSalePostProcess, data), nil
}

// NewSearchWarmupTask constructs the warmup task.
func NewSearchWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskSearchWarmup, nil)
}

// MaintenanceCleanupPayload carries the retention window in hours.
type MaintenanceCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewMaintenanceCleanupTask constructs the cleanup task.
func NewMaintenanceCleanupTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention.Hours())
	if hours < 1 {
		hours = 24
	}
	data, err := json.Marshal(MaintenanceCleanupPayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMaintenanceCleanup, data), nil
}

// Tasks bundles the dependencies the task handlers need.
type Tasks struct {
	pool   *pgxpool.Pool
	cache  *redis.Client
	logger *slog.Logger
}

// NewTasks constructs the handler bundle.
func NewTasks(pool *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) *Tasks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks{pool: pool, cache: cache, logger: logger}
}

// HandleSalePostProcess folds a finalized sale into the daily summary
// table. The handler is idempotent per sale: a reprocessed task finds
// the marker row and skips the aggregation.
func (t *Tasks) HandleSalePostProcess(ctx context.Context, task *asynq.Task) error {
	var payload SalePostProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	err := db.WithTx(ctx, t.pool, func(tx pgx.Tx) error {
		return foldSaleIntoSummary(ctx, tx, payload.SaleID, t.logger)
	})
	if err != nil {
		return err
	}

	t.logger.Info("sale post-processed", slog.Int64("sale_id", payload.SaleID))
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// foldSaleIntoSummary writes the processed marker and the daily
// aggregate together. Both rows ride the same transaction: a failed
// aggregate rolls the marker back so the retry reprocesses the sale
// instead of skipping it.
func foldSaleIntoSummary(ctx context.Context, tx execer, saleID int64, logger *slog.Logger) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO vendas_processadas (venda_id, processado_em)
		VALUES ($1, NOW())
		ON CONFLICT (venda_id) DO NOTHING`, saleID)
	if err != nil {
		return fmt.Errorf("mark sale processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		logger.Info("sale already post-processed", slog.Int64("sale_id", saleID))
		return nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO vendas_resumo_diario (dia, qtd_vendas, valor_total)
		SELECT data_abertura::date, 1, valor_total FROM vendas WHERE id = $1
		ON CONFLICT (dia) DO UPDATE SET
			qtd_vendas = vendas_resumo_diario.qtd_vendas + 1,
			valor_total = vendas_resumo_diario.valor_total + EXCLUDED.valor_total`,
		saleID)
	if err != nil {
		return fmt.Errorf("update daily summary: %w", err)
	}
	return nil
}

// HandleMaintenanceCleanup prunes idempotency keys past their
// retention. The keys only matter while a client could still retry the
// same request.
func (t *Tasks) HandleMaintenanceCleanup(ctx context.Context, task *asynq.Task) error {
	var payload MaintenanceCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	store := shared.NewIdempotencyStore(t.pool)
	if err := store.Cleanup(ctx, retention); err != nil {
		return fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	t.logger.Info("idempotency keys pruned", slog.Duration("retention", retention))
	return nil
}

// warmupConcurrency bounds the parallel warmup queries.
const warmupConcurrency = 4

// HandleSearchWarmup primes the Redis search cache with the most sold
// product names so the first counter searches of the day hit warm keys.
func (t *Tasks) HandleSearchWarmup(ctx context.Context, _ *asynq.Task) error {
	rows, err := t.pool.Query(ctx, `
		SELECT iv.produto_nome
		FROM itens_venda iv
		JOIN vendas v ON v.id = iv.venda_id
		WHERE v.data_abertura > NOW() - INTERVAL '30 days'
		GROUP BY iv.produto_nome
		ORDER BY SUM(iv.quantidade) DESC
		LIMIT 20`)
	if err != nil {
		return fmt.Errorf("load hot terms: %w", err)
	}
	var terms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		terms = append(terms, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	svc := pos.NewService(
		pos.NewRepository(t.pool),
		pos.NewSearchCache(t.cache, 10*time.Minute),
		nil, nil, nil, nil, t.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)
	for _, term := range terms {
		g.Go(func() error {
			_, err := svc.SearchProducts(ctx, term)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("warm search cache: %w", err)
	}

	t.logger.Info("search cache warmed", slog.Int("terms", len(terms)))
	return nil
}
