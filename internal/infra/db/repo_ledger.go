package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"consentledger/internal/domain"
)

const pgUniqueViolation = "23505"

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Tail(ctx context.Context, ledgerID string) (domain.LedgerTail, error) {
	if r.db == nil {
		return domain.LedgerTail{}, errDBUnavailable
	}
	var model LedgerEntryModel
	err := r.db.WithContext(ctx).
		Where("ledger_id = ?", ledgerID).
		Order("seq DESC").
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.LedgerTail{LedgerID: ledgerID}, nil
	}
	if err != nil {
		return domain.LedgerTail{}, err
	}
	return domain.LedgerTail{
		LedgerID:  ledgerID,
		Sequence:  model.Seq,
		ChainHash: model.ChainHash,
		Exists:    true,
	}, nil
}

// Append claims the entry's sequence under a row lock before inserting.
// A racing writer that computed the same sequence observes the bumped
// counter and gets domain.ErrSequenceConflict; a unique violation on the
// entry row itself means a row was written outside the counter and is an
// append-only violation, not a retryable race.
func (r *LedgerRepository) Append(ctx context.Context, entry domain.LedgerEntry) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := claimNextSeq(ctx, tx, entry.LedgerID)
		if err != nil {
			return err
		}
		if entry.Sequence != next {
			return fmt.Errorf("%w: want %d, got %d", domain.ErrSequenceConflict, next, entry.Sequence)
		}

		model := ledgerEntryModelFromDomain(entry)
		if err := tx.Create(&model).Error; err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return fmt.Errorf("%w: sequence %d already written in %s", domain.ErrAppendOnlyViolation, entry.Sequence, entry.LedgerID)
			}
			return err
		}

		return tx.Exec(
			"UPDATE ledger_seq_models SET seq = ? WHERE ledger_id = ?",
			next+1, entry.LedgerID,
		).Error
	})
}

func claimNextSeq(ctx context.Context, tx *gorm.DB, ledgerID string) (int64, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO ledger_seq_models (ledger_id, seq) VALUES (?, 0) ON CONFLICT (ledger_id) DO NOTHING",
		ledgerID,
	).Error; err != nil {
		return 0, err
	}
	var next int64
	if err := tx.WithContext(ctx).Raw(
		"SELECT seq FROM ledger_seq_models WHERE ledger_id = ? FOR UPDATE",
		ledgerID,
	).Scan(&next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func (r *LedgerRepository) ReadRange(ctx context.Context, ledgerID string, from, to int64) ([]domain.LedgerEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if from < 0 || to < from {
		return nil, fmt.Errorf("%w: invalid range [%d,%d]", domain.ErrNotFound, from, to)
	}
	var models []LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("ledger_id = ? AND seq BETWEEN ? AND ?", ledgerID, from, to).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0, len(models))
	for i, model := range models {
		// A hole in the requested range is evidence of tampering, never
		// silently skipped.
		if model.Seq != from+int64(i) {
			return nil, fmt.Errorf("%w: %s is missing sequence %d", domain.ErrChainBreak, ledgerID, from+int64(i))
		}
		out = append(out, ledgerEntryFromModel(model))
	}
	if int64(len(out)) != to-from+1 {
		return nil, fmt.Errorf("%w: %s is missing sequence %d", domain.ErrChainBreak, ledgerID, from+int64(len(out)))
	}
	return out, nil
}

func (r *LedgerRepository) ReadAll(ctx context.Context, ledgerID string) ([]domain.LedgerEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("ledger_id = ?", ledgerID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0, len(models))
	for _, model := range models {
		out = append(out, ledgerEntryFromModel(model))
	}
	return out, nil
}

func (r *LedgerRepository) Tails(ctx context.Context) ([]domain.LedgerTail, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var rows []struct {
		LedgerID  string
		Seq       int64
		ChainHash string
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT e.ledger_id, e.seq, e.chain_hash
		FROM ledger_entry_models e
		JOIN (
			SELECT ledger_id, MAX(seq) AS max_seq
			FROM ledger_entry_models
			GROUP BY ledger_id
		) t ON e.ledger_id = t.ledger_id AND e.seq = t.max_seq
		ORDER BY e.ledger_id ASC`,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LedgerTail, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.LedgerTail{
			LedgerID:  row.LedgerID,
			Sequence:  row.Seq,
			ChainHash: row.ChainHash,
			Exists:    true,
		})
	}
	return out, nil
}

func ledgerEntryModelFromDomain(entry domain.LedgerEntry) LedgerEntryModel {
	return LedgerEntryModel{
		ID:          entry.ID,
		LedgerID:    entry.LedgerID,
		Seq:         entry.Sequence,
		PayloadJSON: []byte(entry.Payload),
		PayloadHash: entry.PayloadHash,
		PrevHash:    entry.PrevHash,
		ChainHash:   entry.ChainHash,
		CreatedAt:   entry.CreatedAt.UTC(),
	}
}

func ledgerEntryFromModel(model LedgerEntryModel) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:          model.ID,
		LedgerID:    model.LedgerID,
		Sequence:    model.Seq,
		Payload:     model.PayloadJSON,
		PayloadHash: model.PayloadHash,
		PrevHash:    model.PrevHash,
		ChainHash:   model.ChainHash,
		CreatedAt:   model.CreatedAt.UTC(),
	}
}
