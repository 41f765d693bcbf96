package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdusco/shortly/internal"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const linksTable = "links"

var linkColumns = []any{"id", "code", "url", "click_count", "last_clicked", "created_at", "updated_at"}

type linkRow struct {
	ID          string `db:"id"`
	Code        string `db:"code"`
	URL         string `db:"url"`
	ClickCount  int64  `db:"click_count"`
	LastClicked *Date  `db:"last_clicked"`
	CreatedAt   Date   `db:"created_at"`
	UpdatedAt   Date   `db:"updated_at"`
}

type LinksRepo struct {
	db  *goqu.Database
	now func() time.Time
}

func NewLinksRepo(db *sql.DB) *LinksRepo {
	return &LinksRepo{
		db:  goqu.New("sqlite3", db),
		now: time.Now,
	}
}

func (r *LinksRepo) Insert(ctx context.Context, url, code string) (*internal.Link, error) {
	log.Debug().Str("code", code).Str("url", url).Msg("inserting link")

	now := Date(r.now().UTC())
	row := linkRow{
		ID:        uuid.NewString(),
		Code:      code,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := r.db.Insert(linksTable).Prepared(true).Rows(goqu.Record{
		"id":          row.ID,
		"code":        row.Code,
		"url":         row.URL,
		"click_count": 0,
		"created_at":  row.CreatedAt,
		"updated_at":  row.UpdatedAt,
	})

	if _, err := query.Executor().ExecContext(ctx); err != nil {
		if isUniqueViolation(err) {
			log.Debug().Str("code", code).Msg("code already taken")
			return nil, internal.ErrCodeExists
		}
		return nil, fmt.Errorf("failed to insert link: %w", err)
	}

	link := row.toDomain()
	log.Info().Str("id", link.ID).Str("code", link.Code).Msg("link created")

	return link, nil
}

func (r *LinksRepo) FindByCode(ctx context.Context, code string) (*internal.Link, error) {
	log.Debug().Str("code", code).Msg("fetching link by code")

	return findByCode(ctx, r.db.From(linksTable), code)
}

func (r *LinksRepo) ListAll(ctx context.Context) ([]*internal.Link, error) {
	query := r.db.From(linksTable).Select(linkColumns...).Order(
		goqu.C("created_at").Desc(),
		goqu.C("rowid").Desc(),
	)

	var rows []linkRow
	if err := query.ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	links := make([]*internal.Link, len(rows))
	for i := range rows {
		links[i] = rows[i].toDomain()
	}

	return links, nil
}

func (r *LinksRepo) DeleteByCode(ctx context.Context, code string) error {
	log.Debug().Str("code", code).Msg("deleting link")

	query := r.db.Delete(linksTable).Prepared(true).Where(goqu.Ex{"code": code})

	res, err := query.Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if affected == 0 {
		return internal.ErrLinkNotFound
	}

	log.Info().Str("code", code).Msg("link deleted")
	return nil
}

// IncrementClick bumps the counter in a single UPDATE and reads the row back in the same transaction.
// ctx bounds the whole transaction, including waiting for the write lock.
func (r *LinksRepo) IncrementClick(ctx context.Context, code string) (*internal.Link, error) {
	now := Date(r.now().UTC())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin click transaction: %w", err)
	}

	var link *internal.Link
	err = tx.Wrap(func() error {
		update := tx.Update(linksTable).Prepared(true).Set(goqu.Record{
			"click_count":  goqu.L("click_count + 1"),
			"last_clicked": now,
			"updated_at":   now,
		}).Where(goqu.Ex{"code": code})

		res, err := update.Executor().ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to increment clicks: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to increment clicks: %w", err)
		}
		if affected == 0 {
			return internal.ErrLinkNotFound
		}

		link, err = findByCode(ctx, tx.From(linksTable), code)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("code", code).Int64("clicks", link.ClickCount).Msg("click recorded")
	return link, nil
}

func findByCode(ctx context.Context, from *goqu.SelectDataset, code string) (*internal.Link, error) {
	query := from.Prepared(true).Select(linkColumns...).Where(goqu.Ex{"code": code})

	var row linkRow
	found, err := query.ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch link: %w", err)
	}
	if !found {
		return nil, internal.ErrLinkNotFound
	}

	return row.toDomain(), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	// libsql reports constraint failures as plain text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *linkRow) toDomain() *internal.Link {
	link := &internal.Link{
		ID:         r.ID,
		Code:       r.Code,
		URL:        r.URL,
		ClickCount: r.ClickCount,
		CreatedAt:  r.CreatedAt.Time(),
		UpdatedAt:  r.UpdatedAt.Time(),
	}
	if r.LastClicked != nil && !r.LastClicked.Time().IsZero() {
		t := r.LastClicked.Time()
		link.LastClicked = &t
	}
	return link
}
