// Package tasks provides the PostgreSQL-backed task repository. Listing
// queries are built with squirrel, one typed method per due-date bucket.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/dbx"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
)

var taskColumns = []string{"id", "user_id", "title", "due_date", "completed", "created_at", "updated_at"}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts task and fills in the timestamps assigned by the database.
func (r *PostgresRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	query, args, err := psql.Insert("tasks").
		Columns("id", "user_id", "title", "due_date", "completed").
		Values(task.ID, task.UserID, task.Title, task.DueDate, task.Completed).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

// Get returns the task only if it belongs to userID.
func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (*models.Task, error) {
	query, args, err := psql.Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.getOne(ctx, query, args)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]*models.Task, error) {
	return r.list(ctx, ownedBy(userID))
}

func (r *PostgresRepository) ListIncompleteDueBefore(ctx context.Context, userID string, before time.Time) ([]*models.Task, error) {
	return r.list(ctx, incomplete(userID).Where(sq.Lt{"due_date": before}))
}

func (r *PostgresRepository) ListIncompleteDueBetween(ctx context.Context, userID string, from, to time.Time) ([]*models.Task, error) {
	return r.list(ctx, incomplete(userID).
		Where(sq.GtOrEq{"due_date": from}).
		Where(sq.Lt{"due_date": to}))
}

func (r *PostgresRepository) ListIncompleteDueFrom(ctx context.Context, userID string, from time.Time) ([]*models.Task, error) {
	return r.list(ctx, incomplete(userID).Where(sq.GtOrEq{"due_date": from}))
}

func (r *PostgresRepository) ListCompleted(ctx context.Context, userID string) ([]*models.Task, error) {
	return r.list(ctx, ownedBy(userID).Where(sq.Eq{"completed": true}))
}

// SetCompleted updates the flag of a task owned by userID and returns the
// new row. No matching row yields common.ErrNotFound.
func (r *PostgresRepository) SetCompleted(ctx context.Context, id, userID string, completed bool) (*models.Task, error) {
	query, args, err := psql.Update("tasks").
		Set("completed", completed).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": userID}).
		Suffix("RETURNING " + strings.Join(taskColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.getOne(ctx, query, args)
}

// Delete removes a task owned by userID and reports whether a row was removed.
func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	query, args, err := psql.Delete("tasks").
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func ownedBy(userID string) sq.SelectBuilder {
	return psql.Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"user_id": userID})
}

func incomplete(userID string) sq.SelectBuilder {
	return ownedBy(userID).Where(sq.Eq{"completed": false})
}

func (r *PostgresRepository) list(ctx context.Context, b sq.SelectBuilder) ([]*models.Task, error) {
	query, args, err := b.OrderBy("due_date ASC", "created_at ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args []any) (*models.Task, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var t models.Task
	if err := s.Scan(&t.ID, &t.UserID, &t.Title, &t.DueDate, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
