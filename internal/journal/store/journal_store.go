package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	journalDomain "taeu.kr/uploadhub/internal/journal"
	"taeu.kr/uploadhub/internal/upload"
)

var entryColumns = []string{
	"id",
	"operation",
	"upload_type",
	"path",
	"new_name",
	"target_upload_type",
	"target_path",
	"success",
	"partial",
	"status_code",
	"message",
	"created_at",
}

type Store struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func (s *Store) CreateEntry(ctx context.Context, entry *journalDomain.Entry) error {
	sqlQuery, args, err := s.qb.
		Insert("operation_journal").
		Columns(entryColumns...).
		Values(
			entry.ID,
			string(entry.Operation),
			string(entry.UploadType),
			entry.Path,
			entry.NewName,
			string(entry.TargetUploadType),
			entry.TargetPath,
			boolToInt(entry.Success),
			boolToInt(entry.Partial),
			entry.StatusCode,
			entry.Message,
			entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for CreateEntry: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("journal entry %s already exists: %w", entry.ID, err)
		}
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]*journalDomain.Entry, error) {
	sqlQuery, args, err := s.qb.
		Select(entryColumns...).
		From("operation_journal").
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListRecent: %w", err)
	}
	return s.queryEntries(ctx, "ListRecent", sqlQuery, args)
}

func (s *Store) ListByUploadType(ctx context.Context, uploadType upload.UploadType, limit int) ([]*journalDomain.Entry, error) {
	sqlQuery, args, err := s.qb.
		Select(entryColumns...).
		From("operation_journal").
		Where(sq.Or{
			sq.Eq{"upload_type": string(uploadType)},
			sq.Eq{"target_upload_type": string(uploadType)},
		}).
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListByUploadType: %w", err)
	}
	return s.queryEntries(ctx, "ListByUploadType", sqlQuery, args)
}

func (s *Store) queryEntries(ctx context.Context, name, sqlQuery string, args []interface{}) ([]*journalDomain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*journalDomain.Entry, 0)
	for rows.Next() {
		var entry journalDomain.Entry
		var operation, uploadType, targetUploadType string
		var successInt, partialInt int
		if err := rows.Scan(
			&entry.ID,
			&operation,
			&uploadType,
			&entry.Path,
			&entry.NewName,
			&targetUploadType,
			&entry.TargetPath,
			&successInt,
			&partialInt,
			&entry.StatusCode,
			&entry.Message,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry row: %w", err)
		}
		entry.Operation = upload.OperationKind(operation)
		entry.UploadType = upload.UploadType(uploadType)
		entry.TargetUploadType = upload.UploadType(targetUploadType)
		entry.Success = successInt == 1
		entry.Partial = partialInt == 1
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error in %s: %w", name, err)
	}

	return entries, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
