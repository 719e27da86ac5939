package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/klokku/appointments/pkg/appointment"
	log "github.com/sirupsen/logrus"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// SQLStore keeps the ledger in the appointment table. Each mutation runs in
// its own transaction.
type SQLStore struct {
	db      *sql.DB
	tx      *sql.Tx
	dialect string
}

func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (s *SQLStore) getQueryer() interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *SQLStore) WithTransaction(ctx context.Context, fn func(store *SQLStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&SQLStore{db: s.db, tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Insert(ctx context.Context, record appointment.Record) error {
	email := appointment.NormalizeEmail(record.Email)
	return s.WithTransaction(ctx, func(txStore *SQLStore) error {
		_, err := txStore.find(ctx, email)
		if err == nil {
			return &appointment.DuplicateIdentityError{Email: email}
		}
		if !errors.Is(err, appointment.ErrNotFound) {
			return err
		}

		query := `INSERT INTO appointment (email, full_name, phone_number, date, time) VALUES (?, ?, ?, ?, ?)`
		_, err = txStore.getQueryer().ExecContext(ctx, txStore.rebind(query), email, record.FullName, record.Phone, record.Date, record.Time)
		if err != nil {
			if isUniqueViolation(err) {
				return &appointment.DuplicateIdentityError{Email: email}
			}
			err := fmt.Errorf("could not insert appointment: %w", err)
			log.Error(err)
			return err
		}
		return nil
	})
}

func (s *SQLStore) FindByEmail(ctx context.Context, email string) (appointment.Record, error) {
	return s.find(ctx, appointment.NormalizeEmail(email))
}

func (s *SQLStore) Update(ctx context.Context, email, date, time string) (appointment.Record, error) {
	email = appointment.NormalizeEmail(email)
	var updated appointment.Record
	err := s.WithTransaction(ctx, func(txStore *SQLStore) error {
		query := `UPDATE appointment SET date = ?, time = ? WHERE email = ?`
		res, err := txStore.getQueryer().ExecContext(ctx, txStore.rebind(query), date, time, email)
		if err != nil {
			err := fmt.Errorf("could not update appointment: %w", err)
			log.Error(err)
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("could not read affected rows: %w", err)
		} else if n == 0 {
			return &appointment.NotFoundError{Email: email}
		}
		updated, err = txStore.find(ctx, email)
		return err
	})
	if err != nil {
		return appointment.Record{}, err
	}
	return updated, nil
}

func (s *SQLStore) Delete(ctx context.Context, email string) (appointment.Record, error) {
	email = appointment.NormalizeEmail(email)
	var removed appointment.Record
	err := s.WithTransaction(ctx, func(txStore *SQLStore) error {
		var err error
		removed, err = txStore.find(ctx, email)
		if err != nil {
			return err
		}
		query := `DELETE FROM appointment WHERE email = ?`
		if _, err := txStore.getQueryer().ExecContext(ctx, txStore.rebind(query), email); err != nil {
			err := fmt.Errorf("could not delete appointment: %w", err)
			log.Error(err)
			return err
		}
		return nil
	})
	if err != nil {
		return appointment.Record{}, err
	}
	return removed, nil
}

func (s *SQLStore) ListAll(ctx context.Context) ([]appointment.Record, error) {
	query := `SELECT full_name, email, phone_number, date, time FROM appointment ORDER BY id`
	rows, err := s.getQueryer().QueryContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not query appointments: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	records := make([]appointment.Record, 0, 16)
	for rows.Next() {
		var r appointment.Record
		if err := rows.Scan(&r.FullName, &r.Email, &r.Phone, &r.Date, &r.Time); err != nil {
			return nil, fmt.Errorf("could not scan appointment: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate appointments: %w", err)
	}
	return records, nil
}

func (s *SQLStore) find(ctx context.Context, email string) (appointment.Record, error) {
	query := `SELECT full_name, email, phone_number, date, time FROM appointment WHERE email = ?`
	var r appointment.Record
	err := s.getQueryer().QueryRowContext(ctx, s.rebind(query), email).Scan(&r.FullName, &r.Email, &r.Phone, &r.Date, &r.Time)
	if errors.Is(err, sql.ErrNoRows) {
		return appointment.Record{}, &appointment.NotFoundError{Email: email}
	}
	if err != nil {
		err := fmt.Errorf("could not query appointment: %w", err)
		log.Error(err)
		return appointment.Record{}, err
	}
	return r, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
