package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klokku/appointments/pkg/appointment"
	"github.com/klokku/appointments/pkg/lock"
	log "github.com/sirupsen/logrus"
)

var header = []string{"full_name", "contact_email", "phone_number", "date", "time"}

var ErrMalformedTable = errors.New("malformed ledger table")

// CSVStore keeps the ledger in a single flat file. Every call reads the whole
// table and mutations replace it atomically, all while holding the locker.
type CSVStore struct {
	path   string
	locker lock.Locker
}

func NewCSVStore(path string, locker lock.Locker) *CSVStore {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &CSVStore{path: path, locker: locker}
}

func (s *CSVStore) Insert(ctx context.Context, record appointment.Record) error {
	return s.mutate(ctx, func(rows []appointment.Record) ([]appointment.Record, error) {
		for _, r := range rows {
			if appointment.SameIdentity(r.Email, record.Email) {
				return nil, &appointment.DuplicateIdentityError{Email: record.Email}
			}
		}
		return append(rows, record), nil
	})
}

func (s *CSVStore) FindByEmail(ctx context.Context, email string) (appointment.Record, error) {
	rows, err := s.read(ctx)
	if err != nil {
		return appointment.Record{}, err
	}
	for _, r := range rows {
		if appointment.SameIdentity(r.Email, email) {
			return r, nil
		}
	}
	return appointment.Record{}, &appointment.NotFoundError{Email: email}
}

func (s *CSVStore) Update(ctx context.Context, email, date, time string) (appointment.Record, error) {
	var updated appointment.Record
	err := s.mutate(ctx, func(rows []appointment.Record) ([]appointment.Record, error) {
		for i, r := range rows {
			if appointment.SameIdentity(r.Email, email) {
				rows[i].Date = date
				rows[i].Time = time
				updated = rows[i]
				return rows, nil
			}
		}
		return nil, &appointment.NotFoundError{Email: email}
	})
	return updated, err
}

func (s *CSVStore) Delete(ctx context.Context, email string) (appointment.Record, error) {
	var removed appointment.Record
	err := s.mutate(ctx, func(rows []appointment.Record) ([]appointment.Record, error) {
		for i, r := range rows {
			if appointment.SameIdentity(r.Email, email) {
				removed = r
				return append(rows[:i], rows[i+1:]...), nil
			}
		}
		return nil, &appointment.NotFoundError{Email: email}
	})
	return removed, err
}

func (s *CSVStore) ListAll(ctx context.Context) ([]appointment.Record, error) {
	return s.read(ctx)
}

func (s *CSVStore) read(ctx context.Context) ([]appointment.Record, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.load()
}

// mutate runs fn over the current table and writes back its result. When fn
// returns an error the table is left untouched.
func (s *CSVStore) mutate(ctx context.Context, fn func([]appointment.Record) ([]appointment.Record, error)) error {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	rows, err := s.load()
	if err != nil {
		return err
	}
	rows, err = fn(rows)
	if err != nil {
		return err
	}
	return s.replace(rows)
}

func (s *CSVStore) load() ([]appointment.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Infof("ledger %s does not exist, creating empty table", s.path)
			return []appointment.Record{}, s.replace(nil)
		}
		err := fmt.Errorf("could not open ledger %s: %w", s.path, err)
		log.Error(err)
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []appointment.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	if !isHeader(first) {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrMalformedTable, first)
	}

	rows := make([]appointment.Record, 0, 16)
	for {
		line, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}
		if len(line) == 1 && strings.TrimSpace(line[0]) == "" {
			continue
		}
		if len(line) != len(header) {
			return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedTable, len(header), len(line))
		}
		rows = append(rows, appointment.Record{
			FullName: strings.TrimSpace(line[0]),
			Email:    strings.TrimSpace(line[1]),
			Phone:    strings.TrimSpace(line[2]),
			Date:     strings.TrimSpace(line[3]),
			Time:     strings.TrimSpace(line[4]),
		})
	}
	return rows, nil
}

// replace writes the table to a temporary file next to the ledger and renames
// it over the old one, so readers see either the old or the new table.
func (s *CSVStore) replace(rows []appointment.Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		err := fmt.Errorf("could not create temporary ledger file: %w", err)
		log.Error(err)
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		cleanup()
		return fmt.Errorf("could not write ledger header: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write([]string{r.FullName, r.Email, r.Phone, r.Date, r.Time}); err != nil {
			cleanup()
			return fmt.Errorf("could not write ledger row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		cleanup()
		return fmt.Errorf("could not flush ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("could not sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("could not close ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		err := fmt.Errorf("could not replace ledger %s: %w", s.path, err)
		log.Error(err)
		return err
	}
	return nil
}

func isHeader(line []string) bool {
	if len(line) != len(header) {
		return false
	}
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(line[i], "\ufeff")) != h {
			return false
		}
	}
	return true
}
