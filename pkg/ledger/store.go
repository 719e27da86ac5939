package ledger

import (
	"context"

	"github.com/klokku/appointments/pkg/appointment"
)

// Store persists active appointments. Email is the identity of a record and
// implementations compare it case-insensitively.
type Store interface {
	Insert(ctx context.Context, record appointment.Record) error
	FindByEmail(ctx context.Context, email string) (appointment.Record, error)
	// Update replaces only the date and time of the record.
	Update(ctx context.Context, email, date, time string) (appointment.Record, error)
	Delete(ctx context.Context, email string) (appointment.Record, error)
	// ListAll returns records in storage order.
	ListAll(ctx context.Context) ([]appointment.Record, error)
}
