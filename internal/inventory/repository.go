package inventory

import (
	"context"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateTicket(ctx context.Context, t *model.Ticket) error
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	RemoveTicket(ctx context.Context, id string) (bool, error)
	Rollups(ctx context.Context, eventID string) ([]model.CategoryRollup, error)
	Availability(ctx context.Context, eventIDs []string) (map[string]model.Availability, error)
	ListAvailable(ctx context.Context, eventID string, limit int) ([]model.Ticket, error)
	ListBySeller(ctx context.Context, sellerID string) ([]model.Ticket, error)
}

type InventoryRepo struct {
	db database.Querier
}

func NewInventoryRepository(db database.Querier) *InventoryRepo {
	return &InventoryRepo{db: db}
}

const ticketColumns = `id, event_id, category, section, row_label, seat, price, original_price, currency,
	seller_id, status, reserved_by, reserved_until, version, created_at, updated_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(&t.ID, &t.EventID, &t.Category, &t.Section, &t.Row, &t.Seat, &t.Price, &t.OriginalPrice,
		&t.Currency, &t.SellerID, &t.Status, &t.ReservedBy, &t.ReservedUntil, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTickets(rows pgx.Rows) ([]model.Ticket, error) {
	defer rows.Close()
	tickets := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan ticket")
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (r *InventoryRepo) CreateTicket(ctx context.Context, t *model.Ticket) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO tickets (id, event_id, category, section, row_label, seat, price, original_price, currency, seller_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'available')
		RETURNING status, version, created_at, updated_at`,
		t.ID, t.EventID, t.Category, t.Section, t.Row, t.Seat, t.Price, t.OriginalPrice, t.Currency, t.SellerID,
	).Scan(&t.Status, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert ticket")
	}
	return nil
}

func (r *InventoryRepo) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ticket %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get ticket")
	}
	return t, nil
}

// RemoveTicket soft deletes an available ticket. It reports false when the
// ticket was no longer available.
func (r *InventoryRepo) RemoveTicket(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tickets SET status = 'removed', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'available'`, id)
	if err != nil {
		return false, errors.Wrap(err, "remove ticket")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *InventoryRepo) Rollups(ctx context.Context, eventID string) ([]model.CategoryRollup, error) {
	rows, err := r.db.Query(ctx, `
		SELECT category, COUNT(*), MIN(price)
		FROM tickets
		WHERE event_id = $1 AND status = 'available'
		GROUP BY category`, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "query rollups")
	}
	defer rows.Close()

	rollups := []model.CategoryRollup{}
	for rows.Next() {
		ru := model.CategoryRollup{EventID: eventID}
		if err := rows.Scan(&ru.Category, &ru.Count, &ru.LowestPrice); err != nil {
			return nil, errors.Wrap(err, "scan rollup")
		}
		rollups = append(rollups, ru)
	}
	return rollups, rows.Err()
}

func (r *InventoryRepo) Availability(ctx context.Context, eventIDs []string) (map[string]model.Availability, error) {
	out := make(map[string]model.Availability, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT event_id, COUNT(*), MIN(price)
		FROM tickets
		WHERE event_id = ANY($1) AND status = 'available'
		GROUP BY event_id`, eventIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query availability")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventID string
			count   int
			lowest  model.Money
		)
		if err := rows.Scan(&eventID, &count, &lowest); err != nil {
			return nil, errors.Wrap(err, "scan availability")
		}
		out[eventID] = model.Availability{Count: count, LowestPrice: &lowest}
	}
	return out, rows.Err()
}

func (r *InventoryRepo) ListAvailable(ctx context.Context, eventID string, limit int) ([]model.Ticket, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ticketColumns+`
		FROM tickets WHERE ($1 = '' OR event_id = $1) AND status = 'available'
		ORDER BY price ASC, created_at ASC
		LIMIT $2`, eventID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list available tickets")
	}
	return collectTickets(rows)
}

func (r *InventoryRepo) ListBySeller(ctx context.Context, sellerID string) ([]model.Ticket, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ticketColumns+`
		FROM tickets WHERE seller_id = $1 AND status <> 'removed'
		ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, errors.Wrap(err, "list seller tickets")
	}
	return collectTickets(rows)
}
