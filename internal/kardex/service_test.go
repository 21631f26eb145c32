package kardex

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
)

type nopTxManager struct{}

func (nopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (nopTxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	itemID    id.ID
	movements []entity.Movement
}

func (f *fakeRepo) ItemExists(ctx context.Context, itemID id.ID) (bool, error) {
	return itemID == f.itemID, nil
}

func (f *fakeRepo) ListMovements(ctx context.Context, itemID id.ID, from, to *time.Time) ([]entity.Movement, error) {
	var out []entity.Movement
	for _, m := range f.movements {
		if m.ItemID != itemID {
			continue
		}
		if from != nil && m.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && m.CreatedAt.After(*to) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func qty(s string) types.Quantity {
	q, err := types.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func movementAt(itemID id.ID, dir entity.Direction, q types.Quantity, at time.Time) entity.Movement {
	m := entity.NewMovement(itemID, nil, dir, q, types.MustMoney("1.00"),
		entity.NewReference(entity.RefKindSale, id.New().String()), "user-1", "")
	m.CreatedAt = at
	return m
}

func TestGetLedger_RunningBalance(t *testing.T) {
	itemID := id.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		itemID: itemID,
		movements: []entity.Movement{
			movementAt(itemID, entity.DirectionEntrada, qty("10"), base),
			movementAt(itemID, entity.DirectionSalida, qty("4"), base.Add(time.Hour)),
			movementAt(itemID, entity.DirectionEntrada, qty("6"), base.Add(2*time.Hour)),
		},
	}
	svc := NewService(repo, nopTxManager{})

	ledger, err := svc.GetLedger(context.Background(), itemID, nil, nil)
	require.NoError(t, err)

	require.Len(t, ledger.Entries, 3)
	assert.Equal(t, qty("10"), ledger.Entries[0].Balance)
	assert.Equal(t, qty("6"), ledger.Entries[1].Balance)
	assert.Equal(t, qty("12"), ledger.Entries[2].Balance)
	assert.Equal(t, qty("12"), ledger.ClosingBalance)
}

func TestGetLedger_WindowStartsFromZero(t *testing.T) {
	itemID := id.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		itemID: itemID,
		movements: []entity.Movement{
			movementAt(itemID, entity.DirectionEntrada, qty("10"), base),
			movementAt(itemID, entity.DirectionSalida, qty("4"), base.Add(24*time.Hour)),
		},
	}
	svc := NewService(repo, nopTxManager{})

	// Only the exit falls inside the window, so the balance goes negative:
	// the projection replays from zero within scope.
	from := base.Add(12 * time.Hour)
	ledger, err := svc.GetLedger(context.Background(), itemID, &from, nil)
	require.NoError(t, err)

	require.Len(t, ledger.Entries, 1)
	assert.Equal(t, qty("-4"), ledger.Entries[0].Balance)
	assert.Equal(t, qty("-4"), ledger.ClosingBalance)
}

func TestGetLedger_EmptyWindow(t *testing.T) {
	itemID := id.New()
	repo := &fakeRepo{itemID: itemID}
	svc := NewService(repo, nopTxManager{})

	ledger, err := svc.GetLedger(context.Background(), itemID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ledger.Entries)
	assert.True(t, ledger.ClosingBalance.IsZero())
}

func TestGetLedger_Restartable(t *testing.T) {
	itemID := id.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		itemID: itemID,
		movements: []entity.Movement{
			movementAt(itemID, entity.DirectionEntrada, qty("5"), base),
			movementAt(itemID, entity.DirectionSalida, qty("2"), base.Add(time.Hour)),
		},
	}
	svc := NewService(repo, nopTxManager{})

	first, err := svc.GetLedger(context.Background(), itemID, nil, nil)
	require.NoError(t, err)
	second, err := svc.GetLedger(context.Background(), itemID, nil, nil)
	require.NoError(t, err)

	require.Equal(t, len(first.Entries), len(second.Entries))
	for i := range first.Entries {
		assert.Equal(t, first.Entries[i].Movement.ID, second.Entries[i].Movement.ID)
		assert.Equal(t, first.Entries[i].Balance, second.Entries[i].Balance)
	}
}

func TestGetLedger_UnknownItem(t *testing.T) {
	repo := &fakeRepo{itemID: id.New()}
	svc := NewService(repo, nopTxManager{})

	_, err := svc.GetLedger(context.Background(), id.New(), nil, nil)
	assert.True(t, apperror.IsNotFound(err))
}

func TestGetLedger_InvalidWindow(t *testing.T) {
	repo := &fakeRepo{itemID: id.New()}
	svc := NewService(repo, nopTxManager{})

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, err := svc.GetLedger(context.Background(), repo.itemID, &from, &to)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidPeriod))
}

func TestGetTurnover_SumsDirections(t *testing.T) {
	itemID := id.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		itemID: itemID,
		movements: []entity.Movement{
			movementAt(itemID, entity.DirectionEntrada, qty("10"), base),
			movementAt(itemID, entity.DirectionEntrada, qty("5"), base.Add(time.Hour)),
			movementAt(itemID, entity.DirectionSalida, qty("7"), base.Add(2*time.Hour)),
		},
	}
	svc := NewService(repo, nopTxManager{})

	turnover, err := svc.GetTurnover(context.Background(), itemID, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, qty("15"), turnover.TotalIn)
	assert.Equal(t, qty("7"), turnover.TotalOut)
	assert.Equal(t, qty("8"), turnover.Net)
	assert.Equal(t, 3, turnover.Movements)
	assert.True(t, turnover.EntryCost.Equal(types.MustMoney("15.00")))
	assert.True(t, turnover.ExitCost.Equal(types.MustMoney("7.00")))
}
