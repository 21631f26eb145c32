package audits

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shucway/internal/catalog/supply"
	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
	"shucway/internal/ledger"
	"shucway/pkg/numerator"
)

type nopTxManager struct{}

func (nopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type seqRow struct{ n int64 }

func (r seqRow) Scan(dest ...any) error {
	if p, ok := dest[0].(*int64); ok {
		*p = r.n
	}
	return nil
}

type seqQuerier struct{ n int64 }

func (q *seqQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.n++
	return seqRow{q.n}
}

type fakeRepo struct {
	audits map[id.ID]*Audit
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{audits: make(map[id.ID]*Audit)}
}

func (f *fakeRepo) CreateAudit(ctx context.Context, audit *Audit) error {
	f.audits[audit.ID] = audit
	return nil
}

func (f *fakeRepo) GetAudit(ctx context.Context, auditID id.ID) (*Audit, error) {
	audit, ok := f.audits[auditID]
	if !ok {
		return nil, apperror.NewNotFound("audit", auditID.String())
	}
	return audit, nil
}

func (f *fakeRepo) GetAuditForUpdate(ctx context.Context, auditID id.ID) (*Audit, error) {
	return f.GetAudit(ctx, auditID)
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, auditID id.ID, status AuditStatus) error {
	audit, ok := f.audits[auditID]
	if !ok {
		return apperror.NewNotFound("audit", auditID.String())
	}
	audit.Status = status
	return nil
}

func (f *fakeRepo) GetLine(ctx context.Context, auditID, itemID id.ID) (*AuditLine, error) {
	audit, ok := f.audits[auditID]
	if !ok {
		return nil, apperror.NewNotFound("audit", auditID.String())
	}
	for i := range audit.Lines {
		if audit.Lines[i].ItemID == itemID {
			return &audit.Lines[i], nil
		}
	}
	return nil, apperror.NewNotFound("audit_line", itemID.String())
}

func (f *fakeRepo) UpdateLine(ctx context.Context, line *AuditLine) error {
	audit, ok := f.audits[line.AuditID]
	if !ok {
		return apperror.NewNotFound("audit", line.AuditID.String())
	}
	for i := range audit.Lines {
		if audit.Lines[i].LineID == line.LineID {
			audit.Lines[i] = *line
			return nil
		}
	}
	return apperror.NewNotFound("audit_line", line.LineID.String())
}

// fakeLedger tracks per-item stock and the adjustments applied.
type fakeLedger struct {
	stock   map[id.ID]types.Quantity
	applied []ledger.ApplyInput
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{stock: make(map[id.ID]types.Quantity)}
}

func (l *fakeLedger) ApplyMovement(ctx context.Context, in ledger.ApplyInput) (ledger.ApplySummary, error) {
	l.applied = append(l.applied, in)
	if in.Direction == entity.DirectionSalida {
		l.stock[in.ItemID] -= in.Quantity
	} else {
		l.stock[in.ItemID] += in.Quantity
	}
	return ledger.ApplySummary{ItemID: in.ItemID, TotalQuantity: in.Quantity}, nil
}

func (l *fakeLedger) GetItemStock(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	return l.stock[itemID], nil
}

type fakeItems struct {
	items []*supply.Item
}

func (f *fakeItems) ListActive(ctx context.Context) ([]*supply.Item, error) {
	return f.items, nil
}

func qty(s string) types.Quantity {
	q, err := types.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

type fixture struct {
	svc    *Service
	repo   *fakeRepo
	ledger *fakeLedger
	items  *fakeItems
}

func newFixture() *fixture {
	repo := newFakeRepo()
	ldg := newFakeLedger()
	items := &fakeItems{}
	svc := NewService(repo, items, ldg, nopTxManager{}, numerator.New(&seqQuerier{}))
	return &fixture{svc: svc, repo: repo, ledger: ldg, items: items}
}

func (f *fixture) addItem(name string, stock types.Quantity) *supply.Item {
	item := supply.NewItem(name, "kg", "alimento")
	f.items.items = append(f.items.items, item)
	f.ledger.stock[item.ID] = stock
	return item
}

func period() (time.Time, time.Time) {
	end := time.Now().UTC()
	return end.AddDate(0, -1, 0), end
}

func TestStartAudit_SnapshotsActiveItems(t *testing.T) {
	f := newFixture()
	oil := f.addItem("aceite", qty("20"))
	flour := f.addItem("harina", qty("8.5"))

	from, to := period()
	audit, err := f.svc.StartAudit(context.Background(), "conteo mensual", from, to)
	require.NoError(t, err)

	assert.Equal(t, StatusEnProgreso, audit.Status)
	assert.Contains(t, audit.Number, "AUD-")
	require.Len(t, audit.Lines, 2)

	byItem := map[id.ID]AuditLine{}
	for _, line := range audit.Lines {
		byItem[line.ItemID] = line
	}
	assert.Equal(t, qty("20"), byItem[oil.ID].Expected)
	assert.Equal(t, qty("8.5"), byItem[flour.ID].Expected)
	assert.Nil(t, byItem[oil.ID].Counted)
}

func TestStartAudit_RejectsInvalidPeriods(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()

	_, err := f.svc.StartAudit(context.Background(), "al reves", now, now.AddDate(0, 0, -7))
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidPeriod))

	_, err = f.svc.StartAudit(context.Background(), "futuro", now.AddDate(0, 0, 7), now.AddDate(0, 0, 14))
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidPeriod))
}

func TestRecordCount_ZeroDifferenceClearsCause(t *testing.T) {
	f := newFixture()
	oil := f.addItem("aceite", qty("20"))
	from, to := period()
	audit, err := f.svc.StartAudit(context.Background(), "conteo", from, to)
	require.NoError(t, err)

	line, err := f.svc.RecordCount(context.Background(), audit.ID, oil.ID, qty("20"), "merma", "todo ok")
	require.NoError(t, err)

	assert.True(t, line.Difference.IsZero())
	assert.Empty(t, line.CauseCode)
	assert.False(t, line.Unjustified)
}

func TestRecordCount_MissingCauseFlagsUnjustified(t *testing.T) {
	f := newFixture()
	oil := f.addItem("aceite", qty("20"))
	from, to := period()
	audit, err := f.svc.StartAudit(context.Background(), "conteo", from, to)
	require.NoError(t, err)

	line, err := f.svc.RecordCount(context.Background(), audit.ID, oil.ID, qty("15"), "", "")
	require.NoError(t, err)

	assert.Equal(t, qty("-5"), line.Difference)
	assert.True(t, line.Unjustified)
}

func TestCompleteAudit_SkipsUnjustifiedDifferences(t *testing.T) {
	f := newFixture()
	oil := f.addItem("aceite", qty("20"))
	from, to := period()
	audit, err := f.svc.StartAudit(context.Background(), "conteo", from, to)
	require.NoError(t, err)

	_, err = f.svc.RecordCount(context.Background(), audit.ID, oil.ID, qty("15"), "", "")
	require.NoError(t, err)

	completed, err := f.svc.CompleteAudit(context.Background(), audit.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompletada, completed.Status)
	assert.Empty(t, f.ledger.applied, "unjustified difference must not move stock")

	stock, _ := f.ledger.GetItemStock(context.Background(), oil.ID)
	assert.Equal(t, qty("20"), stock)
}

func TestCompleteAudit_AppliesJustifiedDifference(t *testing.T) {
	f := newFixture()
	oil := f.addItem("aceite", qty("20"))
	from, to := period()
	audit, err := f.svc.StartAudit(context.Background(), "conteo", from, to)
	require.NoError(t, err)

	_, err = f.svc.RecordCount(context.Background(), audit.ID, oil.ID, qty("15"), "merma", "")
	require.NoError(t, err)

	_, err = f.svc.CompleteAudit(context.Background(), audit.ID)
	require.NoError(t, err)

	require.Len(t, f.ledger.applied, 1)
	adj := f.ledger.applied[0]
	assert.Equal(t, entity.DirectionSalida, adj.Direction)
	assert.Equal(t, qty("5"), adj.Quantity)
	assert.Equal(t, entity.RefKindAudit, adj.Reference.Kind)
	assert.Equal(t, audit.ID.String(), adj.Reference.ID)
	assert.Equal(t, oil.ID.String(), adj.Reference.Line)

	stock, _ := f.ledger.GetItemStock(context.Background(), oil.ID)
	assert.Equal(t, qty("15"), stock)
}

func TestCompleteAudit_SurplusBecomesEntry(t *testing.T) {
	f := newFixture()
	oil := f.addItem("aceite", qty("20"))
	from, to := period()
	audit, err := f.svc.StartAudit(context.Background(), "conteo", from, to)
	require.NoError(t, err)

	_, err = f.svc.RecordCount(context.Background(), audit.ID, oil.ID, qty("23"), "recuento", "")
	require.NoError(t, err)

	_, err = f.svc.CompleteAudit(context.Background(), audit.ID)
	require.NoError(t, err)

	require.Len(t, f.ledger.applied, 1)
	assert.Equal(t, entity.DirectionEntrada, f.ledger.applied[0].Direction)
	assert.Equal(t, qty("3"), f.ledger.applied[0].Quantity)
}

func TestRecordCount_RejectedOnTerminalAudit(t *testing.T) {
	f := newFixture()
	oil := f.addItem("aceite", qty("20"))
	from, to := period()
	audit, err := f.svc.StartAudit(context.Background(), "conteo", from, to)
	require.NoError(t, err)

	_, err = f.svc.CompleteAudit(context.Background(), audit.ID)
	require.NoError(t, err)

	_, err = f.svc.RecordCount(context.Background(), audit.ID, oil.ID, qty("15"), "merma", "")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStateTransition))
}

func TestCancelAudit_NeverMovesStock(t *testing.T) {
	f := newFixture()
	oil := f.addItem("aceite", qty("20"))
	from, to := period()
	audit, err := f.svc.StartAudit(context.Background(), "conteo", from, to)
	require.NoError(t, err)

	_, err = f.svc.RecordCount(context.Background(), audit.ID, oil.ID, qty("2"), "merma", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelAudit(context.Background(), audit.ID))
	assert.Equal(t, StatusCancelada, f.repo.audits[audit.ID].Status)
	assert.Empty(t, f.ledger.applied)

	// Terminal: neither completion nor a second cancellation is allowed.
	_, err = f.svc.CompleteAudit(context.Background(), audit.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStateTransition))
	err = f.svc.CancelAudit(context.Background(), audit.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStateTransition))
}
