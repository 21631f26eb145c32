package receiving

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// seqRow backs the numerator with an in-memory counter.
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
	orders       map[id.ID]*PurchaseOrder
	orderLines   map[id.ID]*OrderLine
	receipts     map[id.ID]*GoodsReceipt
	receiptLines []*ReceiptLine
	lots         map[id.ID]*entity.Lot
	movements    []entity.Movement

	failReceiptCleanup map[id.ID]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:             make(map[id.ID]*PurchaseOrder),
		orderLines:         make(map[id.ID]*OrderLine),
		receipts:           make(map[id.ID]*GoodsReceipt),
		lots:               make(map[id.ID]*entity.Lot),
		failReceiptCleanup: make(map[id.ID]bool),
	}
}

func (f *fakeRepo) CreateOrder(ctx context.Context, order *PurchaseOrder) error {
	f.orders[order.ID] = order
	for i := range order.Lines {
		line := order.Lines[i]
		f.orderLines[line.LineID] = &line
	}
	return nil
}

func (f *fakeRepo) GetOrder(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("purchase_order", orderID.String())
	}
	return order, nil
}

func (f *fakeRepo) UpdateOrderStatus(ctx context.Context, orderID id.ID, status OrderStatus) error {
	order, ok := f.orders[orderID]
	if !ok {
		return apperror.NewNotFound("purchase_order", orderID.String())
	}
	order.Status = status
	return nil
}

func (f *fakeRepo) DeleteOrder(ctx context.Context, orderID id.ID) error {
	delete(f.orders, orderID)
	return nil
}

func (f *fakeRepo) GetOrderLine(ctx context.Context, lineID id.ID) (*OrderLine, error) {
	line, ok := f.orderLines[lineID]
	if !ok {
		return nil, apperror.NewNotFound("order_line", lineID.String())
	}
	return line, nil
}

func (f *fakeRepo) UpdateOrderLineReceived(ctx context.Context, lineID id.ID, received types.Quantity) error {
	line, ok := f.orderLines[lineID]
	if !ok {
		return apperror.NewNotFound("order_line", lineID.String())
	}
	line.ReceivedQuantity = received
	return nil
}

func (f *fakeRepo) DeleteOrderLines(ctx context.Context, orderID id.ID) error {
	for lineID, line := range f.orderLines {
		if line.OrderID == orderID {
			delete(f.orderLines, lineID)
		}
	}
	return nil
}

func (f *fakeRepo) CreateReceipt(ctx context.Context, receipt *GoodsReceipt) error {
	f.receipts[receipt.ID] = receipt
	return nil
}

func (f *fakeRepo) GetReceipt(ctx context.Context, receiptID id.ID) (*GoodsReceipt, error) {
	receipt, ok := f.receipts[receiptID]
	if !ok {
		return nil, apperror.NewNotFound("goods_receipt", receiptID.String())
	}
	return receipt, nil
}

func (f *fakeRepo) ListReceiptsByOrder(ctx context.Context, orderID id.ID) ([]*GoodsReceipt, error) {
	var out []*GoodsReceipt
	for _, r := range f.receipts {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteReceipt(ctx context.Context, receiptID id.ID) error {
	delete(f.receipts, receiptID)
	return nil
}

func (f *fakeRepo) CreateReceiptLine(ctx context.Context, line *ReceiptLine) error {
	f.receiptLines = append(f.receiptLines, line)
	return nil
}

func (f *fakeRepo) GetReceiptLineByOrderLine(ctx context.Context, receiptID, orderLineID id.ID) (*ReceiptLine, error) {
	for _, line := range f.receiptLines {
		if line.ReceiptID == receiptID && line.OrderLineID == orderLineID {
			return line, nil
		}
	}
	return nil, apperror.NewNotFound("receipt_line", orderLineID.String())
}

func (f *fakeRepo) CountReceiptLinesByOrder(ctx context.Context, orderID id.ID) (int, error) {
	count := 0
	for _, line := range f.receiptLines {
		if receipt, ok := f.receipts[line.ReceiptID]; ok && receipt.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) DeleteReceiptLines(ctx context.Context, receiptID id.ID) error {
	if f.failReceiptCleanup[receiptID] {
		return fmt.Errorf("simulated cleanup failure")
	}
	kept := f.receiptLines[:0]
	for _, line := range f.receiptLines {
		if line.ReceiptID != receiptID {
			kept = append(kept, line)
		}
	}
	f.receiptLines = kept
	return nil
}

func (f *fakeRepo) DeleteResidualReceiptLines(ctx context.Context, orderID id.ID) error {
	kept := f.receiptLines[:0]
	for _, line := range f.receiptLines {
		orderLine, ok := f.orderLines[line.OrderLineID]
		if ok && orderLine.OrderID == orderID {
			continue
		}
		kept = append(kept, line)
	}
	f.receiptLines = kept
	return nil
}

func (f *fakeRepo) FindLotByAttributes(ctx context.Context, itemID id.ID, expiresAt *time.Time, location string) (*entity.Lot, error) {
	for _, lot := range f.lots {
		if lot.ItemID != itemID || lot.Location != location {
			continue
		}
		switch {
		case lot.ExpiresAt == nil && expiresAt == nil:
			return lot, nil
		case lot.ExpiresAt != nil && expiresAt != nil && lot.ExpiresAt.Equal(*expiresAt):
			return lot, nil
		}
	}
	return nil, apperror.NewNotFound("lot", itemID.String())
}

func (f *fakeRepo) CreateLot(ctx context.Context, lot *entity.Lot) error {
	f.lots[lot.ID] = lot
	return nil
}

func (f *fakeRepo) DeleteMovementsByReference(ctx context.Context, kind entity.ReferenceKind, refID string) error {
	kept := f.movements[:0]
	for _, m := range f.movements {
		if m.Kind == kind && m.Reference.ID == refID {
			continue
		}
		kept = append(kept, m)
	}
	f.movements = kept
	return nil
}

// fakeLedger applies entries straight onto the repo's lots and movements.
type fakeLedger struct {
	repo *fakeRepo
}

func (l *fakeLedger) ApplyMovement(ctx context.Context, in ledger.ApplyInput) (ledger.ApplySummary, error) {
	lot := l.repo.lots[*in.LotID]
	lot.InitialQuantity += in.Quantity
	lot.CurrentQuantity += in.Quantity

	m := entity.NewMovement(in.ItemID, in.LotID, in.Direction, in.Quantity, *in.UnitCost, in.Reference, in.Actor, in.Note)
	l.repo.movements = append(l.repo.movements, m)
	return ledger.ApplySummary{
		ItemID:        in.ItemID,
		Movements:     []entity.Movement{m},
		TotalQuantity: in.Quantity,
		LotsTouched:   []id.ID{*in.LotID},
	}, nil
}

func (l *fakeLedger) HasReference(ctx context.Context, ref entity.Reference) (bool, error) {
	for _, m := range l.repo.movements {
		if m.Reference == ref {
			return true, nil
		}
	}
	return false, nil
}

type stepRecord struct {
	step string
	err  error
}

type fakeRecorder struct {
	steps []stepRecord
}

func (r *fakeRecorder) RecordStep(ctx context.Context, orderID id.ID, step string, stepErr error, details map[string]any) {
	r.steps = append(r.steps, stepRecord{step: step, err: stepErr})
}

func qty(s string) types.Quantity {
	q, err := types.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func newTestService(repo *fakeRepo, cfg Config) (*Service, *fakeRecorder) {
	recorder := &fakeRecorder{}
	num := numerator.New(&seqQuerier{})
	svc := NewService(repo, &fakeLedger{repo: repo}, nopTxManager{}, num, recorder, cfg)
	return svc, recorder
}

// seedOrder creates an approved order with one line directly in the fake.
func seedOrder(repo *fakeRepo, ordered types.Quantity) (*PurchaseOrder, *OrderLine) {
	order := NewPurchaseOrder("Distribuidora Sur")
	order.Status = StatusAprobada
	line := order.AddLine(id.New(), ordered, types.MustMoney("3.00"))
	repo.orders[order.ID] = order
	repo.orderLines[line.LineID] = line
	return order, line
}

func seedReceipt(repo *fakeRepo, orderID id.ID) *GoodsReceipt {
	receipt := NewGoodsReceipt(orderID)
	repo.receipts[receipt.ID] = receipt
	return receipt
}

func TestCreateOrder_NumbersAndPersists(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})

	order := NewPurchaseOrder("Proveedor Norte")
	order.AddLine(id.New(), qty("10"), types.MustMoney("5.00"))

	require.NoError(t, svc.CreateOrder(context.Background(), order))
	assert.Equal(t, StatusPendiente, order.Status)
	assert.Contains(t, order.Number, "OC-")
	assert.Contains(t, repo.orders, order.ID)
}

func TestCreateOrder_RequiresLines(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})

	err := svc.CreateOrder(context.Background(), NewPurchaseOrder("Proveedor Norte"))
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestRecordReceiptLine_CreatesLotAndAdvancesReceived(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})
	_, line := seedOrder(repo, qty("10"))
	receipt := seedReceipt(repo, line.OrderID)

	rl, err := svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID:   receipt.ID,
		OrderLineID: line.LineID,
		Quantity:    qty("6"),
		UnitCost:    types.MustMoney("2.80"),
	})
	require.NoError(t, err)

	assert.Equal(t, qty("6"), repo.orderLines[line.LineID].ReceivedQuantity)
	assert.Len(t, repo.lots, 1)
	assert.Equal(t, qty("6"), repo.lots[rl.LotID].CurrentQuantity)
	require.Len(t, repo.movements, 1)
	assert.Equal(t, entity.RefKindReceipt, repo.movements[0].Kind)
	assert.Equal(t, receipt.ID.String(), repo.movements[0].Reference.ID)
	assert.Equal(t, line.LineID.String(), repo.movements[0].Reference.Line)
}

func TestRecordReceiptLine_MatchingBatchAugmentsLot(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})
	_, line := seedOrder(repo, qty("10"))
	first := seedReceipt(repo, line.OrderID)
	second := seedReceipt(repo, line.OrderID)

	expires := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	attrs := LotAttributes{ExpiresAt: &expires, Location: "camara-1"}

	a, err := svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID: first.ID, OrderLineID: line.LineID,
		Quantity: qty("4"), UnitCost: types.MustMoney("2.00"), Lot: attrs,
	})
	require.NoError(t, err)

	b, err := svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID: second.ID, OrderLineID: line.LineID,
		Quantity: qty("3"), UnitCost: types.MustMoney("2.00"), Lot: attrs,
	})
	require.NoError(t, err)

	assert.Equal(t, a.LotID, b.LotID)
	assert.Len(t, repo.lots, 1)
	assert.Equal(t, qty("7"), repo.lots[a.LotID].CurrentQuantity)
	assert.Equal(t, qty("7"), repo.orderLines[line.LineID].ReceivedQuantity)
}

func TestRecordReceiptLine_OverReceiptRejected(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})
	_, line := seedOrder(repo, qty("10"))
	receipt := seedReceipt(repo, line.OrderID)

	_, err := svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID: receipt.ID, OrderLineID: line.LineID,
		Quantity: qty("7"), UnitCost: types.MustMoney("2.00"),
	})
	require.NoError(t, err)

	// 7 received + 4 more would exceed the 10 ordered.
	_, err = svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID: receipt.ID, OrderLineID: line.LineID,
		Quantity: qty("4"), UnitCost: types.MustMoney("2.00"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeOverReceipt))
	assert.Equal(t, qty("7"), repo.orderLines[line.LineID].ReceivedQuantity)
}

func TestRecordReceiptLine_ToleranceAllowsSlack(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{Tolerance: qty("0.5")})
	_, line := seedOrder(repo, qty("10"))
	receipt := seedReceipt(repo, line.OrderID)

	_, err := svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID: receipt.ID, OrderLineID: line.LineID,
		Quantity: qty("10.3"), UnitCost: types.MustMoney("2.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, qty("10.3"), repo.orderLines[line.LineID].ReceivedQuantity)
}

func TestRecordReceiptLine_RetryReturnsExistingLine(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})
	_, line := seedOrder(repo, qty("10"))
	receipt := seedReceipt(repo, line.OrderID)

	in := RecordReceiptLineInput{
		ReceiptID: receipt.ID, OrderLineID: line.LineID,
		Quantity: qty("6"), UnitCost: types.MustMoney("2.00"),
	}
	first, err := svc.RecordReceiptLine(context.Background(), in)
	require.NoError(t, err)

	second, err := svc.RecordReceiptLine(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.LineID, second.LineID)
	assert.Len(t, repo.receiptLines, 1)
	assert.Len(t, repo.movements, 1)
	assert.Equal(t, qty("6"), repo.orderLines[line.LineID].ReceivedQuantity)
}

func TestTransitionOrderStatus_ApproveFromPending(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})
	order, _ := seedOrder(repo, qty("10"))
	order.Status = StatusPendiente

	require.NoError(t, svc.TransitionOrderStatus(context.Background(), order.ID, StatusAprobada))
	assert.Equal(t, StatusAprobada, repo.orders[order.ID].Status)
}

func TestTransitionOrderStatus_ReceivedRequiresReceiptLines(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})
	order, line := seedOrder(repo, qty("10"))

	// A receipt without lines does not count.
	receipt := seedReceipt(repo, order.ID)
	err := svc.TransitionOrderStatus(context.Background(), order.ID, StatusRecibida)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeReceiptMissing))

	_, err = svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID: receipt.ID, OrderLineID: line.LineID,
		Quantity: qty("10"), UnitCost: types.MustMoney("2.00"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.TransitionOrderStatus(context.Background(), order.ID, StatusRecibida))
	assert.Equal(t, StatusRecibida, repo.orders[order.ID].Status)
}

func TestTransitionOrderStatus_CancelBlockedByReceiptLines(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})
	order, line := seedOrder(repo, qty("10"))
	receipt := seedReceipt(repo, order.ID)

	_, err := svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID: receipt.ID, OrderLineID: line.LineID,
		Quantity: qty("2"), UnitCost: types.MustMoney("2.00"),
	})
	require.NoError(t, err)

	err = svc.TransitionOrderStatus(context.Background(), order.ID, StatusCancelada)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStateTransition))
	assert.Equal(t, StatusAprobada, repo.orders[order.ID].Status)
}

func TestTransitionOrderStatus_TerminalIsImmutable(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})
	order, _ := seedOrder(repo, qty("10"))
	order.Status = StatusCancelada

	err := svc.TransitionOrderStatus(context.Background(), order.ID, StatusAprobada)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStateTransition))

	err = svc.TransitionOrderStatus(context.Background(), order.ID, StatusRecibida)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStateTransition))
}

func TestDeleteOrder_CascadesReceiptsLinesAndMovements(t *testing.T) {
	repo := newFakeRepo()
	svc, recorder := newTestService(repo, Config{})
	order, line := seedOrder(repo, qty("10"))
	receipt := seedReceipt(repo, order.ID)

	_, err := svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID: receipt.ID, OrderLineID: line.LineID,
		Quantity: qty("5"), UnitCost: types.MustMoney("2.00"),
	})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)

	require.NoError(t, svc.DeleteOrder(context.Background(), order.ID))

	assert.NotContains(t, repo.orders, order.ID)
	assert.Empty(t, repo.receipts)
	assert.Empty(t, repo.receiptLines)
	assert.Empty(t, repo.movements)
	assert.Empty(t, repo.orderLines)

	// The final order-row step is always recorded.
	last := recorder.steps[len(recorder.steps)-1]
	assert.Equal(t, "order_row", last.step)
	assert.NoError(t, last.err)
}

func TestDeleteOrder_SurvivesReceiptCleanupFailure(t *testing.T) {
	repo := newFakeRepo()
	svc, recorder := newTestService(repo, Config{})
	order, line := seedOrder(repo, qty("10"))
	receipt := seedReceipt(repo, order.ID)

	_, err := svc.RecordReceiptLine(context.Background(), RecordReceiptLineInput{
		ReceiptID: receipt.ID, OrderLineID: line.LineID,
		Quantity: qty("5"), UnitCost: types.MustMoney("2.00"),
	})
	require.NoError(t, err)

	repo.failReceiptCleanup[receipt.ID] = true

	require.NoError(t, svc.DeleteOrder(context.Background(), order.ID))
	assert.NotContains(t, repo.orders, order.ID)

	var failed bool
	for _, s := range recorder.steps {
		if s.err != nil {
			failed = true
		}
	}
	assert.True(t, failed, "failed cleanup steps must be recorded")
}

func TestDeleteOrder_UnknownOrder(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, Config{})

	err := svc.DeleteOrder(context.Background(), id.New())
	assert.True(t, apperror.IsNotFound(err))
}
