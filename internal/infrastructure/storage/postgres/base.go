package postgres

import "github.com/Masterminds/squirrel"

// Table names.
const (
	supplyItemsTable  = "cat_supply_items"
	lotsTable         = "inv_lots"
	movementsTable    = "inv_movements"
	ordersTable       = "doc_purchase_orders"
	orderLinesTable   = "doc_purchase_order_lines"
	receiptsTable     = "doc_goods_receipts"
	receiptLinesTable = "doc_goods_receipt_lines"
	auditsTable       = "doc_audits"
	auditLinesTable   = "doc_audit_lines"
)

// qb is the shared query builder with PostgreSQL placeholders.
var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
