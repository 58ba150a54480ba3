package paydb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerpay/paywallet/wallet"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/sqldb"
)

const (
	insertReceiptQuery = `INSERT INTO receipts (id, kind, action_key,
payee, amount, response, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	insertInputQuery = `INSERT INTO receipt_inputs (receipt_id, position,
source_ref) VALUES (?, ?, ?)`

	insertOutputQuery = `INSERT INTO receipt_outputs (receipt_id, position,
recipient, amount, extra) VALUES (?, ?, ?, ?, ?)`

	selectReceiptQuery = `SELECT id, kind, action_key, payee, amount,
response, created_at FROM receipts WHERE id = ?`

	listReceiptsQuery = `SELECT id, kind, action_key, payee, amount,
response, created_at FROM receipts`

	selectInputsQuery = `SELECT source_ref FROM receipt_inputs
WHERE receipt_id = ? ORDER BY position`

	selectOutputsQuery = `SELECT recipient, amount, extra FROM receipt_outputs
WHERE receipt_id = ? ORDER BY position`

	isSpentQuery = `SELECT EXISTS (SELECT 1 FROM receipt_inputs
WHERE source_ref = ?)`
)

// rebindFunc rewrites the ? placeholders of a query for a backend.
type rebindFunc func(query string) string

// rebindNone keeps ? placeholders.
func rebindNone(query string) string {
	return query
}

// rebindDollar numbers placeholders as $1, $2, ...
func rebindDollar(query string) string {
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)

	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}

		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}

	return b.String()
}

// receiptStore implements ReceiptStore over database/sql. The backends only
// differ in their placeholder syntax.
type receiptStore struct {
	db     *sql.DB
	rebind rebindFunc
	clock  clock.Clock

	// txExecutor runs write transactions, retrying them on serialization
	// failures.
	txExecutor *sqldb.TransactionExecutor[*sql.Tx]
}

// newReceiptStore creates a receipt store. A nil clock means wall clock
// time.
func newReceiptStore(db *sql.DB, rebind rebindFunc,
	c clock.Clock) (*receiptStore, error) {

	if db == nil {
		return nil, ErrNilDB
	}

	if c == nil {
		c = clock.NewDefaultClock()
	}

	executor := sqldb.NewTransactionExecutor[*sql.Tx](
		&sqldb.BaseDB{DB: db}, func(tx *sql.Tx) *sql.Tx {
			return tx
		},
	)

	return &receiptStore{
		db:         db,
		rebind:     rebind,
		clock:      c,
		txExecutor: executor,
	}, nil
}

// A compile time check to ensure that receiptStore implements the
// interface.
var _ ReceiptStore = (*receiptStore)(nil)

// AddReceipt stores a new receipt with its inputs and outputs in a single
// transaction.
func (s *receiptStore) AddReceipt(ctx context.Context,
	params AddReceiptParams) (*Receipt, error) {

	if err := params.validate(); err != nil {
		return nil, err
	}

	amount, err := amountToInt64(params.Txn.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("receipt id: %w", err)
	}

	receipt := &Receipt{
		ID:        id,
		Kind:      params.Kind,
		ActionKey: params.ActionKey,
		Payee:     params.Payee,
		Txn:       params.Txn,
		Response:  params.Response,
		CreatedAt: s.clock.Now().UTC(),
	}

	txBody := func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx, s.rebind(insertReceiptQuery), id,
			string(params.Kind), params.ActionKey, params.Payee,
			amount, params.Response, receipt.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}

		for i, ref := range params.Txn.Inputs {
			err := s.insertInput(ctx, tx, id, i, ref)
			if err != nil {
				return err
			}
		}

		for i, out := range params.Txn.Outputs {
			err := s.insertOutput(ctx, tx, id, i, out)
			if err != nil {
				return err
			}
		}

		return nil
	}

	err = s.txExecutor.ExecTx(ctx, sqldb.WriteTxOpt(), txBody, func() {})
	switch {
	case errors.Is(err, ErrSourceSpent), errors.Is(err, ErrCastingOverflow):
		return nil, err

	case err != nil:
		return nil, wrapDBError("store receipt", err)
	}

	log.Debugf("Stored %s receipt %v for %v tokens", receipt.Kind,
		receipt.ID, receipt.Txn.Amount)

	return receipt, nil
}

// insertInput stores the i-th input of a receipt.
func (s *receiptStore) insertInput(ctx context.Context, tx *sql.Tx,
	id uuid.UUID, i int, ref string) error {

	pos, err := intToInt32(i)
	if err != nil {
		return fmt.Errorf("input position: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(insertInputQuery), id, pos, ref)
	if err == nil {
		return nil
	}

	var uniqueErr *sqldb.ErrSQLUniqueConstraintViolation
	if errors.As(sqldb.MapSQLError(err), &uniqueErr) {
		return fmt.Errorf("%w: %s", ErrSourceSpent, ref)
	}

	return fmt.Errorf("insert receipt input: %w", err)
}

// insertOutput stores the i-th output of a receipt.
func (s *receiptStore) insertOutput(ctx context.Context, tx *sql.Tx,
	id uuid.UUID, i int, out wallet.Output) error {

	pos, err := intToInt32(i)
	if err != nil {
		return fmt.Errorf("output position: %w", err)
	}

	amount, err := amountToInt64(out.Amount)
	if err != nil {
		return fmt.Errorf("output amount: %w", err)
	}

	extra := sql.NullString{
		String: out.Extra.UnwrapOr(""),
		Valid:  out.Extra.IsSome(),
	}

	_, err = tx.ExecContext(
		ctx, s.rebind(insertOutputQuery), id, pos, out.Recipient,
		amount, extra,
	)
	if err != nil {
		return fmt.Errorf("insert receipt output: %w", err)
	}

	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanReceipt decodes the receipts columns of a row.
func scanReceipt(row rowScanner) (*Receipt, error) {
	var (
		r         Receipt
		kind      string
		amount    int64
		createdAt int64
	)
	err := row.Scan(
		&r.ID, &kind, &r.ActionKey, &r.Payee, &amount, &r.Response,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	r.Kind = ReceiptKind(kind)
	r.CreatedAt = time.Unix(0, createdAt).UTC()

	r.Txn.Amount, err = int64ToAmount(amount)
	if err != nil {
		return nil, newError(ErrCorrupt, "receipt amount", err)
	}

	return &r, nil
}

// GetReceipt fetches a receipt with its inputs and outputs.
func (s *receiptStore) GetReceipt(ctx context.Context,
	id uuid.UUID) (*Receipt, error) {

	row := s.db.QueryRowContext(ctx, s.rebind(selectReceiptQuery), id)

	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrReceiptNotFound, id)
	}
	if err != nil {
		return nil, wrapDBError("select receipt", err)
	}

	if err := s.loadTxn(ctx, r); err != nil {
		return nil, err
	}

	return r, nil
}

// ListReceipts returns receipts newest first.
func (s *receiptStore) ListReceipts(ctx context.Context,
	query ListReceiptsQuery) ([]Receipt, error) {

	var (
		q    = listReceiptsQuery
		args []any
	)
	query.Kind.WhenSome(func(kind ReceiptKind) {
		q += " WHERE kind = ?"
		args = append(args, string(kind))
	})
	q += " ORDER BY created_at DESC, id"
	if query.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, int64(query.Limit))
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, wrapDBError("list receipts", err)
	}
	defer rows.Close()

	receipts := make([]Receipt, 0)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list receipts", err)
	}

	for i := range receipts {
		if err := s.loadTxn(ctx, &receipts[i]); err != nil {
			return nil, err
		}
	}

	return receipts, nil
}

// loadTxn fills the inputs and outputs of r.
func (s *receiptStore) loadTxn(ctx context.Context, r *Receipt) error {
	inputs, err := s.selectInputs(ctx, r.ID)
	if err != nil {
		return err
	}

	outputs, err := s.selectOutputs(ctx, r.ID)
	if err != nil {
		return err
	}

	r.Txn.Inputs = inputs
	r.Txn.Outputs = outputs

	return nil
}

// selectInputs returns the source refs spent by a receipt.
func (s *receiptStore) selectInputs(ctx context.Context,
	id uuid.UUID) ([]string, error) {

	rows, err := s.db.QueryContext(ctx, s.rebind(selectInputsQuery), id)
	if err != nil {
		return nil, wrapDBError("select receipt inputs", err)
	}
	defer rows.Close()

	inputs := make([]string, 0)
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, wrapDBError("scan receipt input", err)
		}
		inputs = append(inputs, ref)
	}

	return inputs, wrapDBError("select receipt inputs", rows.Err())
}

// selectOutputs returns the outputs created by a receipt.
func (s *receiptStore) selectOutputs(ctx context.Context,
	id uuid.UUID) ([]wallet.Output, error) {

	rows, err := s.db.QueryContext(ctx, s.rebind(selectOutputsQuery), id)
	if err != nil {
		return nil, wrapDBError("select receipt outputs", err)
	}
	defer rows.Close()

	outputs := make([]wallet.Output, 0)
	for rows.Next() {
		var (
			out    wallet.Output
			amount int64
			extra  sql.NullString
		)
		err := rows.Scan(&out.Recipient, &amount, &extra)
		if err != nil {
			return nil, wrapDBError("scan receipt output", err)
		}

		out.Amount, err = int64ToAmount(amount)
		if err != nil {
			return nil, newError(ErrCorrupt, "output amount", err)
		}

		if extra.Valid {
			out.Extra = fn.Some(extra.String)
		}
		outputs = append(outputs, out)
	}

	return outputs, wrapDBError("select receipt outputs", rows.Err())
}

// IsSpent reports whether a stored receipt spent ref.
func (s *receiptStore) IsSpent(ctx context.Context, ref string) (bool,
	error) {

	var spent bool
	err := s.db.QueryRowContext(
		ctx, s.rebind(isSpentQuery), ref,
	).Scan(&spent)
	if err != nil {
		return false, wrapDBError("select spent source", err)
	}

	return spent, nil
}
