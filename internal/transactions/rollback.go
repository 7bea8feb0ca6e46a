package transactions

import (
	"context"

	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

// Rollback reverses a logged transaction and appends a log row of the same
// type that references it. A transaction may be rolled back once; rollback
// rows themselves cannot be rolled back.
func (e *Engine) Rollback(ctx context.Context, transactionID int64, executedBy, note string) (*Result, error) {
	var t *model.TransactionLog
	var d Details
	err := e.store.InTx(ctx, func(q store.Querier) error {
		orig, err := q.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if orig.RollbackOf != nil {
			return model.Invalidf("transaction %d is itself a rollback of %d", orig.ID, *orig.RollbackOf)
		}
		done, err := q.HasRollback(ctx, orig.ID)
		if err != nil {
			return err
		}
		if done {
			return model.Invalidf("transaction %d was already rolled back", orig.ID)
		}

		d, _, err = DecodeDetails(orig.Details)
		if err != nil {
			return err
		}
		if err := d.reverse(ctx, q); err != nil {
			return err
		}

		if note == "" {
			note = "rollback of transaction " + itoa(orig.ID)
		}
		t = &model.TransactionLog{
			Type:           orig.Type,
			LeagueYear:     orig.LeagueYear,
			PrimaryOrgID:   orig.PrimaryOrgID,
			SecondaryOrgID: orig.SecondaryOrgID,
			ContractID:     orig.ContractID,
			PlayerID:       orig.PlayerID,
			RollbackOf:     model.Int64(orig.ID),
			Note:           note,
			ExecutedBy:     executedBy,
		}
		return record(ctx, q, t, d)
	})
	if err != nil {
		return nil, err
	}

	e.committed(t)
	return newResult(t, d), nil
}
