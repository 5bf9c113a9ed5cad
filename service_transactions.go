package scopekit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
)

// withDB returns a copy of the service whose statements run against the
// given handle. The cache, metrics, logger and monitor are shared with
// the original; the evaluator is rebuilt so group lookups go through
// the same handle.
func (s *Service) withDB(db dbkit.IDB) *Service {
	c := *s
	c.db = db
	c.evaluator = NewEvaluator(c.owners, c.teams, &c,
		WithEvaluatorLogger(c.logger),
		WithEvaluatorMetrics(c.metrics),
	)
	return &c
}

// Transaction executes a function within a database transaction with
// automatic commit/rollback. The callback receives a service bound to
// the transaction handle; statements issued through it commit or roll
// back together. If the function returns an error the transaction is
// rolled back, otherwise it is committed. Nested calls use savepoints.
//
// Example:
//
//	err := service.Transaction(ctx, func(ctx context.Context, tx *scopekit.Service) error {
//	    if err := tx.AssignRole(ctx, "user-1", editorRole.ID, nil); err != nil {
//	        return err // rollback
//	    }
//	    return tx.AssignRole(ctx, "user-2", editorRole.ID, nil) // commit on nil
//	})
func (s *Service) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Service) error) error {
	start := time.Now()
	var err error

	if txh, ok := s.db.(*dbkit.Tx); ok {
		err = txh.Transaction(ctx, func(nested *dbkit.Tx) error {
			return fn(ctx, s.withDB(nested))
		})
	} else if db, ok := s.db.(*dbkit.DBKit); ok {
		err = db.Transaction(ctx, func(txh *dbkit.Tx) error {
			return fn(ctx, s.withDB(txh))
		})
	} else {
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	s.txMonitor.recordTransaction(time.Since(start), err == nil)

	return err
}

// TransactionWithOptions executes a function within a database
// transaction with custom options, supporting read-only mode and
// isolation levels. As with Transaction, the callback must issue its
// statements through the service it receives.
//
// Example:
//
//	err := service.TransactionWithOptions(ctx, dbkit.SerializableTxOptions(), func(ctx context.Context, tx *scopekit.Service) error {
//	    return tx.GrantPermission(ctx, roleID, rule)
//	})
func (s *Service) TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context, tx *Service) error) error {
	if txh, ok := s.db.(*dbkit.Tx); ok {
		// Already inside a transaction; savepoints ignore options.
		return txh.Transaction(ctx, func(nested *dbkit.Tx) error {
			return fn(ctx, s.withDB(nested))
		})
	}

	if db, ok := s.db.(*dbkit.DBKit); ok {
		return db.TransactionWithOptions(ctx, opts, func(txh *dbkit.Tx) error {
			return fn(ctx, s.withDB(txh))
		})
	}

	return fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
}

// ReadOnlyTransaction executes a function within a read-only database
// transaction. Useful for consistent multi-query reads such as
// assembling a permissions report.
func (s *Service) ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx *Service) error) error {
	return s.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), fn)
}
