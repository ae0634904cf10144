package store

import (
	"context"
	"database/sql"
	"fmt"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// storedSchemaVersion reads the current PRAGMA user_version.
func storedSchemaVersion(ctx context.Context, q queryer) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

func objectExists(ctx context.Context, q queryer, kind, name string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("lookup %s %s: %w", kind, name, err)
	}
	return count > 0, nil
}

// migrate brings the store to target in increasing version order.
//
// The whole upgrade runs in one transaction and user_version is only
// stamped after verifyStructures passes, so a failed upgrade leaves the
// stored version (and every table) exactly as it was.
func (s *Store) migrate(ctx context.Context, target int) error {
	if target < 1 || target > CurrentSchemaVersion {
		return fmt.Errorf("unsupported schema version %d (supported 1..%d)", target, CurrentSchemaVersion)
	}

	stored, err := storedSchemaVersion(ctx, s.db)
	if err != nil {
		return err
	}
	if stored > target {
		return fmt.Errorf("stored schema version %d is newer than requested %d", stored, target)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	created := make(map[Collection]bool)

	for _, st := range schemaSteps {
		if st.version > target {
			break
		}
		upgrading := st.version > stored

		for _, c := range st.creates {
			exists, err := objectExists(ctx, tx, "table", string(c))
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if _, err := tx.ExecContext(ctx, tableDDL[c]); err != nil {
				return fmt.Errorf("create %s: %w", c, err)
			}
			created[c] = true
			if !upgrading {
				s.log.Warn().Str("collection", string(c)).Msg("recreated missing collection")
			}
		}

		if upgrading && stored < legacyRecreateBelow {
			for _, c := range st.recreate {
				if created[c] {
					continue
				}
				if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+string(c)); err != nil {
					return fmt.Errorf("drop legacy %s: %w", c, err)
				}
				if _, err := tx.ExecContext(ctx, tableDDL[c]); err != nil {
					return fmt.Errorf("recreate legacy %s: %w", c, err)
				}
				created[c] = true
				s.log.Warn().Str("collection", string(c)).Int("from_version", stored).
					Msg("recreated legacy collection")
			}
		}

		for _, ix := range st.indexes {
			exists, err := objectExists(ctx, tx, "index", ix.name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if _, err := tx.ExecContext(ctx, ix.ddl()); err != nil {
				return fmt.Errorf("create index %s: %w", ix.name, err)
			}
			if !upgrading && !created[ix.table] {
				s.log.Warn().Str("index", ix.name).Msg("repaired missing index")
			}
		}

		if upgrading {
			if s.upgradeHook != nil {
				if err := s.upgradeHook(st.version); err != nil {
					return fmt.Errorf("upgrade to v%d: %w", st.version, err)
				}
			}
			s.log.Info().Int("version", st.version).Msg("applied schema step")
		}
	}

	if err := verifyStructures(ctx, tx, target); err != nil {
		return err
	}

	if stored != target {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// verifyStructures confirms every table and index expected at version exists.
func verifyStructures(ctx context.Context, q queryer, version int) error {
	cols, idxs := expectedStructures(version)
	for _, c := range cols {
		ok, err := objectExists(ctx, q, "table", string(c))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("verify schema v%d: collection %s missing", version, c)
		}
	}
	for _, ix := range idxs {
		ok, err := objectExists(ctx, q, "index", ix.name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("verify schema v%d: index %s missing", version, ix.name)
		}
	}
	return nil
}
