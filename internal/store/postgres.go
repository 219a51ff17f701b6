package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrArgumentLimit is returned by AppendArgument when the case already holds
// the maximum number of arguments. The case is left unchanged.
var ErrArgumentLimit = errors.New("argument limit reached")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at
		FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) CreateCase(ctx context.Context, record Case) error {
	status := record.Status
	if status == "" {
		status = "active"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (case_id, owner_user_id, status)
		VALUES ($1, $2, $3)
	`, record.CaseID, record.OwnerID, status)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

/// GetCase assembles the full case document: both sides' documents and
// arguments in submission order plus the decision history.
func (s *PostgresStore) GetCase(ctx context.Context, caseID string) (Case, error) {
	var record Case
	err := s.db.QueryRowContext(ctx, `
		SELECT case_id, owner_user_id, status, argument_count, created_at
		FROM cases WHERE case_id = $1
	`, caseID).Scan(&record.CaseID, &record.OwnerID, &record.Status, &record.ArgumentCount, &record.CreatedAt)
	if err != nil {
		return Case{}, err
	}

	record.SideA = SideRecord{Documents: []DocumentRef{}, Arguments: []Argument{}}
	record.SideB = SideRecord{Documents: []DocumentRef{}, Arguments: []Argument{}}
	record.Decisions = []Decision{}

	docs, err := s.db.QueryContext(ctx, `
		SELECT side, object_ref, created_at
		FROM case_documents WHERE case_id = $1
		ORDER BY side, position
	`, caseID)
	if err != nil {
		return Case{}, fmt.Errorf("list case documents: %w", err)
	}
	defer docs.Close()
	for docs.Next() {
		var ref DocumentRef
		if err := docs.Scan(&ref.Side, &ref.ObjectRef, &ref.CreatedAt); err != nil {
			return Case{}, fmt.Errorf("scan case document: %w", err)
		}
		if ref.Side == SideA {
			record.SideA.Documents = append(record.SideA.Documents, ref)
		} else {
			record.SideB.Documents = append(record.SideB.Documents, ref)
		}
	}
	if err := docs.Err(); err != nil {
		return Case{}, fmt.Errorf("iterate case documents: %w", err)
	}

	args, err := s.db.QueryContext(ctx, `
		SELECT side, body, created_at
		FROM case_arguments WHERE case_id = $1
		ORDER BY side, position
	`, caseID)
	if err != nil {
		return Case{}, fmt.Errorf("list case arguments: %w", err)
	}
	defer args.Close()
	for args.Next() {
		var arg Argument
		if err := args.Scan(&arg.Side, &arg.Body, &arg.CreatedAt); err != nil {
			return Case{}, fmt.Errorf("scan case argument: %w", err)
		}
		if arg.Side == SideA {
			record.SideA.Arguments = append(record.SideA.Arguments, arg)
		} else {
			record.SideB.Arguments = append(record.SideB.Arguments, arg)
		}
	}
	if err := args.Err(); err != nil {
		return Case{}, fmt.Errorf("iterate case arguments: %w", err)
	}

	decisions, err := s.db.QueryContext(ctx, `
		SELECT round, verdict, reasoning, created_at
		FROM case_decisions WHERE case_id = $1
		ORDER BY round
	`, caseID)
	if err != nil {
		return Case{}, fmt.Errorf("list case decisions: %w", err)
	}
	defer decisions.Close()
	for decisions.Next() {
		var decision Decision
		if err := decisions.Scan(&decision.Round, &decision.Verdict, &decision.Reasoning, &decision.CreatedAt); err != nil {
			return Case{}, fmt.Errorf("scan case decision: %w", err)
		}
		record.Decisions = append(record.Decisions, decision)
	}
	if err := decisions.Err(); err != nil {
		return Case{}, fmt.Errorf("iterate case decisions: %w", err)
	}

	return record, nil
}

// ListRecentCases returns up to limit cases ordered by creation time
// descending. An empty ownerID returns cases across all users.
func (s *PostgresStore) ListRecentCases(ctx context.Context, ownerID string, limit int) ([]CaseSummary, error) {
	const query = `
		SELECT c.case_id, c.status, c.argument_count,
			(SELECT COUNT(*) FROM case_documents d WHERE d.case_id = c.case_id),
			(SELECT COUNT(*) FROM case_decisions cd WHERE cd.case_id = c.case_id),
			COALESCE((SELECT verdict FROM case_decisions cd WHERE cd.case_id = c.case_id ORDER BY round DESC LIMIT 1), ''),
			c.created_at
		FROM cases c
		WHERE ($1 = '' OR c.owner_user_id = $1)
		ORDER BY c.created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	items := make([]CaseSummary, 0)
	for rows.Next() {
		var item CaseSummary
		if err := rows.Scan(&item.CaseID, &item.Status, &item.ArgumentCount, &item.DocumentCount, &item.DecisionCount, &item.LastVerdict, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan case summary: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return items, nil
}

// AppendArgument records one argument and increments the case's argument
// count, holding a row lock on the case so that concurrent submissions
// serialize instead of clobbering each other. Returns the new total count,
// sql.ErrNoRows for an unknown case, or ErrArgumentLimit when the case is
// already at max.
func (s *PostgresStore) AppendArgument(ctx context.Context, caseID, side, body string, max int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append argument: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT argument_count FROM cases WHERE case_id = $1 FOR UPDATE
	`, caseID).Scan(&count); err != nil {
		return 0, err
	}
	if count >= max {
		return count, ErrArgumentLimit
	}

	var position int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM case_arguments WHERE case_id = $1 AND side = $2
	`, caseID, side).Scan(&position); err != nil {
		return 0, fmt.Errorf("count side arguments: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO case_arguments (case_id, side, position, body)
		VALUES ($1, $2, $3, $4)
	`, caseID, side, position, body); err != nil {
		return 0, fmt.Errorf("insert argument: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		UPDATE cases SET argument_count = argument_count + 1
		WHERE case_id = $1
		RETURNING argument_count
	`, caseID).Scan(&count); err != nil {
		return 0, fmt.Errorf("increment argument count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append argument: %w", err)
	}
	return count, nil
}

// AppendDocuments records object references for one side under the case row
// lock. Returns sql.ErrNoRows for an unknown case.
func (s *PostgresStore) AppendDocuments(ctx context.Context, caseID, side string, refs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append documents: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM cases WHERE case_id = $1 FOR UPDATE
	`, caseID).Scan(&id); err != nil {
		return err
	}

	var position int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM case_documents WHERE case_id = $1 AND side = $2
	`, caseID, side).Scan(&position); err != nil {
		return fmt.Errorf("count side documents: %w", err)
	}

	for i, ref := range refs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO case_documents (case_id, side, position, object_ref)
			VALUES ($1, $2, $3, $4)
		`, caseID, side, position+i, ref); err != nil {
			return fmt.Errorf("insert document ref: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append documents: %w", err)
	}
	return nil
}

// AppendDecision records a judgment result, assigning the round number from
// the decision count under the case row lock so rounds are gapless and
// strictly increasing even for concurrent judgment requests.
func (s *PostgresStore) AppendDecision(ctx context.Context, caseID, verdict, reasoning string) (Decision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("begin append decision: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM cases WHERE case_id = $1 FOR UPDATE
	`, caseID).Scan(&id); err != nil {
		return Decision{}, err
	}

	var round int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) + 1 FROM case_decisions WHERE case_id = $1
	`, caseID).Scan(&round); err != nil {
		return Decision{}, fmt.Errorf("next round: %w", err)
	}

	decision := Decision{Round: round, Verdict: verdict, Reasoning: reasoning}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO case_decisions (case_id, round, verdict, reasoning)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, caseID, round, verdict, reasoning).Scan(&decision.CreatedAt); err != nil {
		return Decision{}, fmt.Errorf("insert decision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Decision{}, fmt.Errorf("commit append decision: %w", err)
	}
	return decision, nil
}
