package database

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"lanchat/internal/models"
	"lanchat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool used by PostgresStore; pgxmock implements it too.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

type PostgresStore struct {
	pool PgxPool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool wraps an existing pool.
func NewPostgresStoreWithPool(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) LoadRooms(ctx context.Context) (map[string]*models.Room, error) {
	const query = `SELECT id, name, owner_id, history, banned_user_ids, deleted_at, created_at FROM rooms`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}
	defer rows.Close()

	rooms := make(map[string]*models.Room)
	for rows.Next() {
		var (
			room      models.Room
			history   []byte
			banned    []byte
			deletedAt *time.Time
		)
		if err := rows.Scan(&room.ID, &room.Name, &room.OwnerID, &history, &banned, &deletedAt, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		if len(history) > 0 {
			if err := json.Unmarshal(history, &room.History); err != nil {
				return nil, fmt.Errorf("room %s: bad history: %w", room.ID, err)
			}
		}
		if len(banned) > 0 {
			if err := json.Unmarshal(banned, &room.BannedUserIDs); err != nil {
				return nil, fmt.Errorf("room %s: bad banned list: %w", room.ID, err)
			}
		}
		room.DeletedAt = deletedAt
		rooms[room.ID] = &room
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}

	return rooms, nil
}

// SaveRooms replaces the rooms table inside a single transaction.
func (s *PostgresStore) SaveRooms(ctx context.Context, rooms map[string]*models.Room) (err error) {
	const insert = `
		INSERT INTO rooms (id, name, owner_id, history, banned_user_ids, deleted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("failed to commit rooms: %w", e)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM rooms`); err != nil {
		return fmt.Errorf("failed to clear rooms: %w", err)
	}

	ids := make([]string, 0, len(rooms))
	for id := range rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		room := rooms[id]
		history, encErr := json.Marshal(nonNil(room.History))
		if encErr != nil {
			return fmt.Errorf("room %s: %w", id, encErr)
		}
		banned, encErr := json.Marshal(nonNil(room.BannedUserIDs))
		if encErr != nil {
			return fmt.Errorf("room %s: %w", id, encErr)
		}
		if _, err = tx.Exec(ctx, insert, room.ID, room.Name, room.OwnerID, history, banned, room.DeletedAt, room.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert room %s: %w", id, err)
		}
	}

	return nil
}

func (s *PostgresStore) LoadNicknames(ctx context.Context) (map[string][]string, error) {
	const query = `SELECT address, nickname FROM local_nicknames ORDER BY address, nickname`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load nicknames: %w", err)
	}
	defer rows.Close()

	nicknames := make(map[string][]string)
	for rows.Next() {
		var address, nickname string
		if err := rows.Scan(&address, &nickname); err != nil {
			return nil, fmt.Errorf("failed to scan nickname: %w", err)
		}
		nicknames[address] = append(nicknames[address], nickname)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load nicknames: %w", err)
	}

	return nicknames, nil
}

func (s *PostgresStore) SaveNicknames(ctx context.Context, nicknames map[string][]string) (err error) {
	const insert = `INSERT INTO local_nicknames (address, nickname) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("failed to commit nicknames: %w", e)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM local_nicknames`); err != nil {
		return fmt.Errorf("failed to clear nicknames: %w", err)
	}

	addresses := make([]string, 0, len(nicknames))
	for address := range nicknames {
		addresses = append(addresses, address)
	}
	slices.Sort(addresses)

	for _, address := range addresses {
		for _, nickname := range nicknames[address] {
			if _, err = tx.Exec(ctx, insert, address, nickname); err != nil {
				return fmt.Errorf("failed to insert nickname: %w", err)
			}
		}
	}

	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
