// Package world persists chunks in a single SQLite file. Chunk cells are stored as
// zstd-compressed little-endian uint16 block ids in chunk storage order.
package world

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/memmaker/sandvox/engine/util"
	"github.com/memmaker/sandvox/engine/voxel"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var (
	ErrNoMetadata    = errors.New("world file has no metadata")
	ErrShapeMismatch = errors.New("chunk does not match the world's chunk shape")
)

type Metadata struct {
	Seed        int64
	Shape       string
	Side        int
	Created     time.Time
	LastWritten time.Time
}

type File struct {
	mu   sync.Mutex
	path string
	db   *sql.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	meta Metadata
}

func open(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("empty world path")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open world %s", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to initialize world %s", path)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &File{path: path, db: db, enc: enc, dec: dec}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			cells INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (x, y, z)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Create makes a new world file, replacing any metadata already stored at path.
func Create(path string, seed int64, shape string, side int) (*File, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	f.meta = Metadata{Seed: seed, Shape: shape, Side: side, Created: now, LastWritten: now}
	if err := f.writeMeta(context.Background()); err != nil {
		_ = f.Close()
		return nil, err
	}
	util.LogWorldInfo(fmt.Sprintf("[World] Created %s with seed %d", path, seed))
	return f, nil
}

// Open opens an existing world file. A file without metadata fails with ErrNoMetadata.
func Open(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "failed to open world %s", path)
	}
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := f.readMeta(context.Background()); err != nil {
		_ = f.Close()
		return nil, err
	}
	util.LogWorldInfo(fmt.Sprintf("[World] Opened %s (seed %d, last written %s)", path, f.meta.Seed, f.meta.LastWritten.Format(time.RFC3339)))
	return f, nil
}

// OpenOrCreate opens path if it holds a world and creates one otherwise.
func OpenOrCreate(path string, seed int64, shape string, side int) (*File, error) {
	f, err := Open(path)
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(errors.Cause(err)) && !errors.Is(err, ErrNoMetadata) {
		return nil, err
	}
	return Create(path, seed, shape, side)
}

func (f *File) writeMeta(ctx context.Context) error {
	values := map[string]string{
		"seed":         strconv.FormatInt(f.meta.Seed, 10),
		"shape":        f.meta.Shape,
		"side":         strconv.Itoa(f.meta.Side),
		"created":      f.meta.Created.Format(time.RFC3339),
		"last_written": f.meta.LastWritten.Format(time.RFC3339),
	}
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for key, value := range values {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "failed to write metadata %s", key)
		}
	}
	return tx.Commit()
}

func (f *File) readMeta(ctx context.Context) error {
	rows, err := f.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return err
	}
	defer rows.Close()
	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if _, ok := values["seed"]; !ok {
		return errors.Wrapf(ErrNoMetadata, "%s", f.path)
	}

	var meta Metadata
	if meta.Seed, err = strconv.ParseInt(values["seed"], 10, 64); err != nil {
		return errors.Wrap(err, "invalid seed")
	}
	meta.Shape = values["shape"]
	if meta.Side, err = strconv.Atoi(values["side"]); err != nil {
		return errors.Wrap(err, "invalid chunk side")
	}
	if meta.Created, err = time.Parse(time.RFC3339, values["created"]); err != nil {
		return errors.Wrap(err, "invalid creation time")
	}
	if meta.LastWritten, err = time.Parse(time.RFC3339, values["last_written"]); err != nil {
		return errors.Wrap(err, "invalid last written time")
	}
	f.meta = meta
	return nil
}

func (f *File) Metadata() Metadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta
}

func (f *File) Seed() int64 {
	return f.Metadata().Seed
}

func encodeIDs(ids []uint16) []byte {
	raw := make([]byte, 2*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint16(raw[2*i:], id)
	}
	return raw
}

func decodeIDs(raw []byte) []uint16 {
	ids := make([]uint16, len(raw)/2)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return ids
}

// SaveChunk stores the block ids of one chunk, replacing an earlier version.
func (f *File) SaveChunk(ctx context.Context, pos voxel.Int3, ids []uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob := f.enc.EncodeAll(encodeIDs(ids), nil)
	if _, err := f.db.ExecContext(ctx, `INSERT INTO chunks(x, y, z, cells, data) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(x, y, z) DO UPDATE SET cells = excluded.cells, data = excluded.data`,
		pos.X, pos.Y, pos.Z, len(ids), blob); err != nil {
		return errors.Wrapf(err, "failed to save chunk %d,%d,%d", pos.X, pos.Y, pos.Z)
	}
	f.meta.LastWritten = time.Now().UTC().Truncate(time.Second)
	if _, err := f.db.ExecContext(ctx, `UPDATE meta SET value = ? WHERE key = 'last_written'`, f.meta.LastWritten.Format(time.RFC3339)); err != nil {
		return err
	}
	util.LogWorldDebug(fmt.Sprintf("[World] Saved chunk %d,%d,%d (%d cells, %d bytes)", pos.X, pos.Y, pos.Z, len(ids), len(blob)))
	return nil
}

// LoadChunk returns the stored block ids. ok is false when the chunk was never saved.
func (f *File) LoadChunk(ctx context.Context, pos voxel.Int3) (ids []uint16, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cells int
	var blob []byte
	err = f.db.QueryRowContext(ctx, `SELECT cells, data FROM chunks WHERE x = ? AND y = ? AND z = ?`,
		pos.X, pos.Y, pos.Z).Scan(&cells, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to load chunk %d,%d,%d", pos.X, pos.Y, pos.Z)
	}
	raw, err := f.dec.DecodeAll(blob, make([]byte, 0, 2*cells))
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to decompress chunk %d,%d,%d", pos.X, pos.Y, pos.Z)
	}
	if len(raw) != 2*cells {
		return nil, false, errors.Errorf("chunk %d,%d,%d: expected %d cells, got %d bytes", pos.X, pos.Y, pos.Z, cells, len(raw))
	}
	return decodeIDs(raw), true, nil
}

func (f *File) DeleteChunk(ctx context.Context, pos voxel.Int3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.db.ExecContext(ctx, `DELETE FROM chunks WHERE x = ? AND y = ? AND z = ?`, pos.X, pos.Y, pos.Z)
	return err
}

// ChunkPositions lists stored chunks ordered by x, y, z.
func (f *File) ChunkPositions(ctx context.Context) ([]voxel.Int3, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows, err := f.db.QueryContext(ctx, `SELECT x, y, z FROM chunks ORDER BY x, y, z`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []voxel.Int3
	for rows.Next() {
		var pos voxel.Int3
		if err := rows.Scan(&pos.X, &pos.Y, &pos.Z); err != nil {
			return nil, err
		}
		result = append(result, pos)
	}
	return result, rows.Err()
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dec.Close()
	if err := f.enc.Close(); err != nil {
		_ = f.db.Close()
		return err
	}
	return f.db.Close()
}

// SaveChunkData stores a chunk through a voxel-to-id mapping.
func SaveChunkData[V any](ctx context.Context, f *File, pos voxel.Int3, chunk *voxel.Chunk[V], toID func(V) uint16) error {
	data := chunk.Data()
	ids := make([]uint16, len(data))
	for i, v := range data {
		ids[i] = toID(v)
	}
	return f.SaveChunk(ctx, pos, ids)
}

// LoadChunkData fills chunk from the stored ids. The chunk must have the stored cell count.
func LoadChunkData[V any](ctx context.Context, f *File, pos voxel.Int3, chunk *voxel.Chunk[V], fromID func(uint16) V) (bool, error) {
	ids, ok, err := f.LoadChunk(ctx, pos)
	if err != nil || !ok {
		return false, err
	}
	data := chunk.Data()
	if len(ids) != len(data) {
		return false, errors.Wrapf(ErrShapeMismatch, "chunk %d,%d,%d has %d cells, stored %d", pos.X, pos.Y, pos.Z, len(data), len(ids))
	}
	for i, id := range ids {
		data[i] = fromID(id)
	}
	return true, nil
}
