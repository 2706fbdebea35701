package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/persistence"
)

const locatorPrefix = "blake3:"

var (
	// ErrObjectNotFound is returned for unknown locators.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("storage: object exceeds upload limit")
	// ErrCorrupt is returned when stored bytes no longer hash to their locator.
	ErrCorrupt = errors.New("storage: object failed integrity check")
)

// Object describes a stored blob.
type Object struct {
	Locator     string
	Size        int64
	StoredSize  int64
	Compression CompressionTag
	MimeType    string
	RefCount    int64
	CreatedAt   time.Time
}

// BlobStore stores attachment bytes and hands back locators.
type BlobStore interface {
	Put(ctx context.Context, mimeType string, r io.Reader) (Object, error)
	Open(ctx context.Context, locator string) ([]byte, Object, error)
	Stat(ctx context.Context, locator string) (Object, error)
	Release(ctx context.Context, locator string) (bool, error)
}

// FileStore is a content-addressed, deduplicating blob store on the local
// filesystem with a SQLite index holding reference counts.
type FileStore struct {
	root     string
	db       *sql.DB
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
	rename   func(oldpath, newpath string) error
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS objects (
    locator      TEXT PRIMARY KEY,
    size         INTEGER NOT NULL,
    stored_size  INTEGER NOT NULL,
    compression  INTEGER NOT NULL,
    mime_type    TEXT NOT NULL,
    refcount     INTEGER NOT NULL,
    created_at   TEXT NOT NULL
);`

// NewFileStore opens the blob directory and its index.
func NewFileStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.BlobDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	db, err := persistence.OpenSQLite(ctx, cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("open blob index: %w", err)
	}
	if _, err := db.ExecContext(ctx, indexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create blob index: %w", err)
	}
	logger.Info("blob store ready", zap.String("dir", cfg.BlobDir), zap.String("index", cfg.IndexPath))
	return &FileStore{
		root:     cfg.BlobDir,
		db:       db,
		maxBytes: cfg.MaxUploadBytes,
		logger:   logger,
		now:      time.Now,
		rename:   os.Rename,
	}, nil
}

// Close releases the index handle.
func (s *FileStore) Close() error {
	return s.db.Close()
}

// Ping checks the index is reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Put stores the bytes read from r. Identical content shares one object and
// bumps its reference count.
func (s *FileStore) Put(ctx context.Context, mimeType string, r io.Reader) (Object, error) {
	reader := r
	if s.maxBytes > 0 {
		reader = io.LimitReader(r, s.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return Object{}, fmt.Errorf("read upload: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return Object{}, ErrTooLarge
	}

	sum := blake3.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	locator := locatorPrefix + digest

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Object{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := statTx(ctx, tx, locator)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `UPDATE objects SET refcount = refcount + 1 WHERE locator = ?`, locator); err != nil {
			return Object{}, err
		}
		if err := tx.Commit(); err != nil {
			return Object{}, err
		}
		existing.RefCount++
		return existing, nil
	case !errors.Is(err, ErrObjectNotFound):
		return Object{}, err
	}

	stored, tag, err := compress(data, CompressionFor(mimeType))
	if err != nil {
		return Object{}, err
	}
	if err := s.writeFile(digest, stored); err != nil {
		return Object{}, err
	}

	obj := Object{
		Locator:     locator,
		Size:        int64(len(data)),
		StoredSize:  int64(len(stored)),
		Compression: tag,
		MimeType:    mimeType,
		RefCount:    1,
		CreatedAt:   s.now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO objects (locator, size, stored_size, compression, mime_type, refcount, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obj.Locator, obj.Size, obj.StoredSize, int(obj.Compression), obj.MimeType, obj.RefCount, obj.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return Object{}, err
	}
	if err := tx.Commit(); err != nil {
		return Object{}, err
	}
	s.logger.Debug("blob stored",
		zap.String("locator", locator),
		zap.Int64("size", obj.Size),
		zap.Int64("stored_size", obj.StoredSize),
		zap.Stringer("compression", obj.Compression))
	return obj, nil
}

// Open returns the original bytes of an object after verifying their digest.
func (s *FileStore) Open(ctx context.Context, locator string) ([]byte, Object, error) {
	obj, err := s.Stat(ctx, locator)
	if err != nil {
		return nil, Object{}, err
	}
	digest, err := digestOf(locator)
	if err != nil {
		return nil, Object{}, err
	}
	stored, err := os.ReadFile(s.pathFor(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Object{}, ErrObjectNotFound
		}
		return nil, Object{}, err
	}
	data, err := decompress(stored, obj.Compression, int(obj.Size))
	if err != nil {
		return nil, Object{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sum := blake3.Sum256(data)
	if hex.EncodeToString(sum[:]) != digest {
		return nil, Object{}, ErrCorrupt
	}
	return data, obj, nil
}

// Stat returns index metadata for a locator.
func (s *FileStore) Stat(ctx context.Context, locator string) (Object, error) {
	return statTx(ctx, s.db, locator)
}

// Release drops one reference. The file is removed once nothing references it;
// the boolean reports whether that happened. The file is moved aside before the
// index row is committed away, so a concurrent Put of the same bytes (which
// waits on the index) always writes a fresh file.
func (s *FileStore) Release(ctx context.Context, locator string) (bool, error) {
	digest, err := digestOf(locator)
	if err != nil {
		return false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	obj, err := statTx(ctx, tx, locator)
	if err != nil {
		return false, err
	}
	if obj.RefCount > 1 {
		if _, err := tx.ExecContext(ctx, `UPDATE objects SET refcount = refcount - 1 WHERE locator = ?`, locator); err != nil {
			return false, err
		}
		return false, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE locator = ?`, locator); err != nil {
		return false, err
	}

	path := s.pathFor(digest)
	tombstone := path + ".released"
	moved := true
	if err := s.rename(path, tombstone); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("move blob file aside: %w", err)
		}
		moved = false
	}
	if err := tx.Commit(); err != nil {
		if moved {
			if rerr := s.rename(tombstone, path); rerr != nil {
				s.logger.Error("restore blob file", zap.String("locator", locator), zap.Error(rerr))
			}
		}
		return false, err
	}
	if moved {
		if err := os.Remove(tombstone); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove blob file", zap.String("locator", locator), zap.Error(err))
		}
	}
	return true, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func statTx(ctx context.Context, q queryRower, locator string) (Object, error) {
	var (
		obj         Object
		compression int
		createdAt   string
	)
	err := q.QueryRowContext(ctx,
		`SELECT locator, size, stored_size, compression, mime_type, refcount, created_at FROM objects WHERE locator = ?`,
		locator,
	).Scan(&obj.Locator, &obj.Size, &obj.StoredSize, &compression, &obj.MimeType, &obj.RefCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, ErrObjectNotFound
	}
	if err != nil {
		return Object{}, err
	}
	obj.Compression = CompressionTag(compression)
	obj.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return obj, nil
}

func (s *FileStore) pathFor(digest string) string {
	return filepath.Join(s.root, digest[:2], digest[2:4], digest)
}

func (s *FileStore) writeFile(digest string, data []byte) error {
	path := s.pathFor(digest)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func digestOf(locator string) (string, error) {
	digest, ok := strings.CutPrefix(locator, locatorPrefix)
	if !ok || len(digest) != 64 {
		return "", fmt.Errorf("%w: malformed locator %q", ErrObjectNotFound, locator)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%w: malformed locator %q", ErrObjectNotFound, locator)
	}
	return digest, nil
}
