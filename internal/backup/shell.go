package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
)

// FileFilter restricts a path chooser to file extensions.
type FileFilter struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

// JSONFilters is the chooser filter for backup files.
var JSONFilters = []FileFilter{{Name: "JSON", Extensions: []string{"json"}}}

// FileInfo describes a backup file on disk.
type FileInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Shell is the host that owns the file system and the file dialogs. The
// choosers return an empty path when the user cancels.
type Shell interface {
	ChooseSavePath(ctx context.Context, defaultName string, filters []FileFilter) (string, error)
	ChooseOpenPath(ctx context.Context, filters []FileFilter) (string, error)
	WriteFile(ctx context.Context, path string, content []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ListFiles(ctx context.Context) ([]FileInfo, error)
	DeleteFile(ctx context.Context, path string) error
	DirectBackup(ctx context.Context, content []byte, filename string) (string, error)
}

// BackupFilename names an automatic backup taken at t.
func BackupFilename(t time.Time) string {
	return fmt.Sprintf("shelfpos_backup_%s.json", t.Format("20060102_150405"))
}

// LocalShell keeps backups in one directory. Its choosers never prompt:
// saves resolve the default name inside the directory and opens pick the
// newest backup.
type LocalShell struct {
	dir string
	now func() time.Time
}

func NewLocalShell(dir string, now func() time.Time) (*LocalShell, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("backup directory required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve backup directory: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &LocalShell{dir: abs, now: now}, nil
}

func (s *LocalShell) Dir() string { return s.dir }

func (s *LocalShell) ChooseSavePath(_ context.Context, defaultName string, _ []FileFilter) (string, error) {
	name := filepath.Base(strings.TrimSpace(defaultName))
	if name == "." || name == string(filepath.Separator) {
		name = BackupFilename(s.now())
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalShell) ChooseOpenPath(ctx context.Context, _ []FileFilter) (string, error) {
	files, err := s.ListFiles(ctx)
	if err != nil || len(files) == 0 {
		return "", err
	}
	return files[0].Path, nil
}

func (s *LocalShell) WriteFile(_ context.Context, path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, "create backup directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, "write backup file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, "write backup file")
	}
	return nil
}

// ReadFile reads a backup. Relative paths resolve inside the backup
// directory; paths outside it are refused.
func (s *LocalShell) ReadFile(_ context.Context, path string) ([]byte, error) {
	target := s.resolve(path)
	if !s.contains(target) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "path is outside the backup directory").
			WithDetails(map[string]string{"path": path})
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "backup file not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, "read backup file")
	}
	return data, nil
}

// ListFiles returns the .json files in the backup directory, newest first.
func (s *LocalShell) ListFiles(_ context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []FileInfo{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, "list backup files")
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Name:       e.Name(),
			Path:       filepath.Join(s.dir, e.Name()),
			Size:       info.Size(),
			CreatedAt:  info.ModTime(),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].Name > out[j].Name
		}
		return out[i].ModifiedAt.After(out[j].ModifiedAt)
	})
	return out, nil
}

// DeleteFile removes a backup. Paths outside the backup directory are refused.
func (s *LocalShell) DeleteFile(_ context.Context, path string) error {
	target := s.resolve(path)
	if !s.contains(target) {
		return pkgerrors.New(pkgerrors.CodeValidation, "path is outside the backup directory").
			WithDetails(map[string]string{"path": path})
	}
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "backup file not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, "delete backup file")
	}
	return nil
}

// DirectBackup writes content into the backup directory without prompting.
func (s *LocalShell) DirectBackup(ctx context.Context, content []byte, filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if filename == "" || name == "." || name == string(filepath.Separator) {
		name = BackupFilename(s.now())
	}
	path := filepath.Join(s.dir, name)
	if err := s.WriteFile(ctx, path, content); err != nil {
		return "", err
	}
	return path, nil
}

func (s *LocalShell) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.dir, path)
}

func (s *LocalShell) contains(path string) bool {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
