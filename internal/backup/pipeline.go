// Package backup exports the store to a JSON snapshot and restores it.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/kv"
	"github.com/angelmondragon/shelfpos/internal/orders"
	"github.com/angelmondragon/shelfpos/internal/products"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

// ErrCancelled is returned when the user dismisses a path chooser.
var ErrCancelled = pkgerrors.New(pkgerrors.CodeCancelled, "operation cancelled by user")

type categoryService interface {
	GetAll(ctx context.Context) ([]categories.Category, error)
	Recover(ctx context.Context, category categories.Category) error
	InvalidateCache()
}

type productService interface {
	GetAll(ctx context.Context) ([]products.Product, error)
	Recover(ctx context.Context, product products.Product) error
}

type orderService interface {
	GetAllOrders(ctx context.Context) ([]orders.Order, error)
	GetAllOrderItems(ctx context.Context) ([]orders.OrderItem, error)
	RecoverOrder(ctx context.Context, order orders.Order) error
	RecoverOrderItem(ctx context.Context, item orders.OrderItem) error
}

// Deps are the services the pipeline reads from and restores through.
type Deps struct {
	Store      *kv.Store
	Categories categoryService
	Products   productService
	Orders     orderService
}

type Options struct {
	Now    func() time.Time
	Logger *logger.Logger
}

// Pipeline runs exports and imports one at a time.
type Pipeline struct {
	mu   sync.Mutex
	deps Deps
	now  func() time.Time
	logg *logger.Logger
}

func NewPipeline(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Store == nil || deps.Categories == nil || deps.Products == nil || deps.Orders == nil {
		return nil, fmt.Errorf("backup: store and entity services required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Pipeline{deps: deps, now: opts.Now, logg: opts.Logger}, nil
}

// Snapshot reads every entity type into a snapshot.
func (p *Pipeline) Snapshot(ctx context.Context) (*Snapshot, error) {
	cats, err := p.deps.Categories.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	prods, err := p.deps.Products.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	ords, err := p.deps.Orders.GetAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	items, err := p.deps.Orders.GetAllOrderItems(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Version:    FormatVersion,
		ExportTime: p.now().Format(ExportTimeLayout),
		Categories: nonNil(cats),
		Products:   nonNil(prods),
		Orders:     nonNil(ords),
		OrderItems: nonNil(items),
	}, nil
}

// Export returns the snapshot as indented JSON.
func (p *Pipeline) Export(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.export(ctx)
}

func (p *Pipeline) export(ctx context.Context) ([]byte, error) {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode backup")
	}
	return data, nil
}

// ExportTo writes the snapshot to w.
func (p *Pipeline) ExportTo(ctx context.Context, w io.Writer) error {
	data, err := p.Export(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, "write backup")
	}
	return nil
}

// ExportData asks the shell where to save and writes the snapshot there.
func (p *Pipeline) ExportData(ctx context.Context, shell Shell) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path, err := shell.ChooseSavePath(ctx, BackupFilename(p.now()), JSONFilters)
	if err != nil {
		return "", pkgerrors.Storage(err, "choose backup path")
	}
	if path == "" {
		return "", ErrCancelled
	}
	data, err := p.export(ctx)
	if err != nil {
		return "", err
	}
	if err := shell.WriteFile(ctx, path, data); err != nil {
		return "", pkgerrors.Storage(err, "write backup file")
	}
	p.logg.Info(p.logg.WithField(ctx, "path", path), "backup exported")
	return path, nil
}

// AutoExportData writes the snapshot into the shell's backup directory.
func (p *Pipeline) AutoExportData(ctx context.Context, shell Shell) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoExport(ctx, shell)
}

func (p *Pipeline) autoExport(ctx context.Context, shell Shell) (string, error) {
	data, err := p.export(ctx)
	if err != nil {
		return "", err
	}
	path, err := shell.DirectBackup(ctx, data, "")
	if err != nil {
		return "", pkgerrors.Storage(err, "write automatic backup")
	}
	p.logg.Info(p.logg.WithField(ctx, "path", path), "automatic backup written")
	return path, nil
}

// DeleteBackup removes a backup file. Removing the last one takes a fresh
// automatic backup, whose path is returned.
func (p *Pipeline) DeleteBackup(ctx context.Context, shell Shell, path string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := shell.DeleteFile(ctx, path); err != nil {
		return "", pkgerrors.Storage(err, "delete backup file")
	}
	remaining, err := shell.ListFiles(ctx)
	if err != nil {
		return "", pkgerrors.Storage(err, "list backup files")
	}
	if len(remaining) > 0 {
		return "", nil
	}
	return p.autoExport(ctx, shell)
}

// ImportData asks the shell for a file and imports it.
func (p *Pipeline) ImportData(ctx context.Context, shell Shell) (*ImportReport, error) {
	path, err := shell.ChooseOpenPath(ctx, JSONFilters)
	if err != nil {
		return nil, pkgerrors.Storage(err, "choose backup file")
	}
	if path == "" {
		return nil, ErrCancelled
	}
	return p.ImportFile(ctx, shell, path)
}

// ImportFile imports the backup at path.
func (p *Pipeline) ImportFile(ctx context.Context, shell Shell, path string) (*ImportReport, error) {
	data, err := shell.ReadFile(ctx, path)
	if err != nil {
		return nil, pkgerrors.Storage(err, "read backup file")
	}
	return p.ImportBytes(ctx, data)
}

// ImportFrom reads a snapshot from r and imports it.
func (p *Pipeline) ImportFrom(ctx context.Context, r io.Reader) (*ImportReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, "read backup")
	}
	return p.ImportBytes(ctx, data)
}

// ImportBytes replaces the store with the snapshot in data. The file shape
// is checked before anything is cleared. Records that fail to decode or
// restore are skipped and listed in the report.
func (p *Pipeline) ImportBytes(ctx context.Context, data []byte) (*ImportReport, error) {
	snap, err := parseSnapshot(data)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Version != FormatVersion {
		p.logg.Warn(p.logg.WithField(ctx, "version", snap.Version), "importing backup with unexpected version")
	}
	clearErr := p.deps.Store.ClearAll(ctx)
	p.deps.Categories.InvalidateCache()
	if clearErr != nil {
		return nil, pkgerrors.Storage(clearErr, "clear store before import")
	}

	report := newImportReport(snap.Version, snap.ExportTime)
	restore(ctx, p, kv.Categories, snap.Categories, &report.Categories, func(c categories.Category) (string, error) {
		return c.ID, p.deps.Categories.Recover(ctx, c)
	})
	restore(ctx, p, kv.Products, snap.Products, &report.Products, func(pr products.Product) (string, error) {
		return pr.ID, p.deps.Products.Recover(ctx, pr)
	})
	restore(ctx, p, kv.Orders, snap.Orders, &report.Orders, func(o orders.Order) (string, error) {
		return o.ID, p.deps.Orders.RecoverOrder(ctx, o)
	})
	restore(ctx, p, kv.OrderItems, snap.OrderItems, &report.OrderItems, func(it orders.OrderItem) (string, error) {
		return it.ID, p.deps.Orders.RecoverOrderItem(ctx, it)
	})

	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"imported": report.Imported(),
		"failed":   report.FailedCount(),
	}), "backup imported")
	return report, nil
}

// restore decodes and recovers each record, continuing past failures.
func restore[T any](ctx context.Context, p *Pipeline, name kv.Name, records []json.RawMessage, out *EntityReport, apply func(T) (string, error)) {
	for i, raw := range records {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			p.skip(ctx, name, i, recordID(raw), raw, pkgerrors.Wrap(pkgerrors.CodeInvalidFormat, err, "decode record"), out)
			continue
		}
		id, err := apply(v)
		if err != nil {
			p.skip(ctx, name, i, id, raw, err, out)
			continue
		}
		out.ok(id)
	}
}

func (p *Pipeline) skip(ctx context.Context, name kv.Name, index int, id string, raw json.RawMessage, err error, out *EntityReport) {
	out.fail(index, id, raw, err)
	p.logg.Warn(p.logg.WithFields(p.logg.WithCollection(ctx, string(name)), map[string]any{
		"index":  index,
		"id":     id,
		"reason": err.Error(),
	}), "skipped record during import")
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
