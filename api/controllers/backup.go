package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/shelfpos/api/responses"
	"github.com/angelmondragon/shelfpos/api/validators"
	"github.com/angelmondragon/shelfpos/internal/backup"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

type backupPathResponse struct {
	Path string `json:"path"`
}

type deleteBackupResponse struct {
	Deleted string `json:"deleted"`
	// AutoBackup is set when the deleted file was the last one and a fresh
	// automatic backup replaced it.
	AutoBackup string `json:"autoBackup,omitempty"`
}

func ListBackups(shell backup.Shell, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := shell.ListFiles(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Storage(err, "list backup files"))
			return
		}
		responses.WriteSuccess(w, files)
	}
}

func ExportBackup(p *backup.Pipeline, shell backup.Shell, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := p.ExportData(r.Context(), shell)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, backupPathResponse{Path: path})
	}
}

func AutoBackup(p *backup.Pipeline, shell backup.Shell, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := p.AutoExportData(r.Context(), shell)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, backupPathResponse{Path: path})
	}
}

// DownloadBackup streams a snapshot as an attachment without touching the
// backup directory.
func DownloadBackup(p *backup.Pipeline, filename func() string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := p.ExportTo(r.Context(), &buf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename()))
		_, _ = w.Write(buf.Bytes())
	}
}

// ImportBackup restores from the request body. The body is either a
// snapshot, {"path": "..."} naming a file in the backup directory, or empty
// for the newest backup.
func ImportBackup(p *backup.Pipeline, shell backup.Shell, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := validators.ReadBody(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var report *backup.ImportReport
		switch path, isRef := fileReference(body); {
		case len(bytes.TrimSpace(body)) == 0:
			report, err = p.ImportData(r.Context(), shell)
		case isRef:
			report, err = p.ImportFile(r.Context(), shell, path)
		default:
			report, err = p.ImportBytes(r.Context(), body)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func DeleteBackup(p *backup.Pipeline, shell backup.Shell, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSpace(r.URL.Query().Get("path"))
		if path == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "path is required"))
			return
		}
		replacement, err := p.DeleteBackup(r.Context(), shell, path)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deleteBackupResponse{Deleted: path, AutoBackup: replacement})
	}
}

// fileReference reports whether body is {"path": "..."} and nothing else.
func fileReference(body []byte) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) != 1 {
		return "", false
	}
	raw, ok := fields["path"]
	if !ok {
		return "", false
	}
	var path string
	if err := json.Unmarshal(raw, &path); err != nil || strings.TrimSpace(path) == "" {
		return "", false
	}
	return path, true
}
