// Package api exposes the write path over HTTP: streamed updates per
// table, admin purge, and table discovery.
package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"deltastore/pkg/logger"
	"deltastore/pkg/sor"
	"deltastore/pkg/table"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Registry *table.Registry
	Writer   *sor.Writer
}

// Router builds the /v1 API router.
func Router(deps Deps) *mux.Router {
	r := mux.NewRouter()
	h := &handlers{deps: deps}
	r.HandleFunc("/v1/tables", h.listTables).Methods(http.MethodGet)
	r.HandleFunc("/v1/tables/{table}/updates", h.postUpdates).Methods(http.MethodPost)
	r.HandleFunc("/v1/admin/tables/{table}/purge", h.purgeTable).Methods(http.MethodPost)
	return r
}

type handlers struct {
	deps Deps
}

func (h *handlers) listTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tables": h.deps.Registry.Names()})
}

// auditListener counts flushes and records them for the audit trail.
type auditListener struct {
	table   string
	updated int
	flushes int
}

func (l *auditListener) BeforeWrite(updates []sor.RecordUpdate) error { return nil }

func (l *auditListener) AfterWrite(updates []sor.RecordUpdate) error {
	l.updated += len(updates)
	l.flushes++
	logger.Debug("audit_batch_written", "table", l.table, "count", len(updates))
	return nil
}

func (h *handlers) postUpdates(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	tbl, err := h.deps.Registry.Get(name)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}

	seq, decErr := decodeUpdates(r.Body, tbl)
	listener := &auditListener{table: name}
	err = h.deps.Writer.UpdateAll(seq, listener)

	if *decErr != nil {
		writeErr(w, http.StatusBadRequest, (*decErr).Error())
		return
	}
	if err != nil {
		var sizeErr *sor.DeltaSizeLimitError
		var frameErr *sor.FrameSizeError
		switch {
		case errors.As(err, &sizeErr):
			writeErr(w, http.StatusRequestEntityTooLarge, sizeErr.Error())
		case errors.As(err, &frameErr):
			writeErr(w, http.StatusRequestEntityTooLarge, frameErr.Error())
		default:
			writeErr(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": listener.updated, "flushes": listener.flushes})
}

func (h *handlers) purgeTable(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	tbl, err := h.deps.Registry.Get(name)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	if err := h.deps.Writer.PurgeTable(tbl); err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	logger.Info("table_purged", "table", name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged", "table": name})
}
