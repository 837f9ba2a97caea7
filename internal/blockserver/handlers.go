package blockserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/logfields"
	"git.home.luguber.info/inful/mdexec/internal/registry"
	"git.home.luguber.info/inful/mdexec/internal/tables"
)

const maxBody = 16 << 20

func toBlock(h *registry.Handle) Block {
	return Block{
		ID:      h.ID(),
		Kind:    h.Kind().String(),
		Lang:    h.Lang(),
		Line:    h.Line(),
		Content: h.Content(),
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := BlocksResponse{Blocks: []Block{}}
	for h := range s.reg.Query(r.URL.Query().Get("id")) {
		resp.Blocks = append(resp.Blocks, toBlock(h))
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.reg.Get(r.PathValue("id"))
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, toBlock(h))
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	var req SetBlockRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Content == nil {
		s.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("set_block: content is required").Build())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	h, err := s.reg.Get(id)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if err := h.SetContent(*req.Content); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.logger.Debug("Block content set over socket", logfields.BlockID(id))
	s.writeJSON(w, r, http.StatusOK, toBlock(h))
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, TextResponse{Text: tables.Format(req.Text)})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !s.decode(w, r, &req) {
		return
	}
	rows := tables.Parse(req.Text)
	if rows == nil {
		rows = [][]string{}
	}
	s.writeJSON(w, r, http.StatusOK, RowsResponse{Rows: rows})
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !s.decode(w, r, &req) {
		return
	}
	rows, err := tables.ReadCSV(req.Text)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if rows == nil {
		rows = [][]string{}
	}
	s.writeJSON(w, r, http.StatusOK, RowsResponse{Rows: rows})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if !s.decode(w, r, &req) {
		return
	}

	var opts tables.Options
	for _, a := range req.Align {
		opts.Alignments = append(opts.Alignments, tables.ParseAlign(a))
	}

	if len(req.Records) > 0 {
		records := make([]map[string]string, 0, len(req.Records))
		for _, rec := range req.Records {
			m := make(map[string]string, len(rec))
			for k, v := range rec {
				m[k] = cellString(v)
			}
			records = append(records, m)
		}
		s.writeJSON(w, r, http.StatusOK, TextResponse{Text: tables.FromRecords(records, req.Fields, opts)})
		return
	}

	rows := make([][]string, 0, len(req.Rows))
	for _, row := range req.Rows {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			cells = append(cells, cellString(c))
		}
		rows = append(rows, cells)
	}
	s.writeJSON(w, r, http.StatusOK, TextResponse{Text: tables.FromRows(rows, opts)})
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// decode reads a JSON body into v, writing a 400 response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, errors.WrapError(err, errors.CategoryValidation, "invalid request body").Build())
		return false
	}
	return true
}

// writeJSON encodes into a buffer first so a failed encode never sends a partial body.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, errors.WrapError(err, errors.CategoryInternal, "failed to encode response").Build())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("Failed writing response body", logfields.Error(err))
	}
}
