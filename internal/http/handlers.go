package http

import (
	"net/http"
	"strings"

	"ledgerdash/internal/amqp"
	"ledgerdash/internal/core"
	"ledgerdash/internal/importer"
	"ledgerdash/internal/log"
	"ledgerdash/internal/services"
)

func (s *Server) handleListEntries(book core.Book) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := ParseRange(r.URL.Query(), s.loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		entries, err := s.reports.Entries(r.Context(), book, rng)
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Data(struct {
			Book    core.Book   `json:"book"`
			Count   int         `json:"count"`
			Entries []entryView `json:"entries"`
		}{book, len(entries), newEntryViews(entries)}).Write(w)
	}
}

func (s *Server) handleCreateEntries(book core.Book) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := DecodeEntries(r, s.loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ids, err := s.ledger.AddEntries(r.Context(), book, entries...)
		if err != nil {
			writeError(w, r, err)
			return
		}
		log.FromContext(r.Context()).InfoContext(r.Context(), "Entries created",
			log.FieldBook, book, log.FieldEntries, len(ids))
		NewJSONResponse().Status(http.StatusCreated).Data(struct {
			IDs []string `json:"ids"`
		}{ids}).Write(w)
	}
}

func (s *Server) handleGetEntry(book core.Book) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.PathValue("id"))
		if id == "" {
			BadRequestError("missing entry id").Write(w)
			return
		}
		e, err := s.ledger.GetEntry(r.Context(), book, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Data(newEntryViews([]core.LedgerEntry{e})[0]).Write(w)
	}
}

func (s *Server) handleUpdateEntry(book core.Book) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.PathValue("id"))
		if id == "" {
			BadRequestError("missing entry id").Write(w)
			return
		}
		e, err := DecodeEntry(r, s.loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		e.ID = id
		stored, err := s.ledger.UpdateEntry(r.Context(), book, e)
		if err != nil {
			writeError(w, r, err)
			return
		}
		log.FromContext(r.Context()).InfoContext(r.Context(), "Entry updated",
			log.FieldBook, book, "id", id)
		NewJSONResponse().Data(newEntryViews([]core.LedgerEntry{stored})[0]).Write(w)
	}
}

func (s *Server) handleDeleteEntry(book core.Book) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.PathValue("id"))
		if id == "" {
			BadRequestError("missing entry id").Write(w)
			return
		}
		if err := s.ledger.DeleteEntry(r.Context(), book, id); err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
	}
}

func (s *Server) handleListIndexValues(w http.ResponseWriter, r *http.Request) {
	values, err := s.ledger.ListIndexValues(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(struct {
		Values []indexValueView `json:"values"`
	}{newIndexValueViews(values)}).Write(w)
}

func (s *Server) handleUpsertIndexValue(w http.ResponseWriter, r *http.Request) {
	v, err := DecodeIndexValue(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.UpsertIndexValue(r.Context(), v); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newIndexValueViews([]core.IndexValue{v})[0]).Write(w)
}

func (s *Server) handleDeleteIndexValue(w http.ResponseWriter, r *http.Request) {
	year, month, err := ParseYearMonth(r.PathValue("year"), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteIndexValue(r.Context(), year, month); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	book, err := core.ParseBook(r.URL.Query().Get("book"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	kinds, err := s.reports.Categories(r.Context(), book)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newCategoriesView(book, kinds)).Write(w)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseRange(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ins, err := s.reports.Insights(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newInsightsView(ins)).Write(w)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := ParseRange(q, s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kinds, err := ParseKinds(q.Get("kinds"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	book, err := core.ParseBook(q.Get("book"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := s.reports.Report(r.Context(), book, rng, kinds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newReportView(rep)).Write(w)
}

func (s *Server) handleVariance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := ParseRange(q, s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	threshold, err := ParseThreshold(q.Get("threshold"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.reports.Variance(r.Context(), rng, threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newVarianceView(res)).Write(w)
}

func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseRange(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.reports.ChartData(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newChartView(data)).Write(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("target"))
	if target == "" {
		target = string(core.Actual)
	}
	if target != services.TargetIndex {
		if _, err := core.ParseBook(target); err != nil {
			writeError(w, r, err)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			writeError(w, r, err)
			return
		}
		BadRequestError("expected a multipart form with a file field").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file field").Write(w)
		return
	}
	defer file.Close()

	var opts []importer.Option
	if raw := strings.TrimSpace(r.FormValue("default_date")); raw != "" {
		d, err := core.ParseDate(raw, s.loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		opts = append(opts, importer.WithDefaultDate(d))
	}

	res, err := s.ledger.Import(r.Context(), target, header.Filename, file, opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newImportView(res)).Write(w)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		ServiceUnavailableError("sync is not available: AMQP is not configured").Write(w)
		return
	}
	req, err := DecodeSyncRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Target == "" {
		req.Target = amqp.TargetAll
	}
	if err := amqp.NewSyncRequestMessage(req.Target).Validate(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.sync.PublishSyncRequest(r.Context(), req.Target); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to publish sync request",
			log.FieldTarget, req.Target, log.FieldError, err)
		ServiceUnavailableError("sync request could not be queued").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).Data(struct {
		Target string `json:"target"`
		Status string `json:"status"`
	}{req.Target, "queued"}).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
