package http

import (
	"net/http"
)

// handleListEntries lists transactions newest first, optionally filtered by
// cycle, category, kind and a description search term.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	f, err := parseEntryFilter(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if _, err := s.svc.Profiles.Get(r.Context(), userID); err != nil {
		FromError(r, err, "failed to list transactions").Write(w)
		return
	}

	entries, err := s.svc.Entries.List(r.Context(), userID, f)
	if err != nil {
		FromError(r, err, "failed to list transactions").Write(w)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryResponse(e))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	userID, entryID, ok := entryPath(w, r)
	if !ok {
		return
	}
	e, err := s.svc.Entries.Get(r.Context(), userID, entryID)
	if err != nil {
		FromError(r, err, "failed to load transaction").Write(w)
		return
	}
	NewJSONResponse().Body(newEntryResponse(e)).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	in, err := entryInput(req)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.svc.Entries.Create(r.Context(), userID, in)
	if err != nil {
		FromError(r, err, "failed to create transaction").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newEntryResponse(created)).Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, entryID, ok := entryPath(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	in, err := entryInput(req)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	updated, err := s.svc.Entries.Update(r.Context(), userID, entryID, in)
	if err != nil {
		FromError(r, err, "failed to update transaction").Write(w)
		return
	}
	NewJSONResponse().Body(newEntryResponse(updated)).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, entryID, ok := entryPath(w, r)
	if !ok {
		return
	}
	if err := s.svc.Entries.Delete(r.Context(), userID, entryID); err != nil {
		FromError(r, err, "failed to delete transaction").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// entryPath reads {id} and {txid}, answering 400 when either is malformed.
func entryPath(w http.ResponseWriter, r *http.Request) (userID, entryID int64, ok bool) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, 0, false
	}
	entryID, err = pathID(r, "txid")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, 0, false
	}
	return userID, entryID, true
}
