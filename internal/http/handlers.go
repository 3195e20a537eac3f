package http

import (
	"errors"
	"net/http"
	"strconv"

	"creditledger/internal/core"
	applog "creditledger/internal/log"
)

// writeServiceError maps service failures onto the error envelope. Anything
// unexpected is logged with detail and answered with a generic 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationErrorResponse(verr.Fields).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("Credit not found").Write(w)
	case errors.Is(err, core.ErrUnauthorized):
		UnauthorizedError("Not authenticated").Write(w)
	case errors.Is(err, errInvalidMonth):
		BadRequestError("Invalid year or month").Write(w)
	case errors.Is(err, core.ErrInvalidArgument):
		BadRequestError("Invalid argument").Write(w)
	default:
		s.events.LogError(r.Context(), "Credit operation failed", err, applog.ComponentCredit, op)
		InternalServerError().Write(w)
	}
}

func (s *Server) writeCredits(w http.ResponseWriter, credits []core.Credit) {
	if credits == nil {
		credits = []core.Credit{}
	}
	NewJSONResponse().Body(credits).Write(w)
}

// handleListCredits serves GET /credits, narrowed to one month when year and month are given.
func (s *Server) handleListCredits(w http.ResponseWriter, r *http.Request) {
	params, present, err := ParseMonthQuery(r.URL.Query())
	if err != nil {
		BadRequestError("Invalid year or month").Write(w)
		return
	}

	var credits []core.Credit
	if present {
		credits, err = s.credits.ListByMonth(r.Context(), params.Year, params.Month)
	} else {
		credits, err = s.credits.List(r.Context())
	}
	if err != nil {
		s.writeServiceError(w, r, applog.OpList, err)
		return
	}
	s.writeCredits(w, credits)
}

func (s *Server) handleListMonth(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonth(r.PathValue("year"), r.PathValue("month"))
	if err != nil {
		BadRequestError("Invalid year or month").Write(w)
		return
	}
	credits, err := s.credits.ListByMonth(r.Context(), params.Year, params.Month)
	if err != nil {
		s.writeServiceError(w, r, applog.OpList, err)
		return
	}
	s.writeCredits(w, credits)
}

func (s *Server) handleGetCredit(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseID(r.PathValue("id"))
	if err != nil {
		BadRequestError("Invalid credit ID").Write(w)
		return
	}
	credit, err := s.credits.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(credit).Write(w)
}

func (s *Server) handleCreateCredit(w http.ResponseWriter, r *http.Request) {
	raw, err := ParseJSONObject(w, r)
	if err != nil {
		bodyErrorResponse(err).Write(w)
		return
	}
	in, err := core.ValidateInput(raw)
	if err != nil {
		s.writeServiceError(w, r, applog.OpCreate, err)
		return
	}

	credit, err := s.credits.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	s.events.LogCreditChange(r.Context(), applog.OpCreate, credit.ID, credit.Date, credit.Amount.Cents)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/credits/"+strconv.FormatInt(credit.ID, 10)).
		Body(credit).
		Write(w)
}

func (s *Server) handleUpdateCredit(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseID(r.PathValue("id"))
	if err != nil {
		BadRequestError("Invalid credit ID").Write(w)
		return
	}
	raw, err := ParseJSONObject(w, r)
	if err != nil {
		bodyErrorResponse(err).Write(w)
		return
	}
	patch, err := core.ValidatePatch(raw)
	if err != nil {
		s.writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	if patch.IsEmpty() {
		ValidationErrorResponse([]core.FieldError{{
			Field:   "body",
			Message: "At least one of date, description or amount is required",
		}}).Write(w)
		return
	}

	credit, err := s.credits.Update(r.Context(), id, patch)
	if err != nil {
		s.writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	s.events.LogCreditChange(r.Context(), applog.OpUpdate, credit.ID, credit.Date, credit.Amount.Cents)
	NewJSONResponse().Body(credit).Write(w)
}

func (s *Server) handleDeleteCredit(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseID(r.PathValue("id"))
	if err != nil {
		BadRequestError("Invalid credit ID").Write(w)
		return
	}
	deleted, err := s.credits.Delete(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, applog.OpDelete, err)
		return
	}
	if !deleted {
		NotFoundError("Credit not found").Write(w)
		return
	}
	s.events.LogCreditChange(r.Context(), applog.OpDelete, id, "", 0)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleSummary serves GET /credits/summary?year=&month=.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	params, present, err := ParseMonthQuery(r.URL.Query())
	if err != nil || !present {
		BadRequestError("Invalid year or month").Write(w)
		return
	}
	summary, err := s.credits.Summary(r.Context(), params.Year, params.Month)
	if err != nil {
		s.writeServiceError(w, r, applog.OpSummary, err)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

// handleCompare serves GET /credits/compare?year=&month=&storeTotal=.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params, present, err := ParseMonthQuery(query)
	if err != nil || !present {
		BadRequestError("Invalid year or month").Write(w)
		return
	}
	cents, err := core.ParseNonNegativeCents(query.Get("storeTotal"))
	if err != nil {
		ValidationErrorResponse([]core.FieldError{{
			Field:   "storeTotal",
			Message: "Store total must be a non-negative number",
		}}).Write(w)
		return
	}
	cmp, err := s.credits.Compare(r.Context(), params.Year, params.Month, core.Money{Cents: cents})
	if err != nil {
		s.writeServiceError(w, r, applog.OpCompare, err)
		return
	}
	NewJSONResponse().Body(cmp).Write(w)
}
