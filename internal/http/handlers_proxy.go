package http

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/singleflight"

	"tablero/internal/amqp"
	"tablero/internal/core"
	"tablero/internal/log"
)

const (
	msgConfigIncomplete = "Configuración de Google Sheets incompleta"
	msgReadFailed       = "Error al leer: "
	msgMissingFields    = "Faltan campos requeridos"
	msgInvalidBody      = "Cuerpo de la solicitud inválido"
	msgInvalidData      = "Datos inválidos"
	msgAppendFailed     = "Error al agregar la transacción"

	readFlightKey = "read"
)

type readResponse struct {
	Values [][]string `json:"values"`
}

type appendResponse struct {
	Success      bool   `json:"success"`
	UpdatedRange string `json:"updatedRange"`
}

// handleSheetsRead returns the raw cell matrix, header row included.
// Concurrent reads share one upstream call.
func (s *Server) handleSheetsRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	// The shared call must not die with the first caller's request.
	ch := s.reads.DoChan(readFlightKey, func() (any, error) {
		return s.repo.FetchAll(context.WithoutCancel(ctx))
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return
	case res = <-ch:
	}

	if res.Err != nil {
		if core.IsConfigurationError(res.Err) {
			s.events.LogError(ctx, "Sheet read rejected", res.Err, log.ComponentHTTP, log.OpRead,
				log.NewFields().WithErrorType(log.ErrorTypeConfiguration))
			InternalServerError(msgConfigIncomplete).Write(w)
			return
		}
		s.events.LogError(ctx, "Sheet read failed", res.Err, log.ComponentHTTP, log.OpRead,
			log.NewFields().WithErrorType(log.ErrorTypeUpstream))
		InternalServerError(msgReadFailed + upstreamMessage(res.Err)).Write(w)
		return
	}

	values, _ := res.Val.([][]string)
	if values == nil {
		values = [][]string{}
	}
	logger.DebugContext(ctx, "Sheet read served", "rows", len(values), "shared", res.Shared)
	NewJSONResponse().Body(readResponse{Values: values}).Write(w)
}

// handleSheetsAppend validates one transaction and appends it to the sheet.
func (s *Server) handleSheetsAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	parser := NewRequestBodyParser(w, r)
	if err := parser.Parse(); err != nil {
		logger.WarnContext(ctx, "Append body rejected", log.FieldError, err)
		ErrorResponseWithDetails(http.StatusBadRequest, msgInvalidBody, errInvalidBody.Error()).Write(w)
		return
	}

	entry, err := ParseEntry(parser)
	if errors.Is(err, errMissingFields) {
		logger.WarnContext(ctx, "Append rejected, missing fields", "json", parser.IsJSON())
		BadRequestError(msgMissingFields).Write(w)
		return
	}
	if err == nil {
		err = entry.Validate()
	}
	if err != nil {
		logger.WarnContext(ctx, "Append validation failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeValidation,
			"json", parser.IsJSON())
		UnprocessableEntityError(msgInvalidData, err.Error()).Write(w)
		return
	}

	updated, err := s.repo.Append(ctx, entry)
	if err != nil {
		if core.IsConfigurationError(err) {
			s.events.LogError(ctx, "Append rejected", err, log.ComponentHTTP, log.OpAppend,
				log.NewFields().WithErrorType(log.ErrorTypeConfiguration))
			InternalServerError(msgConfigIncomplete).Write(w)
			return
		}
		s.events.LogError(ctx, "Append failed", err, log.ComponentHTTP, log.OpAppend,
			log.NewFields().
				WithErrorType(log.ErrorTypeUpstream).
				WithTransaction(string(entry.Kind), entry.Category, entry.Amount.String()))
		ErrorResponseWithDetails(http.StatusInternalServerError, msgAppendFailed, upstreamMessage(err)).Write(w)
		return
	}

	s.events.LogTransactionAppended(ctx, string(entry.Kind), entry.Category, entry.Amount.String(), updated)
	s.afterAppend(ctx, entry, updated)

	NewJSONResponse().Body(appendResponse{Success: true, UpdatedRange: updated}).Write(w)
}

// afterAppend refreshes the local snapshot and notifies other instances
// without holding up the response.
func (s *Server) afterAppend(ctx context.Context, entry core.Entry, updatedRange string) {
	logger := log.FromContext(ctx)
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.AfterAppendTimeout)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()

		if !s.refresher.Refresh(bg) {
			logger.DebugContext(bg, "Post-append refresh skipped, fetch in flight")
		}

		if s.publisher == nil {
			return
		}
		msg := amqp.NewTransactionAppendedMessage(s.config.InstanceID, updatedRange,
			string(entry.Kind), entry.Category, entry.Amount.String())
		if err := s.publisher.PublishTransactionAppended(bg, msg); err != nil {
			logger.WarnContext(bg, "Failed to publish append notification",
				log.FieldError, err,
				log.FieldUpdatedRange, updatedRange)
		}
	}()
}

// upstreamMessage strips the repository wrapper from a boundary error.
func upstreamMessage(err error) string {
	var fetchErr *core.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Err.Error()
	}
	var appendErr *core.AppendError
	if errors.As(err, &appendErr) {
		return appendErr.Err.Error()
	}
	return err.Error()
}
