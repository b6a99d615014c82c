package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodapp-backend/api/middleware"
	"github.com/angelmondragon/foodapp-backend/api/responses"
	"github.com/angelmondragon/foodapp-backend/api/validators"
	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
)

// reply collects what an endpoint wants written back.
type reply struct {
	ctx    context.Context
	logg   *logger.Logger
	status int
	data   any
}

func (rp *reply) ok(data any) error {
	rp.status, rp.data = http.StatusOK, data
	return nil
}

func (rp *reply) created(data any) error {
	rp.status, rp.data = http.StatusCreated, data
	return nil
}

// forOrder tags the rest of the request's logs with the order ID.
func (rp *reply) forOrder(id uuid.UUID) {
	if rp.logg != nil {
		rp.ctx = rp.logg.WithOrderID(rp.ctx, id.String())
	}
}

type endpoint func(rp *reply, r *http.Request) error

// handle adapts fn to net/http. A missing service answers 500 on every call.
func handle(logg *logger.Logger, service string, available bool, fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", service))
			return
		}
		rp := &reply{ctx: r.Context(), logg: logg, status: http.StatusOK}
		if err := fn(rp, r); err != nil {
			responses.WriteError(rp.ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, rp.status, rp.data)
	}
}

func requireUser(r *http.Request) (uuid.UUID, error) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return userID, nil
}

// userAndPath reads the caller plus one UUID path parameter.
func userAndPath(r *http.Request, param string) (uuid.UUID, uuid.UUID, error) {
	userID, err := requireUser(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := validators.ParsePathUUID(r, param)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, id, nil
}
