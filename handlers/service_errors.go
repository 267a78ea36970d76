package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/services"
	"github.com/pandoralabs/pandora-api/utils"
)

// writeServiceError translates a service error into the fixed wire shapes.
// Only the safe client message leaves the process; everything else is logged.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch services.GetErrorType(err) {
	case services.ErrorTypeBadRequest:
		_ = utils.WriteBadRequest(w, services.ClientMessage(err))
	case services.ErrorTypeUnauthenticated:
		_ = utils.WriteUnauthorized(w, services.ClientMessage(err))
	case services.ErrorTypeForbidden:
		_ = utils.WriteForbidden(w, nil)
	case services.ErrorTypeNotFound:
		_ = utils.WriteNotFound(w, services.ClientMessage(err))
	default:
		logger.Error("request failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w)
	}
}
