package http

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/vchigne/sage/internal/diagnostic"
)

// Response is the intake adapter's uniform envelope: every route, success
// or failure, answers with one of these.
type Response struct {
	Code         string                 `json:"code"`
	Message      string                 `json:"message"`
	SubmissionID string                 `json:"submission_id,omitempty"`
	Status       diagnostic.Status      `json:"status,omitempty"`
	Diag         *diagnostic.Diagnostic `json:"diagnostic,omitempty"`
}

func diagnosticResponse(c *app.RequestContext, diag diagnostic.Diagnostic, submissionID string) {
	status := diag.Status()
	code := consts.StatusOK
	if status == diagnostic.StatusError {
		code = consts.StatusUnprocessableEntity
	}
	c.JSON(code, Response{
		Code:         "PROCESSED",
		Message:      "submission processed",
		SubmissionID: submissionID,
		Status:       status,
		Diag:         &diag,
	})
}

func badRequest(c *app.RequestContext, message string) {
	c.JSON(consts.StatusBadRequest, Response{Code: "BAD_REQUEST", Message: message})
}

func internalError(c *app.RequestContext, message string) {
	c.JSON(consts.StatusInternalServerError, Response{Code: "INTERNAL_ERROR", Message: message})
}
