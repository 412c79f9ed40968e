// Package http is the thin HTTP intake adapter (spec.md §6): a single
// multipart route that synthesizes a Submission from the request and
// hands it to the engine. It owns no domain logic of its own.
package http

import (
	"context"
	"io"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"

	"github.com/vchigne/sage/internal/engine"
	"github.com/vchigne/sage/internal/gate"
)

// Handler wires engine.Engine into Hertz routes.
type Handler struct {
	eng *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{eng: eng}
}

// CreateSubmission handles POST /v1/submissions: a multipart form with a
// "blob" file field plus sender_id/package_name/channel text fields
// (and, depending on channel, api_key/envelope_sender/source_host).
//
//	@Summary		submit a package for processing
//	@Description	runs the Gate, Reader, Validator, and (on success) the Sink
//	@Tags			submissions
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			sender_id		formData	string	true	"sender_id"
//	@Param			package_name	formData	string	true	"package name"
//	@Param			channel			formData	string	true	"submission channel"
//	@Param			blob			formData	file	true	"package archive or single file"
//	@Success		200	{object}	Response
//	@Failure		400	{object}	Response
//	@Failure		422	{object}	Response
//	@Router			/v1/submissions [post]
func (h *Handler) CreateSubmission(ctx context.Context, c *app.RequestContext) {
	senderID := c.PostForm("sender_id")
	packageName := c.PostForm("package_name")
	if packageName == "" {
		packageName = c.PostForm("package_id")
	}
	channel := c.PostForm("channel")
	if senderID == "" || packageName == "" || channel == "" {
		badRequest(c, "sender_id, package_name (or package_id), and channel are all required")
		return
	}

	fileHeader, err := c.FormFile("blob")
	if err != nil {
		badRequest(c, "blob file field is required: "+err.Error())
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		internalError(c, "opening uploaded file: "+err.Error())
		return
	}
	defer f.Close()
	blob, err := io.ReadAll(f)
	if err != nil {
		internalError(c, "reading uploaded file: "+err.Error())
		return
	}

	sub := engine.Submission{
		Submission: gate.Submission{
			SenderID:       senderID,
			PackageName:    packageName,
			Channel:        channel,
			ReceivedAt:     time.Now(),
			APIKey:         c.PostForm("api_key"),
			EnvelopeSender: c.PostForm("envelope_sender"),
			SourceHost:     c.PostForm("source_host"),
		},
		Blob:     blob,
		Filename: fileHeader.Filename,
		ID:       uuid.New().String(),
	}

	out := h.eng.Process(ctx, sub)
	diagnosticResponse(c, out.Diag, sub.ID)
}

// Ping answers a liveness probe.
//
//	@Summary	liveness probe
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	Response
//	@Router		/ping [get]
func (h *Handler) Ping(ctx context.Context, c *app.RequestContext) {
	c.JSON(200, Response{Code: "OK", Message: "pong"})
}
