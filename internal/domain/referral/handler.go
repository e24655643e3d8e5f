package referral

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicasgt/portal-api/internal/platform/auth"
	"github.com/clinicasgt/portal-api/internal/platform/filestore"
	"github.com/clinicasgt/portal-api/pkg/pagination"
)

// Handler exposes the referral workflow over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts referral routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/referrals", h.handleCreate)
	g.GET("/referrals", h.handleList)
	g.GET("/referrals/counters", h.handleCounters)
	g.GET("/referrals/patient/:patientId", h.handlePatientHistory)
	g.GET("/referrals/:id", h.handleGet)
	g.PUT("/referrals/:id", h.handleUpdate)
	g.PUT("/referrals/:id/confirm", h.handleConfirm)
	g.PUT("/referrals/:id/active", h.handleSetActive)
	g.POST("/referrals/:id/documents/:kind", h.handleUploadDocument)
	g.GET("/referrals/:id/documents/:kind", h.handleDownloadDocument)
	g.DELETE("/referrals/:id/documents/:kind", h.handleDeleteDocument)
}

// referralView decorates a referral with its derived workflow state.
type referralView struct {
	*Referral
	Stage       int    `json:"stage"`
	StatusLabel string `json:"status_label"`
	Progress    int    `json:"progress"`
}

func newView(r *Referral) referralView {
	return referralView{
		Referral:    r,
		Stage:       r.Stage(),
		StatusLabel: r.StatusLabel(),
		Progress:    r.Progress(),
	}
}

func newViews(refs []*Referral) []referralView {
	views := make([]referralView, 0, len(refs))
	for _, r := range refs {
		views = append(views, newView(r))
	}
	return views
}

func (h *Handler) writeError(c echo.Context, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"ok": false, "error": ve.Message, "field": ve.Field,
		})
	case errors.Is(err, ErrNotFound), errors.Is(err, filestore.ErrFileNotFound):
		return c.JSON(http.StatusNotFound, errBody(err))
	case errors.Is(err, ErrPermissionDenied):
		return c.JSON(http.StatusForbidden, errBody(err))
	case errors.Is(err, ErrMissingDocument):
		return c.JSON(http.StatusUnprocessableEntity, errBody(err))
	case errors.Is(err, ErrConflict):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"ok": false, "error": err.Error(), "retryable": true,
		})
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrAlreadyConfirmed),
		errors.Is(err, ErrClinicLocked):
		return c.JSON(http.StatusConflict, errBody(err))
	case errors.Is(err, filestore.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, errBody(err))
	case errors.Is(err, filestore.ErrInvalidContentType):
		return c.JSON(http.StatusUnsupportedMediaType, errBody(err))
	case errors.Is(err, filestore.ErrMissingFileName):
		return c.JSON(http.StatusBadRequest, errBody(err))
	default:
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"ok": false, "error": "internal server error",
		})
	}
}

func errBody(err error) map[string]interface{} {
	return map[string]interface{}{"ok": false, "error": err.Error()}
}

func actorFrom(c echo.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return actor, nil
}

func uploadFromForm(file *multipart.FileHeader) (*Upload, func(), error) {
	src, err := file.Open()
	if err != nil {
		return nil, nil, err
	}
	return &Upload{
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     src,
	}, func() { src.Close() }, nil
}

func (h *Handler) handleCreate(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var in CreateInput
	cleanup := func() {}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		patientID, err := uuid.Parse(c.FormValue("patient_id"))
		if err != nil {
			return h.writeError(c, newValidationError("patient_id", "invalid uuid"))
		}
		recordID, err := uuid.Parse(c.FormValue("record_id"))
		if err != nil {
			return h.writeError(c, newValidationError("record_id", "invalid uuid"))
		}
		clinicID, err := uuid.Parse(c.FormValue("clinic_id"))
		if err != nil {
			return h.writeError(c, newValidationError("clinic_id", "invalid uuid"))
		}
		in = CreateInput{
			PatientID: patientID,
			RecordID:  recordID,
			ClinicID:  clinicID,
			Comment:   c.FormValue("comment"),
		}
		if file, err := c.FormFile("file"); err == nil {
			upload, closeFn, err := uploadFromForm(file)
			if err != nil {
				return h.writeError(c, err)
			}
			in.InitialFile = upload
			cleanup = closeFn
		}
	} else {
		var body struct {
			PatientID uuid.UUID `json:"patient_id"`
			RecordID  uuid.UUID `json:"record_id"`
			ClinicID  uuid.UUID `json:"clinic_id"`
			Comment   string    `json:"comment"`
		}
		if err := c.Bind(&body); err != nil {
			return h.writeError(c, newValidationError("body", "invalid request body"))
		}
		in = CreateInput{
			PatientID: body.PatientID,
			RecordID:  body.RecordID,
			ClinicID:  body.ClinicID,
			Comment:   body.Comment,
		}
	}
	defer cleanup()

	ref, err := h.svc.Create(c.Request().Context(), actor, in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"ok": true, "data": newView(ref)})
}

func (h *Handler) handleList(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	p := pagination.FromContext(c)
	refs, total, err := h.svc.List(c.Request().Context(), actor,
		c.QueryParam("tipo"), c.QueryParam("search"), p.Limit, p.Offset())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(newViews(refs), total, p))
}

func (h *Handler) handleCounters(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	counters, err := h.svc.Counters(c.Request().Context(), actor)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "data": counters})
}

func (h *Handler) handleGet(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, newValidationError("id", "invalid uuid"))
	}

	ref, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return h.writeError(c, err)
	}
	comments, err := h.svc.Comments(c.Request().Context(), actor, id)
	if err != nil {
		return h.writeError(c, err)
	}
	if comments == nil {
		comments = []*Comment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":       true,
		"data":     newView(ref),
		"comments": comments,
	})
}

func (h *Handler) handleUpdate(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, newValidationError("id", "invalid uuid"))
	}

	var body struct {
		Comment  *string    `json:"comment"`
		ClinicID *uuid.UUID `json:"clinic_id"`
	}
	if err := c.Bind(&body); err != nil {
		return h.writeError(c, newValidationError("body", "invalid request body"))
	}

	ref, err := h.svc.Update(c.Request().Context(), actor, id, UpdateInput{
		Comment:  body.Comment,
		ClinicID: body.ClinicID,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "data": newView(ref)})
}

func (h *Handler) handleConfirm(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, newValidationError("id", "invalid uuid"))
	}

	var comment string
	var file *Upload
	cleanup := func() {}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		comment = c.FormValue("comment")
		if fh, err := c.FormFile("file"); err == nil {
			upload, closeFn, err := uploadFromForm(fh)
			if err != nil {
				return h.writeError(c, err)
			}
			file = upload
			cleanup = closeFn
		}
	} else {
		var body struct {
			Comment string `json:"comment"`
		}
		// Confirm without a body is valid.
		_ = c.Bind(&body)
		comment = body.Comment
	}
	defer cleanup()

	ref, err := h.svc.Confirm(c.Request().Context(), actor, id, comment, file)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "data": newView(ref)})
}

func (h *Handler) handleSetActive(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, newValidationError("id", "invalid uuid"))
	}

	var body struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&body); err != nil {
		return h.writeError(c, newValidationError("body", "invalid request body"))
	}

	if err := h.svc.SetActive(c.Request().Context(), actor, id, body.Active); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *Handler) handlePatientHistory(c echo.Context) error {
	if _, err := actorFrom(c); err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return h.writeError(c, newValidationError("patientId", "invalid uuid"))
	}

	p := pagination.FromContext(c)
	refs, total, err := h.svc.PatientHistory(c.Request().Context(), patientID, p.Limit, p.Offset())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(newViews(refs), total, p))
}

func (h *Handler) handleUploadDocument(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, newValidationError("id", "invalid uuid"))
	}
	kind := DocumentKind(c.Param("kind"))
	if !kind.Valid() {
		return h.writeError(c, newValidationError("kind", "must be initial or final"))
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return h.writeError(c, newValidationError("file", "file is required"))
	}
	upload, closeFn, err := uploadFromForm(fh)
	if err != nil {
		return h.writeError(c, err)
	}
	defer closeFn()

	ref, err := h.svc.UploadDocument(c.Request().Context(), actor, id, kind, *upload)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "data": newView(ref)})
}

func (h *Handler) handleDownloadDocument(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, newValidationError("id", "invalid uuid"))
	}
	kind := DocumentKind(c.Param("kind"))
	if !kind.Valid() {
		return h.writeError(c, newValidationError("kind", "must be initial or final"))
	}

	content, info, err := h.svc.OpenDocument(c.Request().Context(), actor, id, kind)
	if err != nil {
		return h.writeError(c, err)
	}
	defer content.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", info.FileName))
	return c.Stream(http.StatusOK, info.ContentType, content)
}

func (h *Handler) handleDeleteDocument(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, newValidationError("id", "invalid uuid"))
	}
	kind := DocumentKind(c.Param("kind"))
	if !kind.Valid() {
		return h.writeError(c, newValidationError("kind", "must be initial or final"))
	}

	if err := h.svc.DeleteDocument(c.Request().Context(), actor, id, kind); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
