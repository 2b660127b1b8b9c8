package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	models "github.com/fathima-sithara/media-service/internal/media"
	"github.com/fathima-sithara/media-service/internal/middleware"
	service "github.com/fathima-sithara/media-service/internal/services"
	utils "github.com/fathima-sithara/media-service/internal/utis"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	svc *service.MediaService
	log *zap.SugaredLogger
}

func NewHandler(svc *service.MediaService, log *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts the media routes under r. authMW runs first, then
// any extra handlers (rate limiting).
func (h *Handler) RegisterRoutes(r fiber.Router, authMW fiber.Handler, extra ...fiber.Handler) {
	chain := append([]fiber.Handler{authMW}, extra...)
	g := r.Group("/media", chain...)
	g.Post("/", h.Upload)
	g.Get("/", h.List)
	g.Get("/search", h.Search)
	g.Get("/:id", h.Get)
	g.Get("/:id/url", h.GetSignedURL)
	g.Put("/:id", h.Update)
	g.Delete("/:id", h.Delete)
}

// POST /api/media (multipart/form-data: file, description, tags)
func (h *Handler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.NewValidationError("No file provided", "")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	in := service.UploadInput{
		UserID:      middleware.UserID(c),
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Data:        data,
		Tags:        c.FormValue("tags"),
	}
	if d := c.FormValue("description"); d != "" {
		in.Description = &d
	}

	m, err := h.svc.Upload(c.UserContext(), in)
	if err != nil {
		return err
	}
	h.log.Infow("media uploaded", "media_id", m.ID, "user_id", m.UserID, "media_type", m.MediaType, "size", m.FileSize)
	return utils.JSONSuccess(c, fiber.StatusCreated, m)
}

// GET /api/media?page=&pageSize=&mediaType=
func (h *Handler) List(c *fiber.Ctx) error {
	page, pageSize, err := pagination(c)
	if err != nil {
		return err
	}
	q := service.ListQuery{Page: page, PageSize: pageSize, MediaType: c.Query("mediaType")}
	list, err := h.svc.List(c.UserContext(), middleware.UserID(c), q)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, list)
}

// GET /api/media/search?query=&page=&pageSize=
func (h *Handler) Search(c *fiber.Ctx) error {
	page, pageSize, err := pagination(c)
	if err != nil {
		return err
	}
	q := service.SearchQuery{Query: c.Query("query"), Page: page, PageSize: pageSize}
	list, err := h.svc.Search(c.UserContext(), middleware.UserID(c), q)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, list)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	m, err := h.svc.Get(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, m)
}

// GET /api/media/:id/url -> presigned download URL
func (h *Handler) GetSignedURL(c *fiber.Ctx) error {
	u, err := h.svc.SignedURL(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"url": u})
}

// PUT /api/media/:id {"description"?, "tags"?}
func (h *Handler) Update(c *fiber.Ctx) error {
	var upd models.MediaUpdate
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &upd); err != nil {
			return utils.NewValidationError("Invalid request body", err.Error())
		}
	}
	m, err := h.svc.Update(c.UserContext(), c.Params("id"), middleware.UserID(c), upd)
	if err != nil {
		return err
	}
	h.log.Infow("media updated", "media_id", m.ID, "user_id", m.UserID)
	return utils.JSONSuccess(c, fiber.StatusOK, m)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.svc.Delete(c.UserContext(), id, middleware.UserID(c)); err != nil {
		return err
	}
	h.log.Infow("media deleted", "media_id", id, "user_id", middleware.UserID(c))
	return c.SendStatus(fiber.StatusNoContent)
}

func pagination(c *fiber.Ctx) (int, int, error) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := intQuery(c, "pageSize", service.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func intQuery(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.NewValidationError("Invalid query parameter", key+" must be an integer")
	}
	return n, nil
}

// ErrorHandler renders every error returned by a route as the error envelope.
// Unknown errors are logged and reported as internal; their text is only
// exposed when expose is set.
func ErrorHandler(log *zap.SugaredLogger, expose bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			switch {
			case fe.Code == fiber.StatusRequestEntityTooLarge:
				return utils.JSONError(c, fiber.StatusBadRequest, utils.CodeValidation, "File too large", nil)
			case fe.Code == fiber.StatusNotFound || fe.Code == fiber.StatusMethodNotAllowed:
				return utils.JSONError(c, fiber.StatusNotFound, utils.CodeNotFound, "Not found", nil)
			case fe.Code < fiber.StatusInternalServerError:
				return utils.JSONError(c, fiber.StatusBadRequest, utils.CodeValidation, fe.Message, nil)
			}
		}
		status, _ := utils.Classify(err)
		if status >= fiber.StatusInternalServerError {
			log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}
		return utils.JSONAppError(c, err, expose)
	}
}
