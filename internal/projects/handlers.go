package projects

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"veriflow-backend/internal/evidence"
	"veriflow-backend/internal/middleware"
	"veriflow-backend/internal/pkg/response"
)

// Handlers bundles project handlers with the service.
type Handlers struct {
	Service *Service
}

// CreateProject POST /api/projects
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}
	caller := middleware.GetPrincipal(c)
	project, err := h.Service.Create(c.Context(), caller, in)
	if err != nil {
		log.Error().Err(err).Msg("createProject failed")
		return response.FromError(c, err)
	}
	return response.Created(c, fiber.Map{"project": project})
}

// GetProjects GET /api/projects?owner=&status= (public)
func (h *Handlers) GetProjects(c *fiber.Ctx) error {
	var f Filter
	if o := c.Query("owner"); o != "" {
		id, err := uuid.Parse(o)
		if err != nil {
			return response.Error(c, "Invalid owner", fiber.StatusBadRequest)
		}
		f.Owner = &id
	}
	f.Status = c.Query("status")

	views, err := h.Service.List(c.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("getProjects failed")
		return response.FromError(c, err)
	}
	return response.JSON(c, fiber.Map{"count": len(views), "projects": views})
}

// GetProjectByID GET /api/projects/:id (public)
func (h *Handlers) GetProjectByID(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Project not found", fiber.StatusNotFound)
	}
	view, err := h.Service.GetByID(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.JSON(c, fiber.Map{"project": view})
}

// UpdateProject PATCH /api/projects/:id
func (h *Handlers) UpdateProject(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Project not found", fiber.StatusNotFound)
	}
	var in UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}
	caller := middleware.GetPrincipal(c)
	project, err := h.Service.Update(c.Context(), caller, id, in)
	if err != nil {
		log.Error().Err(err).Str("project_id", id.String()).Msg("updateProject failed")
		return response.FromError(c, err)
	}
	return response.JSON(c, fiber.Map{"project": project})
}

// DeleteProject DELETE /api/projects/:id
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Project not found", fiber.StatusNotFound)
	}
	caller := middleware.GetPrincipal(c)
	if err := h.Service.Delete(c.Context(), caller, id); err != nil {
		return response.FromError(c, err)
	}
	return response.Message(c, "Project deleted")
}

// UploadProjectImage POST /api/projects/:id/images
// Multipart form, file field "image", optional latitude/longitude/
// timestamp/description fields.
func (h *Handlers) UploadProjectImage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Project not found", fiber.StatusNotFound)
	}
	caller := middleware.GetPrincipal(c)

	var upload *evidence.Upload
	if fh, err := c.FormFile("image"); err == nil && fh != nil {
		f, err := fh.Open()
		if err != nil {
			return response.Error(c, "Error uploading image", fiber.StatusInternalServerError)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return response.Error(c, "Error uploading image", fiber.StatusInternalServerError)
		}
		upload = &evidence.Upload{
			Filename: fh.Filename,
			MimeType: fh.Header.Get(fiber.HeaderContentType),
			Size:     fh.Size,
			Data:     data,
		}
	}

	fields := evidence.Fields{
		Latitude:    c.FormValue("latitude"),
		Longitude:   c.FormValue("longitude"),
		Timestamp:   c.FormValue("timestamp"),
		Description: c.FormValue("description"),
	}

	img, err := h.Service.AppendEvidence(c.Context(), caller, id, upload, fields)
	if err != nil {
		log.Error().Err(err).Str("project_id", id.String()).Msg("uploadProjectImage failed")
		return response.FromError(c, err)
	}
	return response.Created(c, fiber.Map{"message": "Image uploaded successfully", "image": img})
}
