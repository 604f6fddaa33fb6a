package mockserver

import (
	"encoding/base64"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/moogar0880/problems"
)

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) handlePreprocess(c fiber.Ctx) error {
	if _, err := c.FormFile("person_image"); err != nil {
		return badRequest(c, "person_image file is required")
	}

	clothType := c.FormValue("cloth_type")
	if err := s.validate.Var(clothType, "required,oneof=upper lower overall"); err != nil {
		return badRequest(c, "cloth_type must be one of upper, lower, overall")
	}

	key := uuid.New().String()
	s.rememberKey(key)

	s.logger.Info("preprocessed person image", "cache_key", key, "cloth_type", clothType)

	return c.JSON(fiber.Map{
		"success":   true,
		"cache_key": key,
	})
}

func (s *Server) handleTryOn(c fiber.Ctx) error {
	cacheKey := c.FormValue("cache_key")
	_, photoErr := c.FormFile("person_image")
	hasPhoto := photoErr == nil

	// The contract requires exactly one of cache_key and person_image.
	if cacheKey != "" && hasPhoto {
		return badRequest(c, "provide either cache_key or person_image, not both")
	}

	if cacheKey == "" && !hasPhoto {
		return badRequest(c, "either cache_key or person_image is required")
	}

	if cacheKey != "" && !s.knowsKey(cacheKey) {
		return unprocessable(c, "unknown cache_key; preprocess the photo again")
	}

	if _, err := c.FormFile("cloth_image"); err != nil {
		return badRequest(c, "cloth_image file is required")
	}

	clothType := c.FormValue("cloth_type")
	if err := s.validate.Var(clothType, "required,oneof=upper lower overall"); err != nil {
		return badRequest(c, "cloth_type must be one of upper, lower, overall")
	}

	s.logger.Info("composed try-on result", "cloth_type", clothType, "via_cache_key", cacheKey != "")

	return c.JSON(fiber.Map{
		"imageBase64": base64.StdEncoding.EncodeToString(resultImage),
	})
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unprocessable(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusUnprocessableEntity).
		WithInstance(c.Path()).
		WithType("unknown_cache_key").
		WithDetail(detail)

	return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
}
