package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/menta2k/framecast/internal/utils"
	"github.com/menta2k/framecast/pkg/describer"
	"github.com/menta2k/framecast/pkg/history"
	"github.com/menta2k/framecast/pkg/types"
)

func (s *Server) handleProcessFrame(c *fiber.Ctx) error {
	start := time.Now()

	var req types.ProcessFrameRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Image == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no image provided")
	}

	img, format, err := s.processor.DecodeDataURLLimited(req.Image, s.analyzer.MaxImageSize())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.analyzer.ValidateImage(img, format); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if s.cfg.Mirror {
		img = s.processor.Mirror(img)
	}

	imageB64, err := s.processor.PrepareImageForModel(img, "jpeg", s.cfg.MaxImageDim, s.cfg.JPEGQuality)
	if err != nil {
		return fmt.Errorf("failed to prepare image: %w", err)
	}

	var imagePath string
	if s.archive != nil {
		if imagePath, err = s.archive.Save(img); err != nil {
			s.logger.Warn("failed to archive frame", "error", err)
		}
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.cfg.APIKey
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
	defer cancel()

	text, err := s.describer.Describe(ctx, describer.Request{
		Prompt:   req.Prompt,
		ImageB64: imageB64,
		APIKey:   apiKey,
	})
	if err != nil {
		s.logger.Error("vision model failed", "error", err)
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	if s.history != nil {
		info := s.analyzer.GetImageInfo(img)
		_, err := s.history.Record(ctx, history.Record{
			Prompt:    req.Prompt,
			Response:  text,
			ImagePath: imagePath,
			Width:     info.Width,
			Height:    info.Height,
		})
		if err != nil {
			s.logger.Warn("failed to record history", "error", err)
		}
	}

	s.logger.Info("frame processed",
		"format", format,
		"payload", utils.FormatFileSize(int64(len(req.Image))),
		"bounds", img.Bounds().Size().String(),
		"latency", time.Since(start).Round(time.Millisecond))

	return c.JSON(types.ProcessFrameResponse{Response: text})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	if s.history == nil {
		return fiber.NewError(fiber.StatusNotFound, "history is not enabled")
	}
	records, err := s.history.Recent(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"records": records})
}

func (s *Server) handleHistorySearch(c *fiber.Ctx) error {
	if s.history == nil {
		return fiber.NewError(fiber.StatusNotFound, "history is not enabled")
	}
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing query parameter q")
	}
	matches, err := s.history.Search(c.UserContext(), query, c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"matches": matches})
}
