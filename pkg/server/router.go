package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/automaprint/automaprint/pkg/printer"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(corsMiddleware(), gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error().Msgf("Handler panic: %v", recovered)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprint(recovered)})
	}))

	router.GET("/health", s.handleHealth)
	router.OPTIONS("/health", handlePreflight)
	router.POST("/print", s.handlePrint)
	router.OPTIONS("/print", handlePreflight)

	return router
}

// corsMiddleware sets permissive cross-origin headers on every response so
// browser clients can reach the API directly.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		c.Next()
	}
}

func handlePreflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// authorized checks the API key. Local-only setups (tunnel disabled) and
// setups without a configured key skip the check entirely.
func (s *Server) authorized(c *gin.Context) bool {
	if !s.settings.UseTunnel {
		return true
	}
	if s.settings.APIKey == "" {
		return true
	}
	return c.GetHeader("X-API-Key") == s.settings.APIKey
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.authorized(c) {
		log.Warn().Msg("Unauthorized request: invalid API key.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"printer": s.settings.PrinterName,
		"port":    s.settings.Port,
	})
}

func (s *Server) handlePrint(c *gin.Context) {
	if !s.authorized(c) {
		log.Warn().Msg("Unauthorized request: invalid API key.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API key"})
		return
	}

	device := c.Query("printer")
	if device == "" {
		device = s.settings.PrinterName
	}
	if device == "" {
		log.Warn().Msg("No printer specified.")
		c.JSON(http.StatusBadRequest, gin.H{"error": "No printer specified"})
		return
	}

	payload, err := readPayload(c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read print payload.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(payload) == 0 {
		log.Warn().Msg("No PDF data received.")
		c.JSON(http.StatusBadRequest, gin.H{"error": "No PDF data received"})
		return
	}

	log.Info().Msgf("Received %d bytes.", len(payload))

	if !printer.IsPDF(payload) {
		log.Warn().Msg("Data is not a valid PDF.")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Data is not a valid PDF file"})
		return
	}

	log.Info().Msgf("Printing to: %s", device)
	opts := printer.Options{
		Scaling: s.settings.PrintScaling,
		Color:   s.settings.PrintColor,
		Duplex:  s.settings.PrintDuplex,
	}

	outcome, err := s.printer.Dispatch(c.Request.Context(), payload, device, opts)
	if err != nil {
		log.Error().Err(err).Msg("Print job failed.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Print job failed"})
		return
	}

	if outcome == printer.OutcomeTimeoutRecovered {
		log.Warn().Msg("Print job sent (renderer timeout).")
	} else {
		log.Info().Msg("Print job sent successfully.")
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Print job sent successfully",
		"printer": device,
		"bytes":   len(payload),
	})
}

// readPayload accepts either a multipart upload (field "file") or the raw
// request body.
func readPayload(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return nil, err
		}

		log.Info().Msgf("Received file upload: %s", fileHeader.Filename)

		file, err := fileHeader.Open()
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		return io.ReadAll(file)
	}

	return io.ReadAll(c.Request.Body)
}
