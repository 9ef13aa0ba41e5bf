package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
)

type Server struct {
	store   *PredictionStore
	service *PredictionService
	clock   func() time.Time
}

func NewServer(store *PredictionStore, service *PredictionService) *Server {
	if store == nil {
		store = NewPredictionStore(0)
	}
	return &Server{
		store:   store,
		service: service,
		clock:   time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	e.POST("/v1/predict", s.handlePredict)
	e.GET("/v1/predictions/:id", s.handleGetPrediction)
	e.DELETE("/v1/predictions/:id", s.handleDeletePrediction)
	e.GET("/v1/model", s.handleModel)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePredict(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "prediction service not configured", "", "")
	}
	req, err := decodeJSON[PredictRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	outputs, err := s.service.Predict(c.Request().Context(), req.Inputs, req.Seed)
	if err != nil {
		status, typ := classify(err)
		return writeError(c, status, typ, err.Error(), "inputs", "")
	}

	resp := PredictResponse{
		ID:        newPredictionID(),
		Object:    "prediction",
		CreatedAt: s.clock().Unix(),
		Inputs:    req.Inputs,
		Outputs:   outputs,
		MaxLen:    s.service.MaxLen(),
	}
	if req.Store == nil || *req.Store {
		s.store.Put(resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetPrediction(c *echo.Context) error {
	id := c.Param("id")
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "prediction not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeletePrediction(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "prediction not found")
	}
	return c.JSON(http.StatusOK, DeleteResponse{ID: id, Object: "prediction.deleted", Deleted: true})
}

func (s *Server) handleModel(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "prediction service not configured", "", "")
	}
	return c.JSON(http.StatusOK, s.service.Model())
}

// RegisterUI serves the browser playground from files at /.
func RegisterUI(e *echo.Echo, files http.FileSystem) {
	e.GET("/*", echo.WrapHandler(http.FileServer(files)))
}
