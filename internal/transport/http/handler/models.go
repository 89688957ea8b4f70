package handler

import (
	"github.com/gin-gonic/gin"
)

// ModelsHandler serves the static list of selectable models. The list comes
// from configuration; nothing validates that a backing model actually
// exists, the identifier is passed through to the generation API as-is.
type ModelsHandler struct {
	models []string
}

func NewModelsHandler(models []string) *ModelsHandler {
	return &ModelsHandler{models: models}
}

func (h *ModelsHandler) List(c *gin.Context) {
	models := h.models
	if models == nil {
		models = []string{}
	}
	c.JSON(200, gin.H{"models": models})
}
