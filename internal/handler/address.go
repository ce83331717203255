package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/ezpc-api/internal/dto"
	"github.com/flicky/ezpc-api/internal/middleware"
	"github.com/flicky/ezpc-api/internal/service"
)

// AddressHandler responds with the full address book after every change.
type AddressHandler struct {
	svc *service.AddressService
}

func NewAddressHandler(svc *service.AddressService) *AddressHandler {
	return &AddressHandler{svc: svc}
}

func (h *AddressHandler) List(c *gin.Context) {
	addrs, err := h.svc.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addrs})
}

func (h *AddressHandler) Add(c *gin.Context) {
	var req dto.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	addrs, err := h.svc.Add(c.Request.Context(), middleware.GetUserID(c), req.Address())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"addresses": addrs})
}

func (h *AddressHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "address")
	if !ok {
		return
	}
	var req dto.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	addrs, err := h.svc.Update(c.Request.Context(), middleware.GetUserID(c), id, req.Address())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addrs})
}

func (h *AddressHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "address")
	if !ok {
		return
	}
	addrs, err := h.svc.Delete(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addrs})
}

func (h *AddressHandler) SetDefault(c *gin.Context) {
	id, ok := paramID(c, "id", "address")
	if !ok {
		return
	}
	addrs, err := h.svc.SetDefault(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addrs})
}
