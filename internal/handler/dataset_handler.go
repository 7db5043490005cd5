package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedulify/timetable-api/internal/service"
	appErrors "github.com/schedulify/timetable-api/pkg/errors"
	"github.com/schedulify/timetable-api/pkg/response"
)

// DatasetHandler manages CSV dataset import endpoints.
type DatasetHandler struct {
	service *service.DatasetService
}

// NewDatasetHandler constructs handler.
func NewDatasetHandler(svc *service.DatasetService) *DatasetHandler {
	return &DatasetHandler{service: svc}
}

// Import godoc
// @Summary Import generation input collections from CSV files
// @Tags Datasets
// @Accept multipart/form-data
// @Produce json
// @Param teachers formData file true "teachers.csv (id,name,subjects separated by ;)"
// @Param rooms formData file true "rooms.csv (id,name)"
// @Param subjects formData file true "subjects.csv (id,name)"
// @Param sections formData file true "sections.csv (id,name)"
// @Param timeslots formData file true "timeslots.csv (id,start,end)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /datasets/import [post]
func (h *DatasetHandler) Import(c *gin.Context) {
	uploads := make(map[string][]byte, 5)
	for _, key := range []string{
		service.UploadTeachers,
		service.UploadRooms,
		service.UploadSubjects,
		service.UploadSections,
		service.UploadTimeSlots,
	} {
		fileHeader, err := c.FormFile(key)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s.csv is required", key)))
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message))
			return
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message))
			return
		}
		uploads[key] = data
	}

	result, err := h.service.Import(c.Request.Context(), currentUserID(c), uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
