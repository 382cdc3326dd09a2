package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope builds the APIResponse for a status and payload.
func Envelope(statusCode int, data interface{}) APIResponse {
	return APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	}
}

// DataResponse writes API response with status and data.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, Envelope(statusCode, data))
}

// EncodedSuccess marshals a 200 envelope, for responses that are cached as bytes.
func EncodedSuccess(data interface{}) ([]byte, error) {
	return json.Marshal(Envelope(http.StatusOK, data))
}

// BlobResponse writes an envelope that was encoded earlier.
func BlobResponse(c echo.Context, body []byte) error {
	return c.JSONBlob(http.StatusOK, body)
}

// ListResponse writes list response.
func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return DataResponse(c, http.StatusOK, &ListDataResponse{Rows: rows, Total: total})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}

// AppErrorResponse writes application error response.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}
