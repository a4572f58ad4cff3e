package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

// SPML result values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	// ErrorCustom is the SPML error attribute used for every rejection kind.
	ErrorCustom = "customError"
)

// Envelope represents the common response contract for non-SPML endpoints.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *appErrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// Triple is the SPML response body: a result plus, on failure, the error kind and message.
type Triple struct {
	RequestID    string   `json:"requestId,omitempty"`
	Result       string   `json:"result"`
	Error        string   `json:"error,omitempty"`
	ErrorKind    string   `json:"errorKind,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	Responses    []Triple `json:"responses,omitempty"`
}

// Success builds a successful triple.
func Success(requestID string) Triple {
	return Triple{RequestID: requestID, Result: ResultSuccess}
}

// Failure converts err into a failed triple.
func Failure(requestID string, err error) Triple {
	appErr := appErrors.FromError(err)
	kind := appErr.Code
	if appErr.Code == appErrors.ErrInternal.Code {
		kind = appErrors.ErrSPMLInternal.Code
	}
	return Triple{
		RequestID:    requestID,
		Result:       ResultFailure,
		Error:        ErrorCustom,
		ErrorKind:    kind,
		ErrorMessage: appErr.Message,
	}
}

// JSON sends a success response with optional metadata.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// SPML writes a triple. Rejections are part of the protocol and travel with HTTP 200.
func SPML(c *gin.Context, triple Triple) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, triple)
}

// SPMLError aborts with a failed triple and the status carried by err.
func SPMLError(c *gin.Context, requestID string, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.AbortWithStatusJSON(appErr.Status, Failure(requestID, appErr))
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr})
}
