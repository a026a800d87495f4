package tracing

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// HTTPMiddleware records one span per request named "METHOD route".
// Handlers reach the span through SpanFromContext. Requests ending with a
// gin error or a 5xx status fail the span.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		span := tracer.StartSpan(c.Request.Method + " " + route)
		span.SetAttributes(
			types.Attribute{Key: "http.method", Value: types.String(c.Request.Method)},
			types.Attribute{Key: "http.route", Value: types.String(route)},
			types.Attribute{Key: "http.host", Value: types.String(c.Request.Host)},
		)
		c.Request = c.Request.WithContext(ContextWithSpan(c.Request.Context(), span))

		c.Next()

		status := c.Writer.Status()
		span.AddAttribute("http.status", types.Int(status))

		switch {
		case len(c.Errors) > 0:
			span.Fail(c.Errors.Last())
		case status >= http.StatusInternalServerError:
			span.FailWithData(types.ErrorData{Message: http.StatusText(status), Code: strconv.Itoa(status)})
		default:
			span.Success()
		}
	}
}
