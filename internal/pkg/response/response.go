package response

import "github.com/gin-gonic/gin"

// GenericMessage is the only text a client sees for unexpected failures.
const GenericMessage = "Something went wrong, please try again"

// Success writes {success:true, ...fields}.
func Success(c *gin.Context, statusCode int, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(statusCode, body)
}

// Error writes {success:false, error, errorCode}.
func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success":   false,
		"error":     message,
		"errorCode": code,
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success":   false,
		"error":     message,
		"errorCode": code,
		"details":   details,
	})
}

// ValidationError reports a malformed request, with field errors when available.
func ValidationError(c *gin.Context, fields map[string]string) {
	if len(fields) == 0 {
		Error(c, 400, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	ErrorWithDetails(c, 400, "VALIDATION_ERROR", "Invalid request body", fields)
}
