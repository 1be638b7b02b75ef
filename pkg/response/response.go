package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 统一的 JSON 返回结构
type Body struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success 返回 200
func Success(c *gin.Context, msg string, data interface{}) {
	Result(c, http.StatusOK, msg, data)
}

// Fail 返回 400
func Fail(c *gin.Context, msg string, data interface{}) {
	Result(c, http.StatusBadRequest, msg, data)
}

func Result(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, Body{Code: status, Msg: msg, Data: data})
}
