package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
)

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Fail 构造错误响应
func Fail(message string) ErrorResponse {
	return ErrorResponse{Success: false, Message: message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return io.EOF
	}
	return json.Unmarshal(body, out)
}
