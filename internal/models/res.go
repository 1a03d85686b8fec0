package models

type ApiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Kind    ErrorKind   `json:"kind,omitempty"`
	Warning string      `json:"warning,omitempty"`
	Page    int         `json:"page,omitempty"`
	Limit   int         `json:"limit,omitempty"`
	Total   int64       `json:"total,omitempty"`
}

func SuccessResponse(data interface{}, message string) ApiResponse {
	return ApiResponse{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// WarningResponse is a success whose best-effort side effect failed.
func WarningResponse(data interface{}, message, warning string) ApiResponse {
	return ApiResponse{
		Success: true,
		Data:    data,
		Message: message,
		Warning: warning,
	}
}

func ErrorResponse(err string) ApiResponse {
	return ApiResponse{
		Success: false,
		Error:   err,
	}
}

func AppErrorResponse(appErr *AppError, message string) ApiResponse {
	return ApiResponse{
		Success: false,
		Error:   message,
		Code:    appErr.Code,
		Kind:    appErr.Kind,
	}
}

func PaginatedResponse(data interface{}, page, limit int, total int64) ApiResponse {
	return ApiResponse{
		Success: true,
		Data:    data,
		Page:    page,
		Limit:   limit,
		Total:   total,
	}
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NormalizePage clamps pagination input and returns page, limit and the skip offset.
func NormalizePage(page, limit int) (int, int, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit, int64((page - 1) * limit)
}
