package dto

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  SessionUser `json:"user"`
}

// SessionUser is the identity carried in the token and echoed on login.
type SessionUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type SecurityQuestionResponse struct {
	Question string `json:"question"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Answer      string `json:"answer"`
	NewPassword string `json:"new_password"`
}

type UpdateProfileRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	NewQuestion     string `json:"new_question"`
	NewAnswer       string `json:"new_answer"`
}
