package dto

import "github.com/google/uuid"

type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	Name           string `json:"name" validate:"required,max=255"`
	UniversityPath string `json:"university_path"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type SetClaimsRequest struct {
	UID            string `json:"uid" validate:"required,uuid"`
	Role           string `json:"role" validate:"required,oneof=mentor mentee coordinator super_admin developer"`
	UniversityPath string `json:"university_path" validate:"required"`
}

type RevokeTokensRequest struct {
	UID string `json:"uid" validate:"required,uuid"`
}

type Claims struct {
	Role           string `json:"role"`
	UniversityPath string `json:"university_path"`
}

type AuthResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Account      AccountResponse `json:"account"`
}

type AccountResponse struct {
	UID         uuid.UUID `json:"uid"`
	Email       string    `json:"email"`
	Claims      Claims    `json:"claims"`
	DirectoryID string    `json:"directory_id,omitempty"`
}
