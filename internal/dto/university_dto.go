package dto

type InitializeUniversityRequest struct {
	State  string `json:"state" validate:"required,max=100"`
	City   string `json:"city" validate:"required,max=100"`
	Campus string `json:"campus" validate:"required,max=100"`
	Name   string `json:"universityName" validate:"required,max=255"`
}

type InitializeUniversityResponse struct {
	UniversityPath string   `json:"universityPath"`
	Settings       []string `json:"settings"`
}

type SetSettingRequest struct {
	Value string `json:"value" validate:"required"`
	Type  string `json:"type" validate:"omitempty,oneof=string bool int json"`
}
