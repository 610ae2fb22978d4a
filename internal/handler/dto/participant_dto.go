package dto

// RateRequest — тело запроса на запись голоса
type RateRequest struct {
	Value int `json:"value" binding:"required"`
}

// SetStatusRequest — тело запроса на смену статуса анкеты
type SetStatusRequest struct {
	Status    string            `json:"status" binding:"required"`
	Rejection *RejectionRequest `json:"rejection,omitempty"`
}

// RejectionRequest — структурированная причина отклонения
type RejectionRequest struct {
	Codes []string `json:"codes"`
	Note  string   `json:"note"`
}

// ReasonConfigRequest — тело запроса на новую версию словаря причин
type ReasonConfigRequest struct {
	Codes []string `json:"codes" binding:"required"`
}

// CreateParticipantRequest — подача анкеты участницы
type CreateParticipantRequest struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
	PhotoURL string `json:"photo_url"`
}
