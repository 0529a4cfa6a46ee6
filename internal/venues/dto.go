package venues

type CreateVenueRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=128"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	Address     string `json:"address" binding:"required,max=256"`
	City        string `json:"city" binding:"required,max=64"`
	Phone       string `json:"phone" binding:"omitempty,min=8,max=20"`
	OpenTime    string `json:"open_time" binding:"omitempty"`
	CloseTime   string `json:"close_time" binding:"omitempty"`
}

type UpdateVenueRequest struct {
	Name        string `json:"name" binding:"omitempty,min=2,max=128"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	Phone       string `json:"phone" binding:"omitempty,min=8,max=20"`
	OpenTime    string `json:"open_time" binding:"omitempty"`
	CloseTime   string `json:"close_time" binding:"omitempty"`
	IsActive    *bool  `json:"is_active"`
}

type CreateCourtRequest struct {
	Name         string  `json:"name" binding:"required,min=1,max=64"`
	Sport        string  `json:"sport" binding:"required,oneof=badminton tennis pickleball futsal basketball volleyball"`
	Surface      string  `json:"surface" binding:"omitempty,max=32"`
	Indoor       bool    `json:"indoor"`
	PricePerSlot float64 `json:"price_per_slot" binding:"required,gt=0"`
}

type SetCourtActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
