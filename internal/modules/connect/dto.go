package connect

type AccountRequest struct {
	BarberID string `json:"barberId" binding:"required"`
	Email    string `json:"email"`
}

type AccountResult struct {
	AccountID           string `json:"accountId"`
	AccountStatus       string `json:"accountStatus"`
	ChargesEnabled      bool   `json:"chargesEnabled"`
	PayoutsEnabled      bool   `json:"payoutsEnabled"`
	DetailsSubmitted    bool   `json:"detailsSubmitted"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
	OnboardingURL       string `json:"onboardingUrl,omitempty"`
}
