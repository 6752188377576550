package claim

import "time"

type StartRequest struct {
	Slug         string `json:"slug" binding:"omitempty,max=120"`
	BusinessName string `json:"businessName" binding:"omitempty,max=200"`
	OwnerName    string `json:"ownerName" binding:"omitempty,max=200"`
	Phone        string `json:"phone" binding:"omitempty,max=32"`
	Email        string `json:"email" binding:"omitempty,max=254"`
	City         string `json:"city" binding:"omitempty,max=120"`
}

type StartResult struct {
	ClaimURL  string
	Token     string
	ExpiresAt time.Time
	ProfileID string
	Slug      string
	Reused    bool
}

type PeekRequest struct {
	Token string `json:"token"`
}

type Prefill struct {
	BusinessName string `json:"businessName"`
	OwnerName    string `json:"ownerName"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	City         string `json:"city"`
	Slug         string `json:"slug"`
}

type CompleteRequest struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type CompleteResult struct {
	Slug      string
	ProfileID string
}
